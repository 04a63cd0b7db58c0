package hardware

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/laundry-kiosk/internal/config"
	"github.com/wfunc/laundry-kiosk/internal/errors"
	"github.com/wfunc/laundry-kiosk/internal/logger"
	"go.uber.org/zap"
)

// LinkState 串口链路状态
type LinkState string

const (
	LinkClosed LinkState = "closed"
	LinkOpen   LinkState = "open"
	LinkError  LinkState = "error"
)

// EventSink 硬件事件记录接口
// 串口收到的每一行遥测和发出的每一条指令都交给它落库，尽力而为，
// 记录失败不影响链路。
type EventSink interface {
	Record(direction string, line string)
}

// 事件方向
const (
	DirectionRX = "RX"
	DirectionTX = "TX"
)

// LinkManager 串口链路管理器
// 独占一条到主控板的串口连接：读循环把遥测行喂给状态存储，
// 写路径给指令分发器下发开锁指令。打开失败不是致命错误，
// HTTP服务照常运行，指令返回硬件未连接。
type LinkManager struct {
	cfg   config.SerialConfig
	store *Store
	sink  EventSink
	log   *zap.Logger

	mu    sync.Mutex
	port  io.ReadWriteCloser
	state LinkState

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	// 测试时替换为内存端口
	openPort func(*serial.Config) (io.ReadWriteCloser, error)
}

// NewLinkManager 创建串口链路管理器
func NewLinkManager(cfg config.SerialConfig, store *Store, sink EventSink) *LinkManager {
	return &LinkManager{
		cfg:    cfg,
		store:  store,
		sink:   sink,
		log:    logger.GetModuleLogger("serial"),
		state:  LinkClosed,
		stopCh: make(chan struct{}),
		openPort: func(c *serial.Config) (io.ReadWriteCloser, error) {
			return serial.OpenPort(c)
		},
	}
}

// NewLinkManagerWithPort 使用自定义端口工厂创建链路管理器
// 模拟模式和测试用，真实串口之外的端口实现从这里注入。
func NewLinkManagerWithPort(
	cfg config.SerialConfig,
	store *Store,
	sink EventSink,
	openPort func(*serial.Config) (io.ReadWriteCloser, error),
) *LinkManager {
	m := NewLinkManager(cfg, store, sink)
	m.openPort = openPort
	return m
}

// Start 打开串口并启动读循环
// 设备打不开时返回nil：进程继续运行，硬件标记为不可用，
// 由配置决定是否启动有限次数的重试。
func (m *LinkManager) Start() error {
	if !m.cfg.Enabled {
		m.log.Info("串口已禁用")
		return nil
	}

	if m.cfg.MockMode {
		port := NewMockPort()
		m.attach(port)
		m.log.Info("串口运行在模拟模式")
		return nil
	}

	if err := m.open(); err != nil {
		m.log.Warn("打开串口失败，硬件标记为不可用",
			zap.String("port", m.cfg.Port),
			zap.Error(err))

		if m.cfg.Reconnect.Enabled {
			m.wg.Add(1)
			go m.retryLoop()
		}
	}

	return nil
}

// open 打开串口并挂上读循环
func (m *LinkManager) open() error {
	port, err := m.openPort(&serial.Config{
		Name:        m.cfg.Port,
		Baud:        m.cfg.BaudRate,
		ReadTimeout: m.cfg.ReadTimeout,
	})
	if err != nil {
		m.mu.Lock()
		m.state = LinkError
		m.mu.Unlock()
		return errors.Wrap(err, errors.ErrSerialPortOpen)
	}

	m.attach(port)

	m.log.Info("串口连接成功",
		zap.String("port", m.cfg.Port),
		zap.Int("baud_rate", m.cfg.BaudRate))

	return nil
}

// attach 接管一个已打开的端口
func (m *LinkManager) attach(port io.ReadWriteCloser) {
	m.mu.Lock()
	m.port = port
	m.state = LinkOpen
	m.mu.Unlock()

	m.store.SetConnected(true)

	m.wg.Add(1)
	go m.readLoop(port)
}

// readLoop 串口读循环
// 按行读取遥测，逐行落库并应用到状态存储。应用顺序即接收顺序。
func (m *LinkManager) readLoop(port io.ReadWriteCloser) {
	defer m.wg.Done()

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		select {
		case <-m.stopCh:
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		logger.LogSerialLine(DirectionRX, line)
		if m.sink != nil {
			m.sink.Record(DirectionRX, line)
		}
		m.store.ApplyLine(line)
	}

	// 读循环退出说明链路断了
	if err := scanner.Err(); err != nil {
		m.log.Error("串口读取错误", zap.Error(err))
	}

	m.mu.Lock()
	alreadyStopping := m.state == LinkClosed
	if !alreadyStopping {
		m.state = LinkError
	}
	m.mu.Unlock()

	m.store.SetConnected(false)

	if !alreadyStopping && m.cfg.Reconnect.Enabled {
		m.wg.Add(1)
		go m.retryLoop()
	}
}

// retryLoop 有限次数的重连循环
// 重连策略放在链路外层，写路径本身永远不重试。
func (m *LinkManager) retryLoop() {
	defer m.wg.Done()

	interval := m.cfg.Reconnect.Interval
	for attempt := 1; attempt <= m.cfg.Reconnect.MaxRetries; attempt++ {
		select {
		case <-m.stopCh:
			return
		case <-time.After(interval):
		}

		m.log.Info("尝试重连串口",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", m.cfg.Reconnect.MaxRetries))

		if err := m.open(); err == nil {
			return
		}

		interval *= 2
		if interval > m.cfg.Reconnect.MaxInterval {
			interval = m.cfg.Reconnect.MaxInterval
		}
	}

	m.log.Error("串口重连失败，放弃重试",
		zap.Int("max_retries", m.cfg.Reconnect.MaxRetries))
}

// WriteCommand 发送一条出站指令
// 单条指令加换行，发完即忘，不等待设备应答。
func (m *LinkManager) WriteCommand(token string) error {
	m.mu.Lock()
	if m.state != LinkOpen || m.port == nil {
		m.mu.Unlock()
		return errors.New(errors.ErrHardwareUnavailable)
	}
	port := m.port
	m.mu.Unlock()

	if _, err := port.Write([]byte(token + "\n")); err != nil {
		m.mu.Lock()
		m.state = LinkError
		m.mu.Unlock()
		m.store.SetConnected(false)
		return errors.Wrap(err, errors.ErrSerialPortWrite)
	}

	logger.LogSerialLine(DirectionTX, token)
	if m.sink != nil {
		m.sink.Record(DirectionTX, token)
	}

	return nil
}

// State 返回链路状态
func (m *LinkManager) State() LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsOpen 链路是否可用
func (m *LinkManager) IsOpen() bool {
	return m.State() == LinkOpen
}

// Stop 关闭链路
// 幂等，重复调用无副作用。
func (m *LinkManager) Stop() {
	m.stopped.Do(func() {
		close(m.stopCh)

		m.mu.Lock()
		if m.port != nil {
			m.port.Close()
			m.port = nil
		}
		m.state = LinkClosed
		m.mu.Unlock()

		m.store.SetConnected(false)
		m.wg.Wait()

		m.log.Info("串口已关闭")
	})
}
