package kiosk

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/laundry-kiosk/internal/config"
	"github.com/wfunc/laundry-kiosk/internal/errors"
	"github.com/wfunc/laundry-kiosk/internal/logger"
	"go.uber.org/zap"
)

// Kiosk 自助终端
// 维护柜门业务状态目录，驱动轮询，管理当前交易会话。
// 同一时刻最多一个进行中的会话。
type Kiosk struct {
	mu sync.Mutex

	client *Client
	cfg    config.KioskConfig
	log    *zap.Logger

	lockers map[int]*Locker
	order   []int

	session      *Session
	cancel       CancelFunc
	disconnected bool
	lastCredit   float64
}

// NewKiosk 创建自助终端
func NewKiosk(client *Client, cfg config.KioskConfig, lockerCfgs []config.LockerConfig) *Kiosk {
	k := &Kiosk{
		client:  client,
		cfg:     cfg,
		log:     logger.GetModuleLogger("kiosk"),
		lockers: make(map[int]*Locker),
	}

	for _, lc := range lockerCfgs {
		k.lockers[lc.ID] = &Locker{
			ID:       lc.ID,
			Slot:     lc.Slot,
			Size:     lc.Size,
			Capacity: lc.Capacity,
			Status:   LockerAvailable,
		}
		k.order = append(k.order, lc.ID)
	}
	sort.Ints(k.order)

	return k
}

// Start 启动状态轮询
func (k *Kiosk) Start() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cancel != nil {
		return
	}
	k.cancel = k.client.StartPolling(
		k.cfg.PollInterval,
		k.cfg.FailureThreshold,
		k.handleUpdate,
		k.handleStale,
	)
}

// Stop 停止轮询，重复调用是无操作
func (k *Kiosk) Stop() {
	k.mu.Lock()
	cancel := k.cancel
	k.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// handleUpdate 处理轮询到的硬件快照
// 传感器读数按槽位覆盖到柜门业务状态，并转发给进行中的会话。
func (k *Kiosk) handleUpdate(status *StatusResponse) {
	k.mu.Lock()

	k.disconnected = false
	k.lastCredit = status.Credit

	var session *Session
	var sessionReading LockerReading
	var sessionHit bool

	for _, l := range k.lockers {
		reading, ok := status.Lockers[l.Slot]
		if !ok {
			continue
		}
		l.Weight = reading.Weight
		l.DoorStatus = reading.Door

		if k.session != nil && k.session.LockerID == l.ID {
			session = k.session
			sessionReading = reading
			sessionHit = true
		}
	}
	k.mu.Unlock()

	// 会话回调放在锁外，避免和会话自己的锁交叉
	if sessionHit {
		session.ApplyStatus(sessionReading, status.Credit)
	}
}

// handleStale 桥接服务失联
func (k *Kiosk) handleStale() {
	k.mu.Lock()
	k.disconnected = true
	session := k.session
	k.mu.Unlock()

	if session != nil {
		session.SetDisconnected()
	}
}

// Disconnected 桥接服务是否失联
func (k *Kiosk) Disconnected() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.disconnected
}

// Lockers 全部柜门的业务状态快照，按柜号排序
func (k *Kiosk) Lockers() []Locker {
	k.mu.Lock()
	defer k.mu.Unlock()

	result := make([]Locker, 0, len(k.order))
	for _, id := range k.order {
		result = append(result, *k.lockers[id])
	}
	return result
}

// AvailableLockers 可存衣的柜门
func (k *Kiosk) AvailableLockers() []Locker {
	return k.filter(LockerAvailable)
}

// OccupiedLockers 有衣物待取的柜门
func (k *Kiosk) OccupiedLockers() []Locker {
	return k.filter(LockerOccupied)
}

func (k *Kiosk) filter(status LockerStatus) []Locker {
	k.mu.Lock()
	defer k.mu.Unlock()

	var result []Locker
	for _, id := range k.order {
		if k.lockers[id].Status == status {
			result = append(result, *k.lockers[id])
		}
	}
	return result
}

// ActiveSession 当前进行中的会话
func (k *Kiosk) ActiveSession() *Session {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.session
}

// StartDropOff 发起存衣交易
func (k *Kiosk) StartDropOff(lockerID int) (*Session, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.session != nil {
		return nil, errors.New(errors.ErrSessionActive)
	}

	l, ok := k.lockers[lockerID]
	if !ok {
		return nil, errors.New(errors.ErrInvalidLocker)
	}
	if l.Status != LockerAvailable {
		return nil, errors.New(errors.ErrLockerOccupied)
	}

	k.session = NewDropOffSession(lockerID, k.cfg)
	k.log.Info("存衣会话已开始",
		zap.String("session_id", k.session.ID),
		zap.Int("locker_id", lockerID))
	return k.session, nil
}

// StartPickup 发起取衣交易
func (k *Kiosk) StartPickup(lockerID int) (*Session, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.session != nil {
		return nil, errors.New(errors.ErrSessionActive)
	}

	l, ok := k.lockers[lockerID]
	if !ok {
		return nil, errors.New(errors.ErrInvalidLocker)
	}
	if l.Status != LockerOccupied {
		return nil, errors.New(errors.ErrLockerEmpty)
	}

	k.session = NewPickupSession(lockerID, l.PIN, l.Price, l.Weight, k.cfg)
	k.log.Info("取衣会话已开始",
		zap.String("session_id", k.session.ID),
		zap.Int("locker_id", lockerID))
	return k.session, nil
}

// OpenLocker 打开存衣会话的柜门并进入称重
// 先让桥接服务下发开锁，再迁移会话状态。
func (k *Kiosk) OpenLocker(ctx context.Context) error {
	session, err := k.requireSession(ProcessDropOff)
	if err != nil {
		return err
	}

	if err := k.client.Unlock(ctx, session.LockerID); err != nil {
		return err
	}
	return session.BeginWeighing()
}

// ConfirmDropOff 确认存衣，柜门转为占用并记下取件码
func (k *Kiosk) ConfirmDropOff() (string, error) {
	session, err := k.requireSession(ProcessDropOff)
	if err != nil {
		return "", err
	}

	pin, err := session.ConfirmDropOff()
	if err != nil {
		return "", err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	l := k.lockers[session.LockerID]
	l.Status = LockerOccupied
	l.Price = session.FinalPrice()
	l.PIN = pin
	l.ReadyTime = "处理中"
	k.session = nil

	k.log.Info("柜门转为占用",
		zap.Int("locker_id", l.ID),
		zap.Float64("price", l.Price))
	return pin, nil
}

// CompletePickup 结束取衣：结算、开柜、柜门恢复可用
// 开锁失败时会话保持在支付状态，可以重试。
func (k *Kiosk) CompletePickup(ctx context.Context) error {
	session, err := k.requireSession(ProcessPickup)
	if err != nil {
		return err
	}

	if !session.Payment().Complete {
		return errors.New(errors.ErrPaymentIncomplete)
	}

	if err := k.client.Unlock(ctx, session.LockerID); err != nil {
		return err
	}

	if err := session.CompletePayment(); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	l := k.lockers[session.LockerID]
	l.Status = LockerAvailable
	l.Price = 0
	l.PIN = ""
	l.ReadyTime = ""
	k.session = nil

	k.log.Info("取衣完成，柜门恢复可用", zap.Int("locker_id", l.ID))
	return nil
}

// CancelSession 取消当前会话
func (k *Kiosk) CancelSession() {
	k.mu.Lock()
	session := k.session
	k.session = nil
	k.mu.Unlock()

	if session != nil {
		session.Cancel()
	}
}

// requireSession 取出指定流程的进行中会话
func (k *Kiosk) requireSession(process ProcessType) (*Session, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.session == nil {
		return nil, errors.New(errors.ErrSessionState, "没有进行中的会话")
	}
	if k.session.Process != process {
		return nil, errors.New(errors.ErrSessionState, "会话流程不匹配")
	}
	return k.session, nil
}
