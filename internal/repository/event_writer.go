package repository

import (
	"sync"

	"github.com/wfunc/laundry-kiosk/internal/logger"
	"github.com/wfunc/laundry-kiosk/internal/models"
	"go.uber.org/zap"
)

// EventWriter 异步事件写入器
// 串口读循环不能被数据库写入卡住，所以事件先进缓冲通道，
// 由单独的写goroutine落库。通道满了就丢弃并记日志——事件日志
// 是尽力而为的，丢几条不影响硬件状态。
type EventWriter struct {
	repo *HardwareEventRepository
	log  *zap.Logger

	ch      chan *models.HardwareEvent
	stopped sync.Once
	done    chan struct{}
}

// NewEventWriter 创建异步事件写入器
func NewEventWriter(repo *HardwareEventRepository) *EventWriter {
	w := &EventWriter{
		repo: repo,
		log:  logger.GetModuleLogger("database"),
		ch:   make(chan *models.HardwareEvent, 256),
		done: make(chan struct{}),
	}

	go w.loop()

	return w
}

// Record 实现hardware.EventSink
func (w *EventWriter) Record(direction string, line string) {
	event := &models.HardwareEvent{
		Direction: direction,
		Line:      line,
	}

	select {
	case w.ch <- event:
	default:
		w.log.Warn("事件缓冲已满，丢弃记录",
			zap.String("direction", direction),
			zap.String("line", line))
	}
}

// loop 写循环
func (w *EventWriter) loop() {
	defer close(w.done)

	for event := range w.ch {
		if err := w.repo.Create(event); err != nil {
			w.log.Error("事件落库失败",
				zap.String("direction", event.Direction),
				zap.Error(err))
		}
	}
}

// Close 关闭写入器，等待缓冲内的事件写完
func (w *EventWriter) Close() {
	w.stopped.Do(func() {
		close(w.ch)
		<-w.done
	})
}
