package kiosk

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/laundry-kiosk/internal/config"
	"github.com/wfunc/laundry-kiosk/internal/errors"
	"github.com/wfunc/laundry-kiosk/internal/logger"
	"go.uber.org/zap"
)

// SessionState 会话状态
type SessionState string

const (
	// 存衣流程
	StateInstructions SessionState = "instructions" // 操作说明
	StateWeighing     SessionState = "weighing"     // 称重中
	StateSummary      SessionState = "summary"      // 重量确认

	// 取衣流程
	StatePinEntry SessionState = "pin_entry" // 输入取件码
	StatePayment  SessionState = "payment"   // 投币支付

	StateComplete SessionState = "complete" // 完成
	StateCanceled SessionState = "canceled" // 已取消
)

// validTransitions 合法的状态迁移表，迁移前校验
var validTransitions = map[SessionState][]SessionState{
	StateInstructions: {StateWeighing, StateCanceled},
	StateWeighing:     {StateSummary, StateCanceled},
	StateSummary:      {StateComplete, StateCanceled},
	StatePinEntry:     {StatePayment, StateCanceled},
	StatePayment:      {StateComplete, StateCanceled},
}

// Session 一次存衣或取衣交易
// 所有业务判定（结算时刻、价格、支付进度）都由它做，
// 传感器读数只通过ApplyStatus注入。
type Session struct {
	mu sync.Mutex

	ID       string
	LockerID int
	Process  ProcessType

	state SessionState
	cfg   config.KioskConfig
	log   *zap.Logger
	now   func() time.Time

	// 最新传感器读数
	liveWeight float64
	doorStatus string
	lastCredit float64

	// 称重：重量稳定在阈值之上满settle时长才算定重
	settleSince time.Time
	finalWeight float64
	finalPrice  float64

	// 支付：基准为进入支付时的投币计数，本次现金=当前计数-基准
	baselineCredit float64
	cash           float64

	// 取件码
	pin           string
	pinErrorUntil time.Time

	disconnected bool
}

// NewDropOffSession 创建存衣会话
func NewDropOffSession(lockerID int, cfg config.KioskConfig) *Session {
	return &Session{
		ID:       uuid.New().String(),
		LockerID: lockerID,
		Process:  ProcessDropOff,
		state:    StateInstructions,
		cfg:      cfg,
		log:      logger.GetModuleLogger("kiosk.session"),
		now:      time.Now,
	}
}

// NewPickupSession 创建取衣会话
// pin和price来自存衣时记下的柜门业务状态。
func NewPickupSession(lockerID int, pin string, price float64, weight float64, cfg config.KioskConfig) *Session {
	return &Session{
		ID:          uuid.New().String(),
		LockerID:    lockerID,
		Process:     ProcessPickup,
		state:       StatePinEntry,
		cfg:         cfg,
		log:         logger.GetModuleLogger("kiosk.session"),
		now:         time.Now,
		pin:         pin,
		finalPrice:  price,
		finalWeight: weight,
	}
}

// State 当前会话状态
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Disconnected 桥接服务是否失联
func (s *Session) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// LiveWeight 最新的实时重量读数
func (s *Session) LiveWeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveWeight
}

// FinalWeight 定格重量，定重之后不再随传感器变化
func (s *Session) FinalWeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalWeight
}

// FinalPrice 结算价格
func (s *Session) FinalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalPrice
}

// transition 校验并执行状态迁移，调用方必须持锁
func (s *Session) transition(to SessionState) error {
	for _, allowed := range validTransitions[s.state] {
		if allowed == to {
			s.log.Info("会话状态迁移",
				zap.String("session_id", s.ID),
				zap.Int("locker_id", s.LockerID),
				zap.String("from", string(s.state)),
				zap.String("to", string(to)))
			s.state = to
			return nil
		}
	}
	return errors.Newf(errors.ErrSessionState, "不允许从%s迁移到%s", s.state, to)
}

// ApplyStatus 注入最新的硬件读数
// 读数驱动称重结算和投币累计，具体效果取决于当前会话状态。
func (s *Session) ApplyStatus(reading LockerReading, credit float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.liveWeight = reading.Weight
	s.doorStatus = reading.Door
	s.lastCredit = credit
	s.disconnected = false

	switch s.state {
	case StateWeighing:
		s.applyWeighing(reading.Weight)
	case StatePayment:
		s.applyPayment(credit)
	}
}

// applyWeighing 称重结算判定，调用方必须持锁
// 重量达到阈值后开始计时，连续稳定满settle时长才定重；
// 中途重量跌回阈值以下则计时清零重来。
func (s *Session) applyWeighing(weight float64) {
	if weight < s.cfg.MinWeight {
		s.settleSince = time.Time{}
		return
	}

	if s.settleSince.IsZero() {
		s.settleSince = s.now()
		return
	}

	if s.now().Sub(s.settleSince) >= s.cfg.SettleDelay {
		s.settle(weight)
	}
}

// settle 定格重量并算价，调用方必须持锁
func (s *Session) settle(weight float64) {
	s.finalWeight = weight
	s.finalPrice = weight * s.cfg.PricePerKg

	if err := s.transition(StateSummary); err != nil {
		return
	}

	s.log.Info("重量已定格",
		zap.String("session_id", s.ID),
		zap.Float64("weight", weight),
		zap.Float64("price", s.finalPrice))
}

// applyPayment 投币累计，调用方必须持锁
// 硬件侧投币计数只增不减，负增量说明计数器被复位，忽略掉。
func (s *Session) applyPayment(credit float64) {
	delta := credit - s.baselineCredit
	if delta < 0 {
		s.log.Warn("投币计数出现负增量，已忽略",
			zap.Float64("credit", credit),
			zap.Float64("baseline", s.baselineCredit))
		return
	}
	s.cash = delta
}

// SetDisconnected 标记桥接服务失联
func (s *Session) SetDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = true
}

// BeginWeighing 从操作说明进入称重
func (s *Session) BeginWeighing() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Process != ProcessDropOff {
		return errors.New(errors.ErrSessionState, "当前不是存衣会话")
	}
	return s.transition(StateWeighing)
}

// ForceWeighed 人工确认重量，跳过稳定等待
// 即使重量低于阈值也按当前读数定格。
func (s *Session) ForceWeighed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateWeighing {
		return errors.New(errors.ErrSessionState, "当前不在称重状态")
	}

	s.finalWeight = s.liveWeight
	s.finalPrice = s.liveWeight * s.cfg.PricePerKg
	return s.transition(StateSummary)
}

// ConfirmDropOff 确认存衣并生成取件码
func (s *Session) ConfirmDropOff() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Process != ProcessDropOff || s.state != StateSummary {
		return "", errors.New(errors.ErrSessionState, "当前不在确认状态")
	}

	s.pin = GeneratePIN()
	if err := s.transition(StateComplete); err != nil {
		return "", err
	}

	s.log.Info("存衣完成",
		zap.String("session_id", s.ID),
		zap.Int("locker_id", s.LockerID),
		zap.Float64("weight", s.finalWeight),
		zap.Float64("price", s.finalPrice))

	return s.pin, nil
}

// VerifyPIN 校验取件码
// 错误后冷却一段时间，冷却期内拒绝再次尝试；
// 校验通过即进入支付状态，并以当下的投币计数做基准。
func (s *Session) VerifyPIN(input string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePinEntry {
		return errors.New(errors.ErrSessionState, "当前不在取件码输入状态")
	}

	if s.now().Before(s.pinErrorUntil) {
		return errors.New(errors.ErrPinLocked)
	}

	if input != s.pin {
		s.pinErrorUntil = s.now().Add(s.cfg.PinErrorHold)
		s.log.Warn("取件码校验失败",
			zap.String("session_id", s.ID),
			zap.Int("locker_id", s.LockerID))
		return errors.New(errors.ErrPinMismatch)
	}

	s.baselineCredit = s.lastCredit
	s.cash = 0
	return s.transition(StatePayment)
}

// Payment 当前支付进度
func (s *Session) Payment() PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paymentLocked()
}

// paymentLocked 计算支付进度，调用方必须持锁
func (s *Session) paymentLocked() PaymentStatus {
	status := PaymentStatus{
		Price: s.finalPrice,
		Cash:  s.cash,
	}
	if s.cash >= s.finalPrice {
		status.Complete = true
		status.Change = s.cash - s.finalPrice
	} else {
		status.Remaining = s.finalPrice - s.cash
	}
	return status
}

// CompletePayment 结束支付
// 只有投币额覆盖价格后才允许，找零金额体现在支付进度里。
func (s *Session) CompletePayment() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePayment {
		return errors.New(errors.ErrSessionState, "当前不在支付状态")
	}

	if !s.paymentLocked().Complete {
		return errors.New(errors.ErrPaymentIncomplete)
	}

	if err := s.transition(StateComplete); err != nil {
		return err
	}

	s.log.Info("支付完成",
		zap.String("session_id", s.ID),
		zap.Int("locker_id", s.LockerID),
		zap.Float64("cash", s.cash),
		zap.Float64("price", s.finalPrice))

	return nil
}

// Cancel 取消会话
// 已完成或已取消的会话再取消是无操作。
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateComplete || s.state == StateCanceled {
		return
	}

	s.log.Info("会话已取消",
		zap.String("session_id", s.ID),
		zap.Int("locker_id", s.LockerID),
		zap.String("state", string(s.state)))
	s.state = StateCanceled
}

// DemoPIN 演示模式下暴露取件码，正式环境永远不返回
func (s *Session) DemoPIN() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.DemoMode {
		return "", false
	}
	return s.pin, true
}
