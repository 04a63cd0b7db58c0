package hardware

import (
	"github.com/wfunc/laundry-kiosk/internal/errors"
	"github.com/wfunc/laundry-kiosk/internal/logger"
	"go.uber.org/zap"
)

// Dispatcher 指令分发器
// 校验柜门编号，查表取出站指令，经链路下发。开锁指令不会直接改动
// 快照里的门磁状态——门是否真开了，要等固件上报对应遥测才知道。
type Dispatcher struct {
	link  *LinkManager
	slots *SlotTable
	log   *zap.Logger
}

// NewDispatcher 创建指令分发器
func NewDispatcher(link *LinkManager, slots *SlotTable) *Dispatcher {
	return &Dispatcher{
		link:  link,
		slots: slots,
		log:   logger.GetModuleLogger("serial"),
	}
}

// Unlock 下发开锁指令
// 未知柜门编号返回校验错误，不产生任何串口写入；
// 链路未打开返回硬件未连接。
func (d *Dispatcher) Unlock(lockerID int) error {
	token, ok := d.slots.TokenFor(lockerID)
	if !ok {
		return errors.Newf(errors.ErrInvalidLocker, "柜门编号: %d", lockerID)
	}

	if err := d.link.WriteCommand(token); err != nil {
		d.log.Error("开锁指令下发失败",
			zap.Int("locker_id", lockerID),
			zap.Error(err))
		return err
	}

	d.log.Info("开锁指令已下发",
		zap.Int("locker_id", lockerID),
		zap.String("token", token))

	return nil
}
