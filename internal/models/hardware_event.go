package models

import (
	"time"

	"gorm.io/gorm"
)

// 事件方向
const (
	DirectionRX = "RX" // 主控板上报的遥测
	DirectionTX = "TX" // 下发的指令
)

// HardwareEvent 硬件事件日志
// 每一行收到的遥测和每一条发出的指令都记一条，只追加不修改。
type HardwareEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`

	Direction string `gorm:"type:varchar(4);index;not null" json:"direction"`
	Line      string `gorm:"type:text" json:"line"`
	Timestamp int64  `gorm:"index" json:"timestamp"` // Unix时间戳（毫秒）
}

// TableName 指定表名
func (HardwareEvent) TableName() string {
	return "hardware_events"
}

// BeforeCreate 创建前的钩子
func (e *HardwareEvent) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	return nil
}

// HardwareEventQuery 查询参数
type HardwareEventQuery struct {
	Direction string     `json:"direction,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}
