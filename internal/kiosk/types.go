package kiosk

import "time"

// ProcessType 业务流程类型
type ProcessType string

const (
	ProcessDropOff ProcessType = "dropoff"
	ProcessPickup  ProcessType = "pickup"
)

// LockerStatus 柜门业务状态
type LockerStatus string

const (
	LockerAvailable LockerStatus = "available"
	LockerOccupied  LockerStatus = "occupied"
)

// Locker 柜门业务状态（终端侧）
// Weight和DoorStatus由轮询持续从硬件快照覆盖；
// Status、Price、PIN、ReadyTime是业务事实，只有交易状态机会改。
type Locker struct {
	ID       int          `json:"id"`
	Slot     int          `json:"-"` // 对应的物理槽位
	Size     string       `json:"size"`
	Capacity string       `json:"capacity"`
	Status   LockerStatus `json:"status"`

	Weight     float64 `json:"weight"`
	DoorStatus string  `json:"door_status"`

	Price     float64 `json:"price,omitempty"`
	ReadyTime string  `json:"ready_time,omitempty"`
	PIN       string  `json:"-"` // 永不序列化
}

// LockerReading 单个柜门的传感器读数（桥接服务返回）
type LockerReading struct {
	Door   string  `json:"door"`
	Weight float64 `json:"weight"`
}

// StatusResponse 桥接服务的状态响应
type StatusResponse struct {
	Lockers   map[int]LockerReading `json:"lockers"`
	Credit    float64               `json:"credit"`
	Connected bool                  `json:"connected"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// PaymentStatus 支付进度
type PaymentStatus struct {
	Price     float64 `json:"price"`
	Cash      float64 `json:"cash"`
	Remaining float64 `json:"remaining"`
	Change    float64 `json:"change"`
	Complete  bool    `json:"complete"`
}
