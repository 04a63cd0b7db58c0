package hardware

import (
	"fmt"
	"sort"
	"time"

	"github.com/wfunc/laundry-kiosk/internal/config"
)

// 门磁状态的原始取值。固件还可能上报其他字符串，解码器原样透传。
const (
	DoorOpen   = "OPEN"
	DoorClosed = "CLOSED"
)

// LockerSensorState 单个柜门的传感器状态
type LockerSensorState struct {
	Door   string  `json:"door"`
	Weight float64 `json:"weight"`
}

// Snapshot 硬件状态快照（状态接口对外暴露的完整读数）
type Snapshot struct {
	Lockers   map[int]LockerSensorState `json:"lockers"`
	Credit    float64                   `json:"credit"`
	Connected bool                      `json:"connected"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Slot 柜门编号与物理槽位的对应关系
type Slot struct {
	LockerID    int
	SlotNo      int
	UnlockToken string
}

// SlotTable 柜门槽位映射表
// 解码器按槽位查找，指令分发器按柜号查找，两边共用同一张表。
type SlotTable struct {
	byLocker map[int]Slot
	bySlot   map[int]Slot
}

// NewSlotTable 根据配置构建槽位映射表
func NewSlotTable(lockers []config.LockerConfig) (*SlotTable, error) {
	if len(lockers) == 0 {
		return nil, fmt.Errorf("柜门配置表为空")
	}

	t := &SlotTable{
		byLocker: make(map[int]Slot, len(lockers)),
		bySlot:   make(map[int]Slot, len(lockers)),
	}

	for _, lc := range lockers {
		if lc.UnlockToken == "" {
			return nil, fmt.Errorf("柜门%d缺少开锁指令", lc.ID)
		}
		if _, ok := t.byLocker[lc.ID]; ok {
			return nil, fmt.Errorf("柜门编号重复: %d", lc.ID)
		}
		if _, ok := t.bySlot[lc.Slot]; ok {
			return nil, fmt.Errorf("物理槽位重复: %d", lc.Slot)
		}
		slot := Slot{LockerID: lc.ID, SlotNo: lc.Slot, UnlockToken: lc.UnlockToken}
		t.byLocker[lc.ID] = slot
		t.bySlot[lc.Slot] = slot
	}

	return t, nil
}

// TokenFor 查找柜门对应的开锁指令
func (t *SlotTable) TokenFor(lockerID int) (string, bool) {
	slot, ok := t.byLocker[lockerID]
	if !ok {
		return "", false
	}
	return slot.UnlockToken, true
}

// HasSlot 检查物理槽位是否存在
func (t *SlotTable) HasSlot(slotNo int) bool {
	_, ok := t.bySlot[slotNo]
	return ok
}

// Slots 返回所有物理槽位（升序）
func (t *SlotTable) Slots() []int {
	slots := make([]int, 0, len(t.bySlot))
	for s := range t.bySlot {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	return slots
}

// LockerIDs 返回所有柜门编号（升序）
func (t *SlotTable) LockerIDs() []int {
	ids := make([]int, 0, len(t.byLocker))
	for id := range t.byLocker {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
