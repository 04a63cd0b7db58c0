package hardware

import (
	"sync"
	"time"
)

// Store 硬件状态存储
// 进程内唯一的硬件快照：串口读循环写入，HTTP状态接口读取。
// 一行遥测的所有字段更新在同一次加锁内完成，读方看到的永远是
// 整行应用后的状态，不会读到半行。
type Store struct {
	mu      sync.RWMutex
	decoder *Decoder

	lockers   map[int]LockerSensorState
	credit    float64
	connected bool
	updatedAt time.Time
}

// NewStore 创建硬件状态存储
// 所有已配置槽位初始化为门关、零重量。槽位集合固定，运行期不增不减。
func NewStore(slots *SlotTable) *Store {
	lockers := make(map[int]LockerSensorState)
	for _, s := range slots.Slots() {
		lockers[s] = LockerSensorState{Door: DoorClosed, Weight: 0}
	}

	return &Store{
		decoder: NewDecoder(slots),
		lockers: lockers,
	}
}

// ApplyLine 解码并应用一行遥测
// 纯覆盖语义：同一行喂两次和喂一次结果相同。
func (s *Store) ApplyLine(line string) {
	updates := s.decoder.Decode(line)
	if len(updates) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		switch u.Kind {
		case UpdateCredit:
			s.credit = u.Value
		case UpdateDoor:
			st := s.lockers[u.Slot]
			st.Door = u.Door
			s.lockers[u.Slot] = st
		case UpdateWeight:
			st := s.lockers[u.Slot]
			st.Weight = u.Value
			s.lockers[u.Slot] = st
		}
	}
	s.updatedAt = time.Now()
}

// SetConnected 更新串口连接状态
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// Snapshot 返回当前快照的副本
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lockers := make(map[int]LockerSensorState, len(s.lockers))
	for k, v := range s.lockers {
		lockers[k] = v
	}

	return Snapshot{
		Lockers:   lockers,
		Credit:    s.credit,
		Connected: s.connected,
		UpdatedAt: s.updatedAt,
	}
}
