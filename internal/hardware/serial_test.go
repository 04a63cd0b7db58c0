package hardware

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
	"github.com/wfunc/laundry-kiosk/internal/config"
	"github.com/wfunc/laundry-kiosk/internal/errors"
)

// recordingSink 测试用事件记录器
type recordingSink struct {
	mu      sync.Mutex
	entries []string
}

func (s *recordingSink) Record(direction string, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, direction+" "+line)
}

func (s *recordingSink) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

func newTestLink(t *testing.T, sink EventSink) (*LinkManager, *MockPort, *Store) {
	store := NewStore(testSlotTable(t))
	port := NewMockPort()

	link := NewLinkManager(config.SerialConfig{
		Enabled:  true,
		Port:     "/dev/ttyTEST",
		BaudRate: 9600,
	}, store, sink)
	link.openPort = func(*serial.Config) (io.ReadWriteCloser, error) {
		return port, nil
	}

	require.NoError(t, link.Start())
	return link, port, store
}

func TestLinkReadsTelemetry(t *testing.T) {
	sink := &recordingSink{}
	link, port, store := newTestLink(t, sink)
	defer link.Stop()

	port.FeedLine("L1: [OPEN] Wt: 3.2")
	port.FeedLine("TOTAL CREDIT: 15.00")

	require.Eventually(t, func() bool {
		s := store.Snapshot()
		return s.Credit == 15.00 && s.Lockers[1].Door == "OPEN"
	}, time.Second, 10*time.Millisecond)

	assert.True(t, store.Snapshot().Connected)
	assert.Contains(t, sink.Entries(), "RX L1: [OPEN] Wt: 3.2")
}

func TestLinkWriteCommand(t *testing.T) {
	sink := &recordingSink{}
	link, port, _ := newTestLink(t, sink)
	defer link.Stop()

	require.NoError(t, link.WriteCommand("1"))

	// 指令带换行结尾
	assert.Equal(t, []string{"1\n"}, port.Commands())
	assert.Contains(t, sink.Entries(), "TX 1")
}

func TestLinkWriteWhenClosed(t *testing.T) {
	store := NewStore(testSlotTable(t))
	link := NewLinkManager(config.SerialConfig{Enabled: false}, store, nil)

	require.NoError(t, link.Start())

	err := link.WriteCommand("1")
	assert.True(t, errors.Is(err, errors.ErrHardwareUnavailable))
	assert.Equal(t, LinkClosed, link.State())
}

func TestLinkOpenFailureNotFatal(t *testing.T) {
	store := NewStore(testSlotTable(t))
	link := NewLinkManager(config.SerialConfig{
		Enabled:  true,
		Port:     "/dev/ttyMISSING",
		BaudRate: 9600,
	}, store, nil)
	link.openPort = func(*serial.Config) (io.ReadWriteCloser, error) {
		return nil, io.ErrUnexpectedEOF
	}

	// 打不开串口时Start不报错，链路进入错误态
	require.NoError(t, link.Start())
	assert.Equal(t, LinkError, link.State())
	assert.False(t, store.Snapshot().Connected)
}

func TestLinkStopIdempotent(t *testing.T) {
	link, _, store := newTestLink(t, nil)

	link.Stop()
	link.Stop()

	assert.Equal(t, LinkClosed, link.State())
	assert.False(t, store.Snapshot().Connected)
}
