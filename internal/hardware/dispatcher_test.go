package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/laundry-kiosk/internal/config"
	"github.com/wfunc/laundry-kiosk/internal/errors"
)

func TestDispatcherUnlock(t *testing.T) {
	link, port, _ := newTestLink(t, nil)
	defer link.Stop()

	d := NewDispatcher(link, testSlotTable(t))

	require.NoError(t, d.Unlock(1))
	require.NoError(t, d.Unlock(2))

	assert.Equal(t, []string{"1\n", "2\n"}, port.Commands())
}

func TestDispatcherUnknownLocker(t *testing.T) {
	link, port, _ := newTestLink(t, nil)
	defer link.Stop()

	d := NewDispatcher(link, testSlotTable(t))

	// 未知柜门编号：返回校验错误，串口上不产生任何写入
	err := d.Unlock(99)
	assert.True(t, errors.Is(err, errors.ErrInvalidLocker))
	assert.Empty(t, port.Commands())
}

func TestDispatcherHardwareUnavailable(t *testing.T) {
	store := NewStore(testSlotTable(t))
	link := NewLinkManager(config.SerialConfig{Enabled: false}, store, nil)
	require.NoError(t, link.Start())

	d := NewDispatcher(link, testSlotTable(t))

	err := d.Unlock(1)
	assert.True(t, errors.Is(err, errors.ErrHardwareUnavailable))
}
