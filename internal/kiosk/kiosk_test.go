package kiosk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/laundry-kiosk/internal/config"
	"github.com/wfunc/laundry-kiosk/internal/errors"
)

func testLockerConfigs() []config.LockerConfig {
	return []config.LockerConfig{
		{ID: 1, Slot: 1, UnlockToken: "1", Size: "标准柜", Capacity: "8kg"},
		{ID: 2, Slot: 2, UnlockToken: "2", Size: "标准柜", Capacity: "8kg"},
	}
}

func newTestKiosk(t *testing.T) *Kiosk {
	server := testBridgeServer(t, &StatusResponse{Connected: true}, nil)
	client := NewClient(testClientConfig(server.URL))
	return NewKiosk(client, testClientConfig(server.URL), testLockerConfigs())
}

func TestKioskInitialLockers(t *testing.T) {
	k := newTestKiosk(t)

	lockers := k.Lockers()
	require.Len(t, lockers, 2)
	assert.Equal(t, LockerAvailable, lockers[0].Status)
	assert.Equal(t, LockerAvailable, lockers[1].Status)
	assert.Len(t, k.AvailableLockers(), 2)
	assert.Empty(t, k.OccupiedLockers())
}

func TestKioskHandleUpdateOverwritesSensors(t *testing.T) {
	k := newTestKiosk(t)

	k.handleUpdate(&StatusResponse{
		Lockers: map[int]LockerReading{
			1: {Door: "OPEN", Weight: 3.2},
		},
		Credit: 15.0,
	})

	lockers := k.Lockers()
	assert.Equal(t, "OPEN", lockers[0].DoorStatus)
	assert.Equal(t, 3.2, lockers[0].Weight)
	assert.False(t, k.Disconnected())
}

func TestKioskStaleFlag(t *testing.T) {
	k := newTestKiosk(t)

	k.handleStale()
	assert.True(t, k.Disconnected())

	// 恢复更新后清除失联标记
	k.handleUpdate(&StatusResponse{})
	assert.False(t, k.Disconnected())
}

func TestKioskSingleSession(t *testing.T) {
	k := newTestKiosk(t)

	_, err := k.StartDropOff(1)
	require.NoError(t, err)

	// 同一时刻只允许一个会话
	_, err = k.StartDropOff(2)
	assert.True(t, errors.Is(err, errors.ErrSessionActive))

	k.CancelSession()
	_, err = k.StartDropOff(2)
	require.NoError(t, err)
}

func TestKioskDropOffValidation(t *testing.T) {
	k := newTestKiosk(t)

	_, err := k.StartDropOff(99)
	assert.True(t, errors.Is(err, errors.ErrInvalidLocker))

	_, err = k.StartPickup(1)
	assert.True(t, errors.Is(err, errors.ErrLockerEmpty))
}

func TestKioskFullCycle(t *testing.T) {
	k := newTestKiosk(t)

	// 存衣
	session, err := k.StartDropOff(1)
	require.NoError(t, err)
	require.NoError(t, k.OpenLocker(context.Background()))
	assert.Equal(t, StateWeighing, session.State())

	session.ApplyStatus(LockerReading{Door: "OPEN", Weight: 3.2}, 0)
	require.NoError(t, session.ForceWeighed())

	pin, err := k.ConfirmDropOff()
	require.NoError(t, err)
	require.Len(t, pin, 4)

	// 柜门转为占用并记下价格
	assert.Nil(t, k.ActiveSession())
	occupied := k.OccupiedLockers()
	require.Len(t, occupied, 1)
	assert.Equal(t, 1, occupied[0].ID)
	assert.Equal(t, 80.0, occupied[0].Price)

	// 取衣
	pickup, err := k.StartPickup(1)
	require.NoError(t, err)

	pickup.ApplyStatus(LockerReading{}, 0)
	require.NoError(t, pickup.VerifyPIN(pin))
	pickup.ApplyStatus(LockerReading{}, 80.0)

	require.NoError(t, k.CompletePickup(context.Background()))

	// 柜门恢复可用，取件码清空
	assert.Nil(t, k.ActiveSession())
	available := k.AvailableLockers()
	require.Len(t, available, 2)
	lockers := k.Lockers()
	assert.Equal(t, 0.0, lockers[0].Price)
	assert.Empty(t, lockers[0].PIN)
}

func TestKioskCompletePickupRequiresPayment(t *testing.T) {
	k := newTestKiosk(t)

	session, err := k.StartDropOff(1)
	require.NoError(t, err)
	require.NoError(t, k.OpenLocker(context.Background()))
	session.ApplyStatus(LockerReading{Weight: 2.0}, 0)
	require.NoError(t, session.ForceWeighed())
	pin, err := k.ConfirmDropOff()
	require.NoError(t, err)

	pickup, err := k.StartPickup(1)
	require.NoError(t, err)
	pickup.ApplyStatus(LockerReading{}, 0)
	require.NoError(t, pickup.VerifyPIN(pin))

	// 没投够钱不能结束取衣
	err = k.CompletePickup(context.Background())
	assert.True(t, errors.Is(err, errors.ErrPaymentIncomplete))
	assert.Equal(t, StatePayment, pickup.State())
}

func TestKioskSessionReceivesPolledStatus(t *testing.T) {
	k := newTestKiosk(t)

	session, err := k.StartDropOff(1)
	require.NoError(t, err)
	require.NoError(t, k.OpenLocker(context.Background()))

	// 轮询到的读数按槽位转发给会话
	k.handleUpdate(&StatusResponse{
		Lockers: map[int]LockerReading{
			1: {Door: "OPEN", Weight: 2.5},
		},
	})
	assert.Equal(t, 2.5, session.LiveWeight())
}

func TestKioskStartStop(t *testing.T) {
	server := testBridgeServer(t, &StatusResponse{
		Lockers:   map[int]LockerReading{1: {Door: "OPEN", Weight: 1.5}},
		Connected: true,
	}, nil)
	cfg := testClientConfig(server.URL)
	cfg.PollInterval = 10 * time.Millisecond
	k := NewKiosk(NewClient(cfg), cfg, testLockerConfigs())

	k.Start()
	// 重复启动是无操作
	k.Start()

	// 轮询启动后传感器读数陆续覆盖进来
	require.Eventually(t, func() bool {
		return k.Lockers()[0].DoorStatus == "OPEN"
	}, time.Second, 10*time.Millisecond)

	k.Stop()
	k.Stop()
}
