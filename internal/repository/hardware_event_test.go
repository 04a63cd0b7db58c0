package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/laundry-kiosk/internal/models"
)

func TestHardwareEventCreate(t *testing.T) {
	repo := NewHardwareEventRepository(TestDB(t))

	event := &models.HardwareEvent{
		Direction: models.DirectionRX,
		Line:      "L1: [OPEN] Wt: 3.2",
	}
	require.NoError(t, repo.Create(event))

	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.NotZero(t, event.Timestamp)
}

func TestHardwareEventQuery(t *testing.T) {
	repo := NewHardwareEventRepository(TestDB(t))

	require.NoError(t, repo.CreateBatch([]*models.HardwareEvent{
		{Direction: models.DirectionRX, Line: "TOTAL CREDIT: 15.00"},
		{Direction: models.DirectionRX, Line: "L1: [OPEN] Wt: 3.2"},
		{Direction: models.DirectionTX, Line: "1"},
	}))

	// 全量查询
	events, total, err := repo.Query(&models.HardwareEventQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, events, 3)

	// 按方向过滤
	events, total, err = repo.Query(&models.HardwareEventQuery{Direction: models.DirectionTX})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.Equal(t, "1", events[0].Line)

	// 分页
	events, total, err = repo.Query(&models.HardwareEventQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, events, 2)
}

func TestHardwareEventGetLatest(t *testing.T) {
	repo := NewHardwareEventRepository(TestDB(t))

	for _, line := range []string{"CREDIT: 1", "CREDIT: 2", "CREDIT: 3"} {
		require.NoError(t, repo.Create(&models.HardwareEvent{
			Direction: models.DirectionRX,
			Line:      line,
		}))
	}

	events, err := repo.GetLatest(2, "")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestHardwareEventCleanup(t *testing.T) {
	repo := NewHardwareEventRepository(TestDB(t))

	old := &models.HardwareEvent{
		Direction: models.DirectionRX,
		Line:      "CREDIT: 1",
		CreatedAt: time.Now().AddDate(0, 0, -60),
		Timestamp: time.Now().AddDate(0, 0, -60).UnixMilli(),
	}
	require.NoError(t, repo.Create(old))
	require.NoError(t, repo.Create(&models.HardwareEvent{
		Direction: models.DirectionRX,
		Line:      "CREDIT: 2",
	}))

	deleted, err := repo.CleanupEvents(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, total, err := repo.Query(&models.HardwareEventQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	// 保留天数必须为正
	_, err = repo.CleanupEvents(0)
	assert.Error(t, err)
}

func TestEventWriter(t *testing.T) {
	repo := NewHardwareEventRepository(TestDB(t))
	writer := NewEventWriter(repo)

	writer.Record(models.DirectionRX, "L1: [OPEN] Wt: 3.2")
	writer.Record(models.DirectionTX, "1")
	writer.Close()

	_, total, err := repo.Query(&models.HardwareEventQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestEventWriterCloseIdempotent(t *testing.T) {
	writer := NewEventWriter(NewHardwareEventRepository(TestDB(t)))
	writer.Close()
	writer.Close()
}
