package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/laundry-kiosk/internal/config"
)

func testSlotTable(t *testing.T) *SlotTable {
	slots, err := NewSlotTable([]config.LockerConfig{
		{ID: 1, Slot: 1, UnlockToken: "1"},
		{ID: 2, Slot: 2, UnlockToken: "2"},
	})
	require.NoError(t, err)
	return slots
}

func TestDecodeCredit(t *testing.T) {
	d := NewDecoder(testSlotTable(t))

	// 两个固件版本的投币行格式都要认识
	tests := []struct {
		line  string
		value float64
	}{
		{"TOTAL CREDIT: 15.00", 15.00},
		{"CREDIT:5", 5},
		{"CREDIT: 0", 0},
		{"  TOTAL CREDIT: 2.5  ", 2.5},
	}

	for _, tt := range tests {
		updates := d.Decode(tt.line)
		require.Len(t, updates, 1, "line: %s", tt.line)
		assert.Equal(t, UpdateCredit, updates[0].Kind)
		assert.Equal(t, tt.value, updates[0].Value)
	}
}

func TestDecodeLockerLine(t *testing.T) {
	d := NewDecoder(testSlotTable(t))

	// 门磁和重量同一行
	updates := d.Decode("L1: [OPEN] Wt: 3.2")
	require.Len(t, updates, 2)
	assert.Equal(t, UpdateDoor, updates[0].Kind)
	assert.Equal(t, 1, updates[0].Slot)
	assert.Equal(t, "OPEN", updates[0].Door)
	assert.Equal(t, UpdateWeight, updates[1].Kind)
	assert.Equal(t, 3.2, updates[1].Value)

	// 只有门磁，没有重量
	updates = d.Decode("L2: [CLOSED]")
	require.Len(t, updates, 1)
	assert.Equal(t, UpdateDoor, updates[0].Kind)
	assert.Equal(t, 2, updates[0].Slot)
	assert.Equal(t, "CLOSED", updates[0].Door)
}

func TestDecodeUnknownSlot(t *testing.T) {
	d := NewDecoder(testSlotTable(t))

	// 未配置的槽位整行丢弃
	updates := d.Decode("L9: [OPEN] Wt: 1.0")
	assert.Empty(t, updates)
}

func TestDecodeUnrecognizedLine(t *testing.T) {
	d := NewDecoder(testSlotTable(t))

	for _, line := range []string{
		"",
		"   ",
		"BOOT OK",
		"Lx: [OPEN]",
		"CREDIT: abc",
	} {
		assert.Empty(t, d.Decode(line), "line: %q", line)
	}
}

func TestDecodeFieldIndependence(t *testing.T) {
	d := NewDecoder(testSlotTable(t))

	// 重量字段坏了不影响门磁字段
	updates := d.Decode("L1: [OPEN] Wt: ---")
	require.Len(t, updates, 1)
	assert.Equal(t, UpdateDoor, updates[0].Kind)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input string
		value float64
		ok    bool
	}{
		{"3.2", 3.2, true},
		{"0", 0, true},
		{"15.00", 15, true},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		v, ok := parseDecimal(tt.input)
		assert.Equal(t, tt.ok, ok, "input: %q", tt.input)
		if tt.ok {
			assert.Equal(t, tt.value, v)
		}
	}
}
