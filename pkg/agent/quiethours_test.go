package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 24, hour, minute, 0, 0, time.UTC)
}

func TestQuietHoursDisabledWhenUnset(t *testing.T) {
	q, err := NewQuietHours("", "", "")
	require.NoError(t, err)
	assert.False(t, q.Enabled())
	assert.False(t, q.Active(at(3, 0)))
}

func TestQuietHoursSameDayWindow(t *testing.T) {
	q, err := NewQuietHours("09:00", "17:30", "UTC")
	require.NoError(t, err)

	assert.False(t, q.Active(at(8, 59)))
	assert.True(t, q.Active(at(9, 0)))
	assert.True(t, q.Active(at(17, 29)))
	assert.False(t, q.Active(at(17, 30)))
}

func TestQuietHoursOvernightWraparound(t *testing.T) {
	q, err := NewQuietHours("22:00", "06:00", "UTC")
	require.NoError(t, err)

	assert.True(t, q.Active(at(23, 15)))
	assert.True(t, q.Active(at(2, 0)))
	assert.True(t, q.Active(at(5, 59)))
	assert.False(t, q.Active(at(6, 0)))
	assert.False(t, q.Active(at(12, 0)))
	assert.True(t, q.Active(at(22, 0)))
}

func TestQuietHoursTimezoneConversion(t *testing.T) {
	q, err := NewQuietHours("22:00", "06:00", "America/New_York")
	require.NoError(t, err)

	// 03:00 UTC on Aug 24 is 23:00 EDT the previous evening.
	assert.True(t, q.Active(at(3, 0)))
	// 16:00 UTC is 12:00 EDT, outside the window.
	assert.False(t, q.Active(at(16, 0)))
}

func TestDynamicQuietHoursFollowsSource(t *testing.T) {
	start, end := "", ""
	q, err := NewDynamicQuietHours(func() (string, string, string) {
		return start, end, "UTC"
	})
	require.NoError(t, err)
	assert.False(t, q.Active(at(3, 0)))

	// An override arrives at runtime and takes effect on the next check.
	start, end = "00:00", "23:59"
	assert.True(t, q.Enabled())
	assert.True(t, q.Active(at(3, 0)))
}

func TestDynamicQuietHoursKeepsLastGoodOnBadOverride(t *testing.T) {
	start := "22:00"
	q, err := NewDynamicQuietHours(func() (string, string, string) {
		return start, "06:00", "UTC"
	})
	require.NoError(t, err)
	require.True(t, q.Active(at(23, 0)))

	start = "25:99"
	assert.True(t, q.Active(at(23, 0)))

	// A corrected override replaces the stale window.
	start = "01:00"
	assert.False(t, q.Active(at(23, 0)))
	assert.True(t, q.Active(at(2, 0)))
}

func TestQuietHoursRejectsBadInput(t *testing.T) {
	_, err := NewQuietHours("25:00", "06:00", "UTC")
	assert.Error(t, err)
	_, err = NewQuietHours("22:00", "6pm", "UTC")
	assert.Error(t, err)
	_, err = NewQuietHours("22:00", "06:00", "Not/AZone")
	assert.Error(t, err)
}
