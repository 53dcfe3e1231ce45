package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKey_Format(t *testing.T) {
	c := &FixedClock{Instant: time.Date(2025, 3, 5, 23, 45, 0, 0, time.UTC)}

	assert.Equal(t, "2025-03-05", c.Today())
	assert.Equal(t, "2025-03-05", c.DayKey(c.Instant))
}

func TestDayKey_ZeroPadded(t *testing.T) {
	c := &FixedClock{Instant: time.Date(2025, 1, 2, 0, 0, 1, 0, time.UTC)}
	assert.Equal(t, "2025-01-02", c.Today())
}

func TestStartOfWeek_SundayStart(t *testing.T) {
	// Wednesday 2025-03-05 -> week starts Sunday 2025-03-02.
	c := &FixedClock{Instant: time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)}

	start := c.StartOfWeek(c.Instant)
	assert.Equal(t, time.Sunday, start.Weekday())
	assert.Equal(t, "2025-03-02", c.DayKey(start))
	assert.Equal(t, 0, start.Hour())
}

func TestStartOfWeek_OnSunday(t *testing.T) {
	c := &FixedClock{Instant: time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)}
	start := c.StartOfWeek(c.Instant)
	assert.Equal(t, "2025-03-02", c.DayKey(start))
}

func TestParseDayKey_RoundTrip(t *testing.T) {
	parsed, err := ParseDayKey("2025-12-31", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-12-31", parsed.Format(DayKeyLayout))
}

func TestParseDayKey_Invalid(t *testing.T) {
	_, err := ParseDayKey("31-12-2025", time.UTC)
	assert.Error(t, err)
}

func TestAddDays(t *testing.T) {
	next, err := AddDays("2025-02-28", 1, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", next)

	prev, err := AddDays("2025-01-01", -1, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", prev)
}

func TestNewSystem_InvalidZone(t *testing.T) {
	_, err := NewSystem("Not/AZone")
	assert.Error(t, err)
}
