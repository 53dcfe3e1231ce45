// Package clock is the single authority for "now" and day boundaries.
// Every day bucket, streak window, and weekly bucket in the engine must go
// through DayKey so that all components agree on which calendar day an
// instant belongs to.
package clock

import (
	"fmt"
	"time"
)

// DayKeyLayout is the persisted day identity format, zero-padded, in the
// user-visible zone.
const DayKeyLayout = "2006-01-02"

// Clock provides the current time and day-boundary helpers in a fixed zone.
type Clock interface {
	Now() time.Time
	DayKey(t time.Time) string
	Today() string
	// StartOfWeek returns midnight of the Sunday starting the week containing t.
	StartOfWeek(t time.Time) time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock and projects into a configured zone.
type SystemClock struct {
	loc *time.Location
}

// NewSystem creates a SystemClock for the named zone. An empty name means the
// device's local zone.
func NewSystem(timezone string) (*SystemClock, error) {
	if timezone == "" {
		return &SystemClock{loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &SystemClock{loc: loc}, nil
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *SystemClock) DayKey(t time.Time) string {
	return t.In(c.loc).Format(DayKeyLayout)
}

func (c *SystemClock) Today() string {
	return c.DayKey(c.Now())
}

func (c *SystemClock) StartOfWeek(t time.Time) time.Time {
	return startOfWeek(t.In(c.loc))
}

func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// FixedClock returns a constant instant. Used by tests to pin day boundaries.
type FixedClock struct {
	Instant time.Time
}

func (c *FixedClock) Now() time.Time {
	return c.Instant
}

func (c *FixedClock) DayKey(t time.Time) string {
	return t.In(c.Instant.Location()).Format(DayKeyLayout)
}

func (c *FixedClock) Today() string {
	return c.DayKey(c.Instant)
}

func (c *FixedClock) StartOfWeek(t time.Time) time.Time {
	return startOfWeek(t.In(c.Instant.Location()))
}

func (c *FixedClock) Location() *time.Location {
	return c.Instant.Location()
}

func startOfWeek(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// ParseDayKey parses a YYYY-MM-DD string in the given location.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DayKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}

// AddDays shifts a day key by n calendar days.
func AddDays(key string, n int, loc *time.Location) (string, error) {
	t, err := ParseDayKey(key, loc)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DayKeyLayout), nil
}
