// Package regimen maps a medication frequency and anchor time to the set of
// daily fire times. The mapping is a pure function with no I/O.
package regimen

import (
	"fmt"
	"strings"

	"github.com/medtrack/medtrackd/internal/errors"
)

// Repeat is how the fire times recur.
type Repeat string

const (
	RepeatDaily  Repeat = "daily"
	RepeatWeekly Repeat = "weekly"
	RepeatNone   Repeat = "none"
)

// Recognized frequency labels.
const (
	OnceDaily       = "Once daily"
	Bedtime         = "Bedtime"
	TwiceDaily      = "Twice daily"
	Every12Hours    = "Every 12 hours"
	ThreeTimesDaily = "Three times daily"
	Every8Hours     = "Every 8 hours"
	FourTimesDaily  = "Four times daily"
	Every6Hours     = "Every 6 hours"
	Every4Hours     = "Every 4 hours"
	BeforeMeals     = "Before meals"
	AfterMeals      = "After meals"
	Weekly          = "Weekly"
	AsNeeded        = "As needed"
)

// Time is a wall-clock minute of day.
type Time struct {
	Hour   int
	Minute int
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the minute-of-day in [0, 1440).
func (t Time) Minutes() int {
	return t.Hour*60 + t.Minute
}

// add shifts t by m minutes over the 24-hour modular clock.
func (t Time) add(m int) Time {
	total := ((t.Minutes()+m)%1440 + 1440) % 1440
	return Time{Hour: total / 60, Minute: total % 60}
}

// ParseAnchor parses an HH:MM anchor time.
func ParseAnchor(anchor string) (Time, error) {
	var h, m int
	if _, err := fmt.Sscanf(anchor, "%d:%d", &h, &m); err != nil {
		return Time{}, errors.Wrap(err, errors.ErrInvalidAnchor.Code, fmt.Sprintf("cannot parse %q", anchor))
	}
	if len(anchor) != 5 || anchor[2] != ':' || h < 0 || h > 23 || m < 0 || m > 59 {
		return Time{}, errors.New(errors.ErrInvalidAnchor.Code, fmt.Sprintf("anchor %q out of range", anchor))
	}
	return Time{Hour: h, Minute: m}, nil
}

// Schedule is the derived fire-time set for one medication.
type Schedule struct {
	Times  []Time
	Repeat Repeat
}

// Strings returns the fire times as HH:MM strings, in schedule order, or nil
// for an empty schedule.
func (s Schedule) Strings() []string {
	if len(s.Times) == 0 {
		return nil
	}
	out := make([]string, len(s.Times))
	for i, t := range s.Times {
		out[i] = t.String()
	}
	return out
}

// intervalCounts maps interval-style frequencies to (count, step minutes).
var intervalCounts = map[string]struct {
	count int
	step  int
}{
	normalize(OnceDaily):       {1, 0},
	normalize(Bedtime):         {1, 0},
	normalize(TwiceDaily):      {2, 12 * 60},
	normalize(Every12Hours):    {2, 12 * 60},
	normalize(ThreeTimesDaily): {3, 8 * 60},
	normalize(Every8Hours):     {3, 8 * 60},
	normalize(FourTimesDaily):  {4, 6 * 60},
	normalize(Every6Hours):     {4, 6 * 60},
	normalize(Every4Hours):     {6, 4 * 60},

	// Numeric aliases accepted from free-text entry.
	"2 times daily": {2, 12 * 60},
	"3 times daily": {3, 8 * 60},
	"4 times daily": {4, 6 * 60},
}

// mealPresets are fixed times that ignore the anchor.
var mealPresets = map[string][]Time{
	normalize(BeforeMeals): {{7, 30}, {12, 0}, {18, 0}},
	normalize(AfterMeals):  {{8, 30}, {13, 0}, {19, 0}},
}

// Times computes the fire-time schedule for a frequency at the given anchor.
// Times are emitted anchor-first in generation order; that order defines the
// reminder index carried in notification payloads. Unknown frequencies fall
// back to once daily.
func Times(frequency, anchor string) (Schedule, error) {
	key := normalize(frequency)

	if key == normalize(AsNeeded) {
		return Schedule{Times: nil, Repeat: RepeatNone}, nil
	}
	if preset, ok := mealPresets[key]; ok {
		times := make([]Time, len(preset))
		copy(times, preset)
		return Schedule{Times: times, Repeat: RepeatDaily}, nil
	}

	a, err := ParseAnchor(anchor)
	if err != nil {
		return Schedule{}, err
	}

	if key == normalize(Weekly) {
		return Schedule{Times: []Time{a}, Repeat: RepeatWeekly}, nil
	}

	counts, ok := intervalCounts[key]
	if !ok {
		counts = intervalCounts[normalize(OnceDaily)]
	}

	times := make([]Time, 0, counts.count)
	for i := 0; i < counts.count; i++ {
		times = append(times, a.add(i*counts.step))
	}
	return Schedule{Times: times, Repeat: RepeatDaily}, nil
}

// DailyDoses returns the expected dose count per day for a frequency, clipped
// to a minimum of 1 so callers can divide by it.
func DailyDoses(frequency string) int {
	key := normalize(frequency)
	if preset, ok := mealPresets[key]; ok {
		return len(preset)
	}
	if counts, ok := intervalCounts[key]; ok {
		return counts.count
	}
	// Weekly, as-needed, and unknown frequencies count as one.
	return 1
}

// normalize folds a user-facing frequency label for lookup. Parenthesized
// abbreviations like "(TID)" are stripped.
func normalize(frequency string) string {
	s := strings.ToLower(strings.TrimSpace(frequency))
	if i := strings.Index(s, "("); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
