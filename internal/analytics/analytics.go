// Package analytics derives the adherence read model from medications and
// logs. Nothing here is cached or persisted; every metric is recomputed on
// demand, and independent metrics are computed in parallel.
package analytics

import (
	"context"
	"math"
	"sync"

	"github.com/medtrack/medtrackd/internal/clock"
	"github.com/medtrack/medtrackd/internal/errors"
	"github.com/medtrack/medtrackd/internal/regimen"
	"github.com/medtrack/medtrackd/internal/store"
	"go.uber.org/zap"
)

// Window sizes in days. The all-time window defaults to 90 days and is
// configurable; the source material disagreed with itself (90 vs 365) and 90
// is the pinned choice.
const (
	WindowDaily        = 1
	WindowWeekly       = 7
	WindowMonthly      = 30
	DefaultAllTimeDays = 90

	// StreakCap bounds the backward walk.
	StreakCap = 30

	complianceWindowDays = 30
)

// Time-of-day buckets by anchor hour.
const (
	BucketMorning   = "morning"   // [6, 12)
	BucketAfternoon = "afternoon" // [12, 17)
	BucketEvening   = "evening"   // [17, 21)
	BucketNight     = "night"     // [21, 24) and [0, 6)
)

// Service computes the read model.
type Service struct {
	store       *store.Store
	clock       clock.Clock
	allTimeDays int
	logger      *zap.Logger
}

func New(st *store.Store, clk clock.Clock, allTimeDays int, logger *zap.Logger) *Service {
	if allTimeDays <= 0 {
		allTimeDays = DefaultAllTimeDays
	}
	return &Service{store: st, clock: clk, allTimeDays: allTimeDays, logger: logger}
}

// Rates holds the adherence percentages over the standard windows.
type Rates struct {
	Daily   int `json:"daily"`
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
	AllTime int `json:"all_time"`
}

// BucketRate is the compliance for one time-of-day bucket.
type BucketRate struct {
	Bucket      string `json:"bucket"`
	Medications int    `json:"medications"`
	Taken       int    `json:"taken"`
	Total       int    `json:"total"`
	Rate        int    `json:"rate"`
}

// DayPattern is one weekday's counts within the current week.
type DayPattern struct {
	Day     string `json:"day"` // day key
	Weekday string `json:"weekday"`
	Taken   int    `json:"taken"`
	Missed  int    `json:"missed"`
	Skipped int    `json:"skipped"`
}

// Summary is the full read model for one user.
type Summary struct {
	Rates       Rates        `json:"rates"`
	Streak      int          `json:"streak"`
	PerfectDays int          `json:"perfect_days"`
	Buckets     []BucketRate `json:"time_of_day"`
	WeekPattern []DayPattern `json:"weekly_pattern"`
	Insights    []string     `json:"insights"`
}

// AdherenceRate computes the rate over the window of windowDays ending
// today: round(100 * taken / (windowDays * active)). The denominator counts
// one expected dose per medication per day regardless of the regimen's
// per-day dose count, matching the user-visible definition.
func (s *Service) AdherenceRate(ctx context.Context, userID string, windowDays int) (int, error) {
	if windowDays < 1 {
		return 0, errors.New(errors.ErrBadRequest.Code, "window must be at least one day")
	}

	active, err := s.store.CountActiveMedications(userID)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "active count failed")
	}
	expected := windowDays * active
	if expected == 0 {
		return 0, nil
	}

	today := s.clock.Today()
	from, err := clock.AddDays(today, -(windowDays - 1), s.clock.Location())
	if err != nil {
		return 0, err
	}
	taken, err := s.store.CountLogsByStatus(userID, store.StatusTaken, from, today)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "taken count failed")
	}

	return int(math.Round(100 * float64(taken) / float64(expected))), nil
}

// Streak walks backward from today counting consecutive perfect days, capped
// at StreakCap. A day is perfect when its taken count meets or exceeds the
// current active-medication count.
func (s *Service) Streak(ctx context.Context, userID string) (int, error) {
	active, err := s.store.CountActiveMedications(userID)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "active count failed")
	}
	if active == 0 {
		return 0, nil
	}

	today := s.clock.Today()
	from, err := clock.AddDays(today, -(StreakCap - 1), s.clock.Location())
	if err != nil {
		return 0, err
	}
	takenByDay, err := s.takenCounts(userID, from, today)
	if err != nil {
		return 0, err
	}

	streak := 0
	day := today
	for streak < StreakCap {
		if takenByDay[day] < active {
			break
		}
		streak++
		day, err = clock.AddDays(day, -1, s.clock.Location())
		if err != nil {
			return 0, err
		}
	}
	return streak, nil
}

// PerfectDays counts every day in history whose taken count meets or exceeds
// the current active-medication count. Days logged before a medication was
// added are over-credited by this definition; that behavior is user-visible
// and kept.
func (s *Service) PerfectDays(ctx context.Context, userID string) (int, error) {
	active, err := s.store.CountActiveMedications(userID)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "active count failed")
	}
	if active == 0 {
		return 0, nil
	}

	takenByDay, err := s.takenCounts(userID, "", "")
	if err != nil {
		return 0, err
	}

	perfect := 0
	for _, count := range takenByDay {
		if count >= active {
			perfect++
		}
	}
	return perfect, nil
}

// TimeOfDayCompliance buckets active medications by anchor hour and computes
// per-bucket taken/(taken+missed+skipped) over the last 30 days.
func (s *Service) TimeOfDayCompliance(ctx context.Context, userID string) ([]BucketRate, error) {
	meds, err := s.store.ListMedications(userID, true)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "medication list failed")
	}

	bucketByMed := make(map[string]string, len(meds))
	medCount := map[string]int{}
	for i := range meds {
		bucket := bucketFor(meds[i].AnchorTime)
		bucketByMed[meds[i].ID] = bucket
		medCount[bucket]++
	}

	today := s.clock.Today()
	from, err := clock.AddDays(today, -(complianceWindowDays - 1), s.clock.Location())
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListLogsByUser(userID, from, today)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "log list failed")
	}

	taken := map[string]int{}
	total := map[string]int{}
	for _, entry := range entries {
		bucket, ok := bucketByMed[entry.MedicationID]
		if !ok {
			continue
		}
		total[bucket]++
		if entry.Status == store.StatusTaken {
			taken[bucket]++
		}
	}

	out := make([]BucketRate, 0, 4)
	for _, bucket := range []string{BucketMorning, BucketAfternoon, BucketEvening, BucketNight} {
		rate := 0
		if total[bucket] > 0 {
			rate = int(math.Round(100 * float64(taken[bucket]) / float64(total[bucket])))
		}
		out = append(out, BucketRate{
			Bucket:      bucket,
			Medications: medCount[bucket],
			Taken:       taken[bucket],
			Total:       total[bucket],
			Rate:        rate,
		})
	}
	return out, nil
}

// WeeklyPattern reports per-status counts for each day of the current
// Sunday-start week.
func (s *Service) WeeklyPattern(ctx context.Context, userID string) ([]DayPattern, error) {
	weekStart := s.clock.StartOfWeek(s.clock.Now())
	from := s.clock.DayKey(weekStart)
	to := s.clock.DayKey(weekStart.AddDate(0, 0, 6))

	entries, err := s.store.ListLogsByUser(userID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "log list failed")
	}

	byDay := map[string]*DayPattern{}
	pattern := make([]DayPattern, 7)
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		key := s.clock.DayKey(day)
		pattern[i] = DayPattern{Day: key, Weekday: day.Weekday().String()}
		byDay[key] = &pattern[i]
	}

	for _, entry := range entries {
		slot, ok := byDay[entry.LogDate]
		if !ok {
			continue
		}
		switch entry.Status {
		case store.StatusTaken:
			slot.Taken++
		case store.StatusMissed:
			slot.Missed++
		case store.StatusSkipped:
			slot.Skipped++
		}
	}
	return pattern, nil
}

// Summary computes the full read model, running independent metrics
// concurrently. Cancellation is safe: nothing here mutates state.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	summary := &Summary{}
	var firstErr error
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(fn())
		}()
	}

	run(func() error {
		var err error
		summary.Rates.Daily, err = s.AdherenceRate(ctx, userID, WindowDaily)
		return err
	})
	run(func() error {
		var err error
		summary.Rates.Weekly, err = s.AdherenceRate(ctx, userID, WindowWeekly)
		return err
	})
	run(func() error {
		var err error
		summary.Rates.Monthly, err = s.AdherenceRate(ctx, userID, WindowMonthly)
		return err
	})
	run(func() error {
		var err error
		summary.Rates.AllTime, err = s.AdherenceRate(ctx, userID, s.allTimeDays)
		return err
	})
	run(func() error {
		var err error
		summary.Streak, err = s.Streak(ctx, userID)
		return err
	})
	run(func() error {
		var err error
		summary.PerfectDays, err = s.PerfectDays(ctx, userID)
		return err
	})
	run(func() error {
		var err error
		summary.Buckets, err = s.TimeOfDayCompliance(ctx, userID)
		return err
	})
	run(func() error {
		var err error
		summary.WeekPattern, err = s.WeeklyPattern(ctx, userID)
		return err
	})

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	summary.Insights = Insights(summary)
	return summary, nil
}

// takenCounts groups a user's taken entries by day key.
func (s *Service) takenCounts(userID, from, to string) (map[string]int, error) {
	entries, err := s.store.ListLogsByUser(userID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "log list failed")
	}

	counts := map[string]int{}
	for _, entry := range entries {
		if entry.Status == store.StatusTaken {
			counts[entry.LogDate]++
		}
	}
	return counts, nil
}

// bucketFor maps an HH:MM anchor to its time-of-day bucket. Unparseable
// anchors land in morning.
func bucketFor(anchor string) string {
	at, err := regimen.ParseAnchor(anchor)
	if err != nil {
		return BucketMorning
	}
	switch {
	case at.Hour >= 6 && at.Hour < 12:
		return BucketMorning
	case at.Hour >= 12 && at.Hour < 17:
		return BucketAfternoon
	case at.Hour >= 17 && at.Hour < 21:
		return BucketEvening
	default:
		return BucketNight
	}
}
