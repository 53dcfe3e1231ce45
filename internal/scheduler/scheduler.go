// Package scheduler keeps the device-local reminder set consistent with the
// active regimens. It is the sole owner of the notification schedule; no
// other component installs or revokes handles.
package scheduler

import (
	"sync"
	"time"

	"github.com/medtrack/medtrackd/internal/clock"
	"github.com/medtrack/medtrackd/internal/errors"
	"github.com/medtrack/medtrackd/internal/metrics"
	"github.com/medtrack/medtrackd/internal/notify"
	"github.com/medtrack/medtrackd/internal/regimen"
	"github.com/medtrack/medtrackd/internal/store"
	"go.uber.org/zap"
)

// DefaultSnooze is the standard snooze interval, overridable via settings.
const DefaultSnooze = 10 * time.Minute

// Scheduler reconciles medications onto the notifier.
type Scheduler struct {
	notifier notify.Notifier
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// mu serializes reconciliation so a half-replaced schedule is never
	// observable through ListFor.
	mu sync.Mutex
}

// New creates a Scheduler over the given notifier.
func New(notifier notify.Notifier, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		notifier: notifier,
		clock:    clk,
		metrics:  m,
		logger:   logger,
	}
}

// Install makes the installed handle set for med exactly mirror its regimen:
// one handle per fire time, repeating daily or weekly. Any previous handles
// for the medication are revoked first, so Install is idempotent. Inactive
// and as-needed medications end up with no handles.
func (s *Scheduler) Install(med *store.Medication) error {
	if !s.notifier.Permission() {
		return errors.ErrPermissionDenied
	}

	var sched regimen.Schedule
	if med.IsActive {
		var err error
		sched, err = regimen.Times(med.Frequency, med.AnchorTime)
		if err != nil {
			return errors.Wrap(err, errors.ErrInvalidRegimen.Code, "cannot derive fire times")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.revokeLocked(med.ID)

	installed := make([]notify.Handle, 0, len(sched.Times))
	for i, t := range sched.Times {
		payload := s.payloadFor(med, i, len(sched.Times))

		var (
			handle notify.Handle
			err    error
		)
		switch sched.Repeat {
		case regimen.RepeatWeekly:
			handle, err = s.notifier.ScheduleWeekly(s.weekdayFor(med), t.Hour, t.Minute, payload)
		default:
			handle, err = s.notifier.ScheduleDaily(t.Hour, t.Minute, payload)
		}
		if err != nil {
			for _, h := range installed {
				s.notifier.Cancel(h)
			}
			return errors.Wrap(err, errors.ErrScheduleFailed.Code, "trigger install failed")
		}
		installed = append(installed, handle)
		s.metrics.RemindersInstalled.Inc()
	}

	s.logger.Info("Reminders installed",
		zap.String("medication_id", med.ID),
		zap.String("frequency", med.Frequency),
		zap.Int("handles", len(installed)),
	)
	return nil
}

// Revoke removes every handle carrying the medication id, one-shots included.
func (s *Scheduler) Revoke(medicationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeLocked(medicationID)
}

// RevokeAll clears every handle owned by this process.
func (s *Scheduler) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.notifier.List() {
		if s.notifier.Cancel(entry.Handle) == nil {
			s.metrics.RemindersRevoked.Inc()
		}
	}
}

func (s *Scheduler) revokeLocked(medicationID string) {
	for _, entry := range s.notifier.List() {
		if entry.Payload.MedicationID != medicationID {
			continue
		}
		if s.notifier.Cancel(entry.Handle) == nil {
			s.metrics.RemindersRevoked.Inc()
		}
	}
}

// ListFor returns the installed repeating fire times for a medication as
// HH:MM strings. One-shot snoozes are not part of the schedule binding.
func (s *Scheduler) ListFor(medicationID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var times []string
	for _, entry := range s.notifier.List() {
		if entry.Payload.MedicationID != medicationID || entry.Repeat == notify.RepeatOneShot {
			continue
		}
		times = append(times, regimen.Time{Hour: entry.Hour, Minute: entry.Minute}.String())
	}
	return times
}

// Snooze schedules a one-shot reminder for med after delay, leaving the
// repeating set untouched.
func (s *Scheduler) Snooze(med *store.Medication, delay time.Duration) error {
	if !s.notifier.Permission() {
		return errors.ErrPermissionDenied
	}
	if delay <= 0 {
		delay = DefaultSnooze
	}

	sched, err := regimen.Times(med.Frequency, med.AnchorTime)
	if err != nil {
		return errors.Wrap(err, errors.ErrInvalidRegimen.Code, "cannot derive fire times")
	}

	if _, err := s.notifier.ScheduleOneShot(delay, s.payloadFor(med, 0, len(sched.Times))); err != nil {
		return errors.Wrap(err, errors.ErrScheduleFailed.Code, "snooze install failed")
	}
	s.metrics.Snoozes.Inc()

	s.logger.Info("Reminder snoozed",
		zap.String("medication_id", med.ID),
		zap.Duration("delay", delay),
	)
	return nil
}

// SnoozeReminder re-arms a fired reminder from its own payload, avoiding any
// store round-trip. The repeating set is untouched.
func (s *Scheduler) SnoozeReminder(p notify.Payload, delay time.Duration) error {
	if !s.notifier.Permission() {
		return errors.ErrPermissionDenied
	}
	if delay <= 0 {
		delay = DefaultSnooze
	}

	if _, err := s.notifier.ScheduleOneShot(delay, p); err != nil {
		return errors.Wrap(err, errors.ErrScheduleFailed.Code, "snooze install failed")
	}
	s.metrics.Snoozes.Inc()
	return nil
}

func (s *Scheduler) payloadFor(med *store.Medication, index, total int) notify.Payload {
	return notify.Payload{
		MedicationID:   med.ID,
		Name:           med.Name,
		Dosage:         med.Dosage,
		DosageUnit:     med.DosageUnit,
		Notes:          med.Notes,
		Type:           notify.CategoryMedicationReminder,
		ReminderIndex:  index,
		TotalReminders: total,
	}
}

// weekdayFor picks the weekly fire weekday from the medication's start date,
// falling back to today's weekday when the start date is absent or malformed.
func (s *Scheduler) weekdayFor(med *store.Medication) time.Weekday {
	if med.StartDate != "" {
		if t, err := clock.ParseDayKey(med.StartDate, s.clock.Location()); err == nil {
			return t.Weekday()
		}
	}
	return s.clock.Now().Weekday()
}
