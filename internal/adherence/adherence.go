// Package adherence is the append-or-overwrite log of medication outcomes,
// keyed by (medication, local day).
package adherence

import (
	"time"

	"github.com/medtrack/medtrackd/internal/clock"
	"github.com/medtrack/medtrackd/internal/errors"
	"github.com/medtrack/medtrackd/internal/metrics"
	"github.com/medtrack/medtrackd/internal/store"
	"go.uber.org/zap"
)

// Service validates and persists adherence entries.
type Service struct {
	store   *store.Store
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(st *store.Store, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{store: st, clock: clk, metrics: m, logger: logger}
}

// UpsertParams describe one log write.
type UpsertParams struct {
	MedicationID string
	UserID       string
	LogDate      string // day key; empty means today
	Status       string
	LoggedAt     time.Time // zero means now
	Notes        string
}

// Upsert writes the entry for (medication, day). Repeating the same write is
// a no-op; a later logged_at replaces status, an earlier one is dropped.
func (s *Service) Upsert(p UpsertParams) (*store.AdherenceEntry, error) {
	if !store.ValidStatus(p.Status) {
		return nil, errors.ErrInvalidStatus
	}
	if p.LogDate == "" {
		p.LogDate = s.clock.Today()
	} else if _, err := clock.ParseDayKey(p.LogDate, s.clock.Location()); err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidDayKey.Code, "bad log date")
	}
	if p.LoggedAt.IsZero() {
		p.LoggedAt = s.clock.Now()
	}

	entry, err := s.store.UpsertLog(&store.AdherenceEntry{
		MedicationID: p.MedicationID,
		UserID:       p.UserID,
		LogDate:      p.LogDate,
		Status:       p.Status,
		LoggedAt:     p.LoggedAt,
		Notes:        p.Notes,
	})
	if err != nil {
		s.metrics.StoreErrors.Inc()
		return nil, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "log upsert failed")
	}

	s.metrics.LogWrites.WithLabelValues(p.Status).Inc()
	s.logger.Debug("Adherence entry written",
		zap.String("medication_id", p.MedicationID),
		zap.String("log_date", p.LogDate),
		zap.String("status", entry.Status),
	)
	return entry, nil
}

// ListByUser returns entries in the [from, to] day-key range; empty bounds
// are open ended.
func (s *Service) ListByUser(userID, from, to string) ([]store.AdherenceEntry, error) {
	entries, err := s.store.ListLogsByUser(userID, from, to)
	if err != nil {
		s.metrics.StoreErrors.Inc()
		return nil, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "log list failed")
	}
	return entries, nil
}

// CountByStatus counts a user's entries with the given status in a range.
func (s *Service) CountByStatus(userID, status, from, to string) (int, error) {
	if !store.ValidStatus(status) {
		return 0, errors.ErrInvalidStatus
	}
	n, err := s.store.CountLogsByStatus(userID, status, from, to)
	if err != nil {
		s.metrics.StoreErrors.Inc()
		return 0, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "log count failed")
	}
	return n, nil
}
