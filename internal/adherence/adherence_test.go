package adherence

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/medtrack/medtrackd/internal/clock"
	"github.com/medtrack/medtrackd/internal/errors"
	"github.com/medtrack/medtrackd/internal/metrics"
	"github.com/medtrack/medtrackd/internal/store"
)

func setupService(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	st, err := store.New(db)
	require.NoError(t, err)

	logger, _ := zap.NewDevelopment()
	clk := &clock.FixedClock{Instant: time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)}
	return New(st, clk, metrics.New(prometheus.NewRegistry()), logger)
}

func TestUpsert_DefaultsToToday(t *testing.T) {
	s := setupService(t)

	entry, err := s.Upsert(UpsertParams{
		MedicationID: "med_1",
		UserID:       "u",
		Status:       store.StatusTaken,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-05", entry.LogDate)
	assert.Equal(t, store.StatusTaken, entry.Status)
	assert.False(t, entry.LoggedAt.IsZero())
}

func TestUpsert_RejectsUnknownStatus(t *testing.T) {
	s := setupService(t)

	_, err := s.Upsert(UpsertParams{MedicationID: "med_1", UserID: "u", Status: "forgot"})
	assert.Equal(t, errors.ErrInvalidStatus, err)
}

func TestUpsert_RejectsBadDayKey(t *testing.T) {
	s := setupService(t)

	_, err := s.Upsert(UpsertParams{
		MedicationID: "med_1", UserID: "u",
		Status: store.StatusTaken, LogDate: "05/03/2025",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidDayKey.Code, errors.GetCode(err))
}

func TestUpsert_LaterStatusWins(t *testing.T) {
	s := setupService(t)

	_, err := s.Upsert(UpsertParams{
		MedicationID: "med_1", UserID: "u", Status: store.StatusSkipped,
		LoggedAt: time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	entry, err := s.Upsert(UpsertParams{
		MedicationID: "med_1", UserID: "u", Status: store.StatusTaken,
		LoggedAt: time.Date(2025, 3, 5, 8, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, store.StatusTaken, entry.Status)

	entries, err := s.ListByUser("u", "", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestCountByStatus(t *testing.T) {
	s := setupService(t)

	for i, status := range []string{store.StatusTaken, store.StatusTaken, store.StatusMissed} {
		_, err := s.Upsert(UpsertParams{
			MedicationID: string(rune('a' + i)),
			UserID:       "u",
			Status:       status,
		})
		require.NoError(t, err)
	}

	taken, err := s.CountByStatus("u", store.StatusTaken, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, taken)

	_, err = s.CountByStatus("u", "unknown", "", "")
	assert.Equal(t, errors.ErrInvalidStatus, err)
}
