// Package inventory applies the pill-count policy: one unit per taken dose,
// low-stock classification, and a days-until-empty projection.
package inventory

import (
	"github.com/medtrack/medtrackd/internal/errors"
	"github.com/medtrack/medtrackd/internal/regimen"
	"github.com/medtrack/medtrackd/internal/store"
	"go.uber.org/zap"
)

// Level classifies a medication's stock.
type Level string

const (
	LevelNotTracked Level = "not_tracked"
	LevelOut        Level = "out"
	LevelLow        Level = "low"
	LevelGood       Level = "good"
)

// Engine mutates and classifies medication stock.
type Engine struct {
	store  *store.Store
	logger *zap.Logger
}

func New(st *store.Store, logger *zap.Logger) *Engine {
	return &Engine{store: st, logger: logger}
}

// RecordDose decrements one unit for a tracked medication. Untracked
// medications and empty bottles are left alone.
func (e *Engine) RecordDose(med *store.Medication) error {
	if !med.Tracked() || med.CurrentQuantity <= 0 {
		return nil
	}

	med.CurrentQuantity--
	if err := e.store.UpdateMedication(med); err != nil {
		return errors.Wrap(err, errors.ErrStoreUnavailable.Code, "quantity update failed")
	}

	if Classify(med) == LevelLow {
		e.logger.Warn("Medication low on stock",
			zap.String("medication_id", med.ID),
			zap.Int("current_quantity", med.CurrentQuantity),
			zap.Int("threshold", med.LowStockThreshold),
		)
	}
	return nil
}

// Classify buckets a medication's stock level.
func Classify(med *store.Medication) Level {
	if !med.Tracked() {
		return LevelNotTracked
	}
	switch {
	case med.CurrentQuantity == 0:
		return LevelOut
	case med.CurrentQuantity <= med.LowStockThreshold:
		return LevelLow
	default:
		return LevelGood
	}
}

// DaysUntilEmpty projects how many days the current stock lasts at the
// regimen's daily dose count.
func DaysUntilEmpty(med *store.Medication) int {
	return med.CurrentQuantity / regimen.DailyDoses(med.Frequency)
}

// Report is the stock view for one medication.
type Report struct {
	MedicationID    string `json:"medication_id"`
	Name            string `json:"medication_name"`
	Level           Level  `json:"level"`
	CurrentQuantity int    `json:"current_quantity"`
	TotalQuantity   int    `json:"total_quantity"`
	DaysUntilEmpty  int    `json:"days_until_empty"`
	RefillBy        string `json:"refill_by,omitempty"` // day key
}

// ReportsFor builds stock reports for the given medications.
func (e *Engine) ReportsFor(meds []store.Medication, addDays func(days int) string) []Report {
	return BuildReport(meds, addDays)
}

// BuildReport produces stock reports for the given medications. today is the
// current day key used to project refill_by.
func BuildReport(meds []store.Medication, addDays func(days int) string) []Report {
	reports := make([]Report, 0, len(meds))
	for i := range meds {
		med := &meds[i]
		r := Report{
			MedicationID:    med.ID,
			Name:            med.Name,
			Level:           Classify(med),
			CurrentQuantity: med.CurrentQuantity,
			TotalQuantity:   med.TotalQuantity,
		}
		if r.Level != LevelNotTracked {
			r.DaysUntilEmpty = DaysUntilEmpty(med)
			r.RefillBy = addDays(r.DaysUntilEmpty)
		}
		reports = append(reports, r)
	}
	return reports
}
