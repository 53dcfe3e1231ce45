// Package router translates user responses on fired reminders into log
// writes, inventory decrements, and snooze re-arms. It is the only component
// allowed to write adherence logs from notification events.
package router

import (
	"time"

	"github.com/medtrack/medtrackd/internal/adherence"
	"github.com/medtrack/medtrackd/internal/inventory"
	"github.com/medtrack/medtrackd/internal/metrics"
	"github.com/medtrack/medtrackd/internal/notify"
	"github.com/medtrack/medtrackd/internal/store"
	"go.uber.org/zap"
)

// Snoozer is the one scheduler capability the router needs. Injecting it
// keeps the router ignorant of the scheduler's full surface.
type Snoozer interface {
	SnoozeReminder(p notify.Payload, delay time.Duration) error
}

// Session resolves the signed-in user. An empty id means no session.
type Session interface {
	UserID() string
}

// Result is what the UI shows after an action is routed.
type Result struct {
	Handled          bool   `json:"handled"`
	Toast            string `json:"toast,omitempty"`
	OpenMedicationID string `json:"open_medication_id,omitempty"`
}

// Router dispatches notification responses.
type Router struct {
	logs      *adherence.Service
	inventory *inventory.Engine
	store     *store.Store
	snoozer   Snoozer
	session   Session
	snooze    time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func New(logs *adherence.Service, inv *inventory.Engine, st *store.Store, snoozer Snoozer, session Session, snooze time.Duration, m *metrics.Metrics, logger *zap.Logger) *Router {
	return &Router{
		logs:      logs,
		inventory: inv,
		store:     st,
		snoozer:   snoozer,
		session:   session,
		snooze:    snooze,
		metrics:   m,
		logger:    logger,
	}
}

// HandleAction routes one user response. A missing session is recoverable:
// the write is dropped and the user is re-prompted on next app open.
func (r *Router) HandleAction(action notify.Action, p notify.Payload) (Result, error) {
	r.metrics.ActionsRouted.WithLabelValues(string(action)).Inc()

	userID := r.session.UserID()
	if userID == "" && action != notify.ActionOpen {
		r.logger.Warn("Dropping notification action, no session",
			zap.String("action", string(action)),
			zap.String("medication_id", p.MedicationID),
		)
		return Result{}, nil
	}

	switch action {
	case notify.ActionTakeNow:
		return r.takeNow(userID, p)
	case notify.ActionSkip:
		return r.skip(userID, p)
	case notify.ActionSnooze:
		if err := r.snoozer.SnoozeReminder(p, r.snooze); err != nil {
			return Result{}, err
		}
		return Result{Handled: true, Toast: "Snoozed"}, nil
	case notify.ActionOpen:
		return Result{Handled: true, OpenMedicationID: p.MedicationID}, nil
	default:
		r.logger.Warn("Unknown notification action", zap.String("action", string(action)))
		return Result{}, nil
	}
}

func (r *Router) takeNow(userID string, p notify.Payload) (Result, error) {
	if _, err := r.logs.Upsert(adherence.UpsertParams{
		MedicationID: p.MedicationID,
		UserID:       userID,
		Status:       store.StatusTaken,
	}); err != nil {
		return Result{}, err
	}

	// The decrement is best effort: a medication deleted underfoot drops
	// the action quietly.
	med, err := r.store.GetMedication(p.MedicationID)
	if err != nil {
		r.logger.Error("Inventory lookup failed", zap.Error(err))
	} else if med == nil {
		r.logger.Debug("Medication gone, skipping decrement", zap.String("medication_id", p.MedicationID))
	} else if err := r.inventory.RecordDose(med); err != nil {
		r.logger.Error("Inventory decrement failed", zap.Error(err))
	}

	return Result{Handled: true, Toast: "Taken"}, nil
}

func (r *Router) skip(userID string, p notify.Payload) (Result, error) {
	if _, err := r.logs.Upsert(adherence.UpsertParams{
		MedicationID: p.MedicationID,
		UserID:       userID,
		Status:       store.StatusSkipped,
	}); err != nil {
		return Result{}, err
	}
	return Result{Handled: true, Toast: "Skipped"}, nil
}
