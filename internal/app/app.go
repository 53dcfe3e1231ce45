package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/medtrack/medtrackd/internal/access"
	"github.com/medtrack/medtrackd/internal/adherence"
	"github.com/medtrack/medtrackd/internal/analytics"
	"github.com/medtrack/medtrackd/internal/api"
	"github.com/medtrack/medtrackd/internal/clock"
	"github.com/medtrack/medtrackd/internal/config"
	"github.com/medtrack/medtrackd/internal/inventory"
	"github.com/medtrack/medtrackd/internal/metrics"
	"github.com/medtrack/medtrackd/internal/notify"
	"github.com/medtrack/medtrackd/internal/router"
	"github.com/medtrack/medtrackd/internal/scheduler"
	"github.com/medtrack/medtrackd/internal/store"
)

// App wires the engine together and owns its lifecycle.
type App struct {
	Config    *config.Config
	Store     *store.Store
	Clock     clock.Clock
	Notifier  *notify.Local
	Scheduler *scheduler.Scheduler
	Adherence *adherence.Service
	Analytics *analytics.Service
	Inventory *inventory.Engine
	Access    *access.Checker
	Router    *router.Router
	Session   *Session
	Metrics   *metrics.Metrics
	Server    *api.Server
	Logger    *zap.Logger
	Version   string
}

// New builds the full engine from configuration.
func New(cfg *config.Config, logger *zap.Logger, version string) (*App, error) {
	clk, err := clock.NewSystem(cfg.Clock.Timezone)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(cfg.Storage.SQLitePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	st, err := store.New(db)
	if err != nil {
		return nil, err
	}

	m := metrics.Default()

	// The daemon owns its notification surface, so permission is granted.
	notifier := notify.NewLocal(clk.Location(), logger)
	notifier.SetPermission(true)

	sched := scheduler.New(notifier, clk, m, logger)
	adher := adherence.New(st, clk, m, logger)
	inv := inventory.New(st, logger)
	anal := analytics.New(st, clk, cfg.Analytics.AllTimeDays, logger)
	acc := access.New(st)
	session := NewSession()

	snooze := time.Duration(cfg.Reminders.SnoozeMinutes) * time.Minute
	rtr := router.New(adher, inv, st, sched, session, snooze, m, logger)

	a := &App{
		Config:    cfg,
		Store:     st,
		Clock:     clk,
		Notifier:  notifier,
		Scheduler: sched,
		Adherence: adher,
		Analytics: anal,
		Inventory: inv,
		Access:    acc,
		Router:    rtr,
		Session:   session,
		Metrics:   m,
		Logger:    logger,
		Version:   version,
	}

	notifier.OnFire(func(p notify.Payload) {
		m.NotificationsFired.Inc()
		logger.Info("Reminder fired",
			zap.String("medication_id", p.MedicationID),
			zap.String("medication_name", p.Name),
			zap.Int("reminder_index", p.ReminderIndex),
		)
	})
	notifier.OnAction(func(action notify.Action, p notify.Payload) {
		if _, err := rtr.HandleAction(action, p); err != nil {
			logger.Error("Notification action failed",
				zap.String("action", string(action)),
				zap.String("medication_id", p.MedicationID),
				zap.Error(err),
			)
		}
	})

	a.Server = api.New(cfg, api.Deps{
		Store:     st,
		Clock:     clk,
		Scheduler: sched,
		Adherence: adher,
		Analytics: anal,
		Inventory: inv,
		Access:    acc,
		Router:    rtr,
		Session:   session,
	}, logger)

	return a, nil
}

// Reconcile installs reminders for every active medication of every profile.
// Runs at startup so the device schedule matches the store after restarts.
func (a *App) Reconcile() error {
	profiles, err := a.Store.ListProfiles()
	if err != nil {
		return err
	}

	installed := 0
	for _, profile := range profiles {
		meds, err := a.Store.ListMedications(profile.UserID, true)
		if err != nil {
			return err
		}
		for i := range meds {
			if err := a.Scheduler.Install(&meds[i]); err != nil {
				a.Logger.Warn("Reminder install failed during reconcile",
					zap.String("medication_id", meds[i].ID),
					zap.Error(err),
				)
				continue
			}
			installed++
		}
	}

	a.Logger.Info("Reminder reconcile complete", zap.Int("medications", installed))
	return nil
}

// RunServer starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) RunServer() {
	if err := a.Reconcile(); err != nil {
		a.Logger.Error("Startup reconcile failed", zap.Error(err))
	}

	go func() {
		if err := a.Server.Start(); err != nil {
			a.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	a.Logger.Info("Server started",
		zap.String("address", a.Config.Server.Address),
		zap.Int("port", a.Config.Server.Port),
		zap.String("version", a.Version),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.Logger.Info("Shutting down...")
	a.Shutdown()
}

// Shutdown stops the server and the notification engine.
func (a *App) Shutdown() {
	if a.Server != nil {
		if err := a.Server.Shutdown(); err != nil {
			a.Logger.Error("Server shutdown failed", zap.Error(err))
		}
	}
	if a.Notifier != nil {
		a.Notifier.Stop()
	}
}
