package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medtrack/medtrackd/internal/config"
	"github.com/medtrack/medtrackd/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address: "127.0.0.1", Port: 8080,
			ReadTimeout: 30, WriteTimeout: 30,
		},
		Storage:   config.StorageConfig{SQLitePath: filepath.Join(t.TempDir(), "test.db")},
		Security:  config.SecurityConfig{JWTSecret: "test-secret", AllowOrigins: []string{"*"}},
		Clock:     config.ClockConfig{Timezone: "UTC"},
		Reminders: config.RemindersConfig{SnoozeMinutes: 10},
		Analytics: config.AnalyticsConfig{AllTimeDays: 90},
		Inventory: config.InventoryConfig{DefaultLowStockThreshold: 5},
	}
}

func setupApp(t *testing.T) *App {
	logger, _ := zap.NewDevelopment()
	a, err := New(testConfig(t), logger, "test")
	require.NoError(t, err)
	t.Cleanup(a.Notifier.Stop)
	return a
}

func TestNew_WiresEverything(t *testing.T) {
	a := setupApp(t)

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Scheduler)
	assert.NotNil(t, a.Router)
	assert.NotNil(t, a.Server)
	assert.Equal(t, "test", a.Version)
}

func TestNew_InvalidTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Clock.Timezone = "Mars/Olympus"
	logger, _ := zap.NewDevelopment()

	_, err := New(cfg, logger, "test")
	assert.Error(t, err)
}

func TestReconcile_InstallsActiveMedications(t *testing.T) {
	a := setupApp(t)

	require.NoError(t, a.Store.SaveProfile(&store.UserProfile{UserID: "patient-1"}))
	med := &store.Medication{
		UserID: "patient-1", Name: "Aspirin",
		Frequency: "Twice daily", AnchorTime: "08:00", IsActive: true,
	}
	require.NoError(t, a.Store.CreateMedication(med))

	inactive := &store.Medication{
		UserID: "patient-1", Name: "Old med",
		Frequency: "Once daily", AnchorTime: "09:00", IsActive: true,
	}
	require.NoError(t, a.Store.CreateMedication(inactive))
	require.NoError(t, a.Store.DeactivateMedication(inactive.ID))

	require.NoError(t, a.Reconcile())

	assert.Len(t, a.Scheduler.ListFor(med.ID), 2)
	assert.Empty(t, a.Scheduler.ListFor(inactive.ID))
}

func TestSession_RoundTrip(t *testing.T) {
	s := NewSession()
	assert.Empty(t, s.UserID())

	s.Set("patient-1")
	assert.Equal(t, "patient-1", s.UserID())

	s.Clear()
	assert.Empty(t, s.UserID())
}
