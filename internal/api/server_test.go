package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/medtrack/medtrackd/internal/access"
	"github.com/medtrack/medtrackd/internal/adherence"
	"github.com/medtrack/medtrackd/internal/analytics"
	"github.com/medtrack/medtrackd/internal/clock"
	"github.com/medtrack/medtrackd/internal/config"
	"github.com/medtrack/medtrackd/internal/inventory"
	"github.com/medtrack/medtrackd/internal/metrics"
	"github.com/medtrack/medtrackd/internal/notify"
	"github.com/medtrack/medtrackd/internal/router"
	"github.com/medtrack/medtrackd/internal/scheduler"
	"github.com/medtrack/medtrackd/internal/store"
)

type testSession struct {
	userID string
}

func (s *testSession) Set(userID string) { s.userID = userID }
func (s *testSession) Clear()            { s.userID = "" }
func (s *testSession) UserID() string    { return s.userID }

func setupServer(t *testing.T) *Server {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	st, err := store.New(db)
	require.NoError(t, err)

	logger, _ := zap.NewDevelopment()
	clk := &clock.FixedClock{Instant: time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)}
	m := metrics.New(prometheus.NewRegistry())

	notifier := notify.NewLocal(clk.Location(), logger)
	notifier.SetPermission(true)
	t.Cleanup(notifier.Stop)

	sched := scheduler.New(notifier, clk, m, logger)
	adher := adherence.New(st, clk, m, logger)
	inv := inventory.New(st, logger)
	anal := analytics.New(st, clk, analytics.DefaultAllTimeDays, logger)
	acc := access.New(st)
	session := &testSession{}
	rtr := router.New(adher, inv, st, sched, session, 10*time.Minute, m, logger)

	cfg := &config.Config{
		Server:    config.ServerConfig{Address: "127.0.0.1", Port: 8080, ReadTimeout: 30, WriteTimeout: 30},
		Security:  config.SecurityConfig{JWTSecret: "test-secret", AllowOrigins: []string{"*"}},
		Clock:     config.ClockConfig{Timezone: "UTC"},
		Reminders: config.RemindersConfig{SnoozeMinutes: 10},
		Analytics: config.AnalyticsConfig{AllTimeDays: 90},
		Inventory: config.InventoryConfig{DefaultLowStockThreshold: 5},
	}

	return New(cfg, Deps{
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
}

func request(t *testing.T, s *Server, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.App().Test(req, 5000)
	require.NoError(t, err)

	var parsed map[string]interface{}
	data, _ := io.ReadAll(resp.Body)
	json.Unmarshal(data, &parsed)
	return resp, parsed
}

func login(t *testing.T, s *Server, userID string) string {
	resp, body := request(t, s, "POST", "/api/auth/login", "", map[string]string{"user_id": userID})
	require.Equal(t, 200, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealth(t *testing.T) {
	s := setupServer(t)
	resp, body := request(t, s, "GET", "/api/health", "", nil)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthRequired(t *testing.T) {
	s := setupServer(t)
	resp, _ := request(t, s, "GET", "/api/medications", "", nil)
	assert.Equal(t, 401, resp.StatusCode)

	resp, _ = request(t, s, "GET", "/api/medications", "not-a-token", nil)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestLogin_CreatesProfile(t *testing.T) {
	s := setupServer(t)
	login(t, s, "patient-1")

	profile, err := s.deps.Store.GetProfile("patient-1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, store.RolePatient, profile.Role)
}

func TestLogin_RateLimited(t *testing.T) {
	s := setupServer(t)

	// Drain the burst allowance. All of these go through.
	for i := 0; i < loginBurst; i++ {
		resp, _ := request(t, s, "POST", "/api/auth/login", "", map[string]string{
			"user_id": fmt.Sprintf("patient-%d", i),
		})
		require.Equal(t, 200, resp.StatusCode)
	}

	resp, body := request(t, s, "POST", "/api/auth/login", "", map[string]string{"user_id": "patient-x"})
	assert.Equal(t, 429, resp.StatusCode)
	assert.Contains(t, body["error"], "too many login attempts")
}

func TestMedicationLifecycle(t *testing.T) {
	s := setupServer(t)
	token := login(t, s, "patient-1")

	resp, created := request(t, s, "POST", "/api/medications", token, map[string]interface{}{
		"medication_name": "Aspirin",
		"dosage":          "100",
		"dosage_unit":     "mg",
		"frequency":       "Twice daily",
		"reminder_time":   "08:00",
	})
	require.Equal(t, 201, resp.StatusCode)
	medID, _ := created["id"].(string)
	require.NotEmpty(t, medID)
	assert.Equal(t, "2025-03-05", created["start_date"])

	// Install happened on create.
	resp, reminders := request(t, s, "GET", "/api/medications/"+medID+"/reminders", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	times, _ := reminders["times"].([]interface{})
	assert.Len(t, times, 2)

	// Deactivate revokes.
	resp, _ = request(t, s, "DELETE", "/api/medications/"+medID, token, nil)
	require.Equal(t, 204, resp.StatusCode)

	resp, reminders = request(t, s, "GET", "/api/medications/"+medID+"/reminders", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	times, _ = reminders["times"].([]interface{})
	assert.Empty(t, times)
}

func TestCreateMedication_RejectsInvalidRegimen(t *testing.T) {
	s := setupServer(t)
	token := login(t, s, "patient-1")

	cases := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"malformed anchor", map[string]interface{}{
			"medication_name": "Aspirin",
			"frequency":       "Once daily",
			"reminder_time":   "8am",
		}},
		{"missing anchor", map[string]interface{}{
			"medication_name": "Aspirin",
			"frequency":       "Twice daily",
		}},
		{"non-numeric dosage", map[string]interface{}{
			"medication_name": "Aspirin",
			"dosage":          "one tablet",
			"frequency":       "Once daily",
			"reminder_time":   "08:00",
		}},
		{"expiry before start", map[string]interface{}{
			"medication_name": "Aspirin",
			"frequency":       "Once daily",
			"reminder_time":   "08:00",
			"start_date":      "2025-03-05",
			"expiry_date":     "2025-03-01",
		}},
		{"quantity above total", map[string]interface{}{
			"medication_name":  "Aspirin",
			"frequency":        "Once daily",
			"reminder_time":    "08:00",
			"total_quantity":   30,
			"current_quantity": 45,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := request(t, s, "POST", "/api/medications", token, tc.payload)
			assert.Equal(t, 400, resp.StatusCode)
		})
	}

	// Nothing was persisted.
	meds, err := s.deps.Store.ListMedications("patient-1", false)
	require.NoError(t, err)
	assert.Empty(t, meds)
}

func TestUpdateMedication_RejectsInvalidAnchor(t *testing.T) {
	s := setupServer(t)
	token := login(t, s, "patient-1")

	resp, created := request(t, s, "POST", "/api/medications", token, map[string]interface{}{
		"medication_name": "Aspirin",
		"frequency":       "Once daily",
		"reminder_time":   "08:00",
	})
	require.Equal(t, 201, resp.StatusCode)
	medID := created["id"].(string)

	resp, _ = request(t, s, "PUT", "/api/medications/"+medID, token, map[string]interface{}{
		"medication_name": "Aspirin",
		"frequency":       "Once daily",
		"reminder_time":   "8am",
	})
	assert.Equal(t, 400, resp.StatusCode)

	med, err := s.deps.Store.GetMedication(medID)
	require.NoError(t, err)
	assert.Equal(t, "08:00", med.AnchorTime)
}

func TestSubjectAccessDenied(t *testing.T) {
	s := setupServer(t)
	login(t, s, "patient-1")
	caregiverToken := login(t, s, "caregiver-1")

	resp, _ := request(t, s, "GET", "/api/medications?subject=patient-1", caregiverToken, nil)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestSubjectAccessGranted(t *testing.T) {
	s := setupServer(t)
	login(t, s, "patient-1")
	caregiverToken := login(t, s, "caregiver-1")

	conn := &store.CaregiverConnection{PatientID: "patient-1", CaregiverID: "caregiver-1"}
	require.NoError(t, s.deps.Store.CreateConnection(conn))
	require.NoError(t, s.deps.Store.UpdateConnectionStatus(conn.ID, store.ConnectionActive))

	resp, _ := request(t, s, "GET", "/api/medications?subject=patient-1", caregiverToken, nil)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestUpsertLog(t *testing.T) {
	s := setupServer(t)
	token := login(t, s, "patient-1")

	resp, created := request(t, s, "POST", "/api/medications", token, map[string]interface{}{
		"medication_name": "Aspirin",
		"frequency":       "Once daily",
		"reminder_time":   "08:00",
	})
	require.Equal(t, 201, resp.StatusCode)
	medID := created["id"].(string)

	resp, entry := request(t, s, "POST", "/api/logs", token, map[string]string{
		"medication_id": medID,
		"status":        "taken",
	})
	require.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "taken", entry["status"])
	assert.Equal(t, "2025-03-05", entry["log_date"])

	resp, _ = request(t, s, "POST", "/api/logs", token, map[string]string{
		"medication_id": medID,
		"status":        "not-a-status",
	})
	assert.Equal(t, 400, resp.StatusCode)
}

func TestNotificationActionEndpoint(t *testing.T) {
	s := setupServer(t)
	token := login(t, s, "patient-1")

	resp, created := request(t, s, "POST", "/api/medications", token, map[string]interface{}{
		"medication_name":  "Aspirin",
		"frequency":        "Once daily",
		"reminder_time":    "08:00",
		"total_quantity":   30,
		"current_quantity": 30,
	})
	require.Equal(t, 201, resp.StatusCode)
	medID := created["id"].(string)

	resp, result := request(t, s, "POST", "/api/notifications/action", token, map[string]interface{}{
		"action": "TAKE_NOW",
		"payload": map[string]interface{}{
			"medication_id": medID,
			"name":          "Aspirin",
		},
	})
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, true, result["handled"])
	assert.Equal(t, "Taken", result["toast"])

	entry, err := s.deps.Store.GetLog(medID, "2025-03-05")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, store.StatusTaken, entry.Status)
}

func TestAnalyticsSummaryEndpoint(t *testing.T) {
	s := setupServer(t)
	token := login(t, s, "patient-1")

	resp, summary := request(t, s, "GET", "/api/analytics/summary", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, summary, "rates")
	assert.Contains(t, summary, "insights")
}

func TestSafetyReportEndpoint(t *testing.T) {
	s := setupServer(t)
	token := login(t, s, "patient-1")

	for _, name := range []string{"Aspirin", "Warfarin"} {
		resp, _ := request(t, s, "POST", "/api/medications", token, map[string]interface{}{
			"medication_name": name,
			"frequency":       "Once daily",
			"reminder_time":   "09:00",
		})
		require.Equal(t, 201, resp.StatusCode)
	}

	resp, report := request(t, s, "GET", "/api/safety/report", token, nil)
	require.Equal(t, 200, resp.StatusCode)
	interactions, _ := report["interactions"].([]interface{})
	assert.Len(t, interactions, 1)
}

func TestConnectionFlow(t *testing.T) {
	s := setupServer(t)
	patientToken := login(t, s, "patient-1")
	caregiverToken := login(t, s, "caregiver-1")

	// Patient publishes a connection code.
	resp, _ := request(t, s, "PUT", "/api/profile", patientToken, map[string]string{
		"display_name":    "Pat",
		"connection_code": "CODE123",
	})
	require.Equal(t, 200, resp.StatusCode)

	// Caregiver requests access by code.
	resp, conn := request(t, s, "POST", "/api/connections", caregiverToken, map[string]string{
		"connection_code": "CODE123",
	})
	require.Equal(t, 201, resp.StatusCode)
	connID := conn["id"].(string)
	assert.Equal(t, store.ConnectionPending, conn["status"])

	// Caregiver cannot accept their own request.
	resp, _ = request(t, s, "POST", fmt.Sprintf("/api/connections/%s/accept", connID), caregiverToken, nil)
	assert.Equal(t, 403, resp.StatusCode)

	// Patient accepts; caregiver now reads the patient's medications.
	resp, _ = request(t, s, "POST", fmt.Sprintf("/api/connections/%s/accept", connID), patientToken, nil)
	require.Equal(t, 200, resp.StatusCode)

	resp, _ = request(t, s, "GET", "/api/medications?subject=patient-1", caregiverToken, nil)
	assert.Equal(t, 200, resp.StatusCode)
}
