package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/medtrack/medtrackd/internal/adherence"
	"github.com/medtrack/medtrackd/internal/clock"
	"github.com/medtrack/medtrackd/internal/errors"
	"github.com/medtrack/medtrackd/internal/notify"
	"github.com/medtrack/medtrackd/internal/regimen"
	"github.com/medtrack/medtrackd/internal/safety"
	"github.com/medtrack/medtrackd/internal/store"
)

// principal returns the authenticated user id set by the auth middleware.
func principal(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// subjectFor resolves the acted-on user: the principal by default, or the
// subject query parameter when an active caregiver edge allows it.
func (s *Server) subjectFor(c *fiber.Ctx) (string, error) {
	p := principal(c)
	subject := c.Query("subject", p)
	if err := s.deps.Access.Require(p, subject); err != nil {
		return "", err
	}
	return subject, nil
}

// httpError maps domain errors onto HTTP statuses.
func httpError(c *fiber.Ctx, err error) error {
	status := 500
	switch errors.GetCode(err) {
	case errors.ErrAccessDenied.Code, errors.ErrPermissionDenied.Code:
		status = 403
	case errors.ErrUnauthorized.Code, errors.ErrNoSession.Code:
		status = 401
	case errors.ErrNotFound.Code:
		status = 404
	case errors.ErrBadRequest.Code, errors.ErrInvalidRegimen.Code,
		errors.ErrInvalidAnchor.Code, errors.ErrInvalidStatus.Code,
		errors.ErrInvalidDayKey.Code:
		status = 400
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// ==================== Profile ====================

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	profile, err := s.deps.Store.GetProfile(principal(c))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load profile"})
	}
	if profile == nil {
		return c.Status(404).JSON(fiber.Map{"error": "profile not found"})
	}
	return c.JSON(profile)
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	var req struct {
		DisplayName    string `json:"display_name"`
		Allergies      string `json:"allergies"`
		ConnectionCode string `json:"connection_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}

	profile, err := s.deps.Store.GetProfile(principal(c))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load profile"})
	}
	if profile == nil {
		return c.Status(404).JSON(fiber.Map{"error": "profile not found"})
	}

	profile.DisplayName = req.DisplayName
	profile.Allergies = req.Allergies
	profile.ConnectionCode = req.ConnectionCode
	if err := s.deps.Store.SaveProfile(profile); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to save profile"})
	}
	return c.JSON(profile)
}

// ==================== Medications ====================

type medicationRequest struct {
	Name              string `json:"medication_name"`
	Dosage            string `json:"dosage"`
	DosageUnit        string `json:"dosage_unit"`
	Frequency         string `json:"frequency"`
	AnchorTime        string `json:"reminder_time"`
	Notes             string `json:"notes"`
	StartDate         string `json:"start_date"`
	ExpiryDate        string `json:"expiry_date"`
	TotalQuantity     int    `json:"total_quantity"`
	CurrentQuantity   int    `json:"current_quantity"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// validateRegimen rejects a malformed regimen before anything is persisted.
// The scheduler assumes these checks already hold, so an install after a
// valid create or update can only fail for notifier reasons.
func (s *Server) validateRegimen(req *medicationRequest) error {
	if req.Name == "" {
		return errors.New(errors.ErrInvalidRegimen.Code, "medication_name is required")
	}
	if req.Dosage != "" {
		if v, err := strconv.ParseFloat(req.Dosage, 64); err != nil || v <= 0 {
			return errors.New(errors.ErrInvalidRegimen.Code, "dosage must be a positive number")
		}
	}
	if req.AnchorTime != "" {
		if _, err := regimen.ParseAnchor(req.AnchorTime); err != nil {
			return err
		}
	}
	// Derivation catches frequencies that need an anchor but have none.
	if _, err := regimen.Times(req.Frequency, req.AnchorTime); err != nil {
		return err
	}

	loc := s.deps.Clock.Location()
	var start, expiry time.Time
	if req.StartDate != "" {
		t, err := clock.ParseDayKey(req.StartDate, loc)
		if err != nil {
			return errors.Wrap(err, errors.ErrInvalidRegimen.Code, "start_date must be YYYY-MM-DD")
		}
		start = t
	}
	if req.ExpiryDate != "" {
		t, err := clock.ParseDayKey(req.ExpiryDate, loc)
		if err != nil {
			return errors.Wrap(err, errors.ErrInvalidRegimen.Code, "expiry_date must be YYYY-MM-DD")
		}
		expiry = t
	}
	if !start.IsZero() && !expiry.IsZero() && expiry.Before(start) {
		return errors.New(errors.ErrInvalidRegimen.Code, "expiry_date must not precede start_date")
	}

	if req.TotalQuantity < 0 || req.CurrentQuantity < 0 {
		return errors.New(errors.ErrInvalidRegimen.Code, "quantities must not be negative")
	}
	if req.TotalQuantity > 0 && req.CurrentQuantity > req.TotalQuantity {
		return errors.New(errors.ErrInvalidRegimen.Code, "current_quantity exceeds total_quantity")
	}
	return nil
}

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	subject, err := s.subjectFor(c)
	if err != nil {
		return httpError(c, err)
	}

	activeOnly := !c.QueryBool("all", false)
	meds, err := s.deps.Store.ListMedications(subject, activeOnly)
	if err != nil {
		s.logger.Error("Failed to list medications", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to list medications"})
	}
	return c.JSON(meds)
}

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	subject, err := s.subjectFor(c)
	if err != nil {
		return httpError(c, err)
	}

	var req medicationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := s.validateRegimen(&req); err != nil {
		return httpError(c, err)
	}

	med := &store.Medication{
		UserID:            subject,
		Name:              req.Name,
		Dosage:            req.Dosage,
		DosageUnit:        req.DosageUnit,
		Frequency:         req.Frequency,
		AnchorTime:        req.AnchorTime,
		Notes:             req.Notes,
		StartDate:         req.StartDate,
		ExpiryDate:        req.ExpiryDate,
		IsActive:          true,
		TotalQuantity:     req.TotalQuantity,
		CurrentQuantity:   req.CurrentQuantity,
		LowStockThreshold: req.LowStockThreshold,
	}
	if med.StartDate == "" {
		med.StartDate = s.deps.Clock.Today()
	}
	if med.Tracked() && med.LowStockThreshold == 0 {
		med.LowStockThreshold = s.config.Inventory.DefaultLowStockThreshold
	}

	if err := s.deps.Store.CreateMedication(med); err != nil {
		s.logger.Error("Failed to create medication", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to create medication"})
	}

	if err := s.deps.Scheduler.Install(med); err != nil {
		// Only notifier failures reach here. The medication stays with
		// reminders disabled until the next install.
		s.logger.Warn("Reminder install failed", zap.String("medication_id", med.ID), zap.Error(err))
	}

	return c.Status(201).JSON(med)
}

func (s *Server) handleGetMedication(c *fiber.Ctx) error {
	med, err := s.medicationForRequest(c)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(med)
}

func (s *Server) handleUpdateMedication(c *fiber.Ctx) error {
	med, err := s.medicationForRequest(c)
	if err != nil {
		return httpError(c, err)
	}

	var req medicationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if err := s.validateRegimen(&req); err != nil {
		return httpError(c, err)
	}

	med.Name = req.Name
	med.Dosage = req.Dosage
	med.DosageUnit = req.DosageUnit
	med.Frequency = req.Frequency
	med.AnchorTime = req.AnchorTime
	med.Notes = req.Notes
	med.StartDate = req.StartDate
	med.ExpiryDate = req.ExpiryDate
	med.TotalQuantity = req.TotalQuantity
	med.CurrentQuantity = req.CurrentQuantity
	med.LowStockThreshold = req.LowStockThreshold

	if err := s.deps.Store.UpdateMedication(med); err != nil {
		s.logger.Error("Failed to update medication", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to update medication"})
	}

	// Editing a regimen reinstalls its reminders from scratch.
	if err := s.deps.Scheduler.Install(med); err != nil {
		s.logger.Warn("Reminder reinstall failed", zap.String("medication_id", med.ID), zap.Error(err))
	}

	return c.JSON(med)
}

func (s *Server) handleDeactivateMedication(c *fiber.Ctx) error {
	med, err := s.medicationForRequest(c)
	if err != nil {
		return httpError(c, err)
	}

	if err := s.deps.Store.DeactivateMedication(med.ID); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to deactivate medication"})
	}
	s.deps.Scheduler.Revoke(med.ID)

	return c.SendStatus(204)
}

func (s *Server) handleListReminders(c *fiber.Ctx) error {
	med, err := s.medicationForRequest(c)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(fiber.Map{
		"medication_id": med.ID,
		"times":         s.deps.Scheduler.ListFor(med.ID),
	})
}

// medicationForRequest loads the :id medication and checks the principal may
// act on its owner.
func (s *Server) medicationForRequest(c *fiber.Ctx) (*store.Medication, error) {
	med, err := s.deps.Store.GetMedication(c.Params("id"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "medication lookup failed")
	}
	if med == nil {
		return nil, errors.ErrNotFound
	}
	if err := s.deps.Access.Require(principal(c), med.UserID); err != nil {
		return nil, err
	}
	return med, nil
}

// ==================== Adherence logs ====================

func (s *Server) handleListLogs(c *fiber.Ctx) error {
	subject, err := s.subjectFor(c)
	if err != nil {
		return httpError(c, err)
	}

	entries, err := s.deps.Adherence.ListByUser(subject, c.Query("from"), c.Query("to"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(entries)
}

func (s *Server) handleUpsertLog(c *fiber.Ctx) error {
	subject, err := s.subjectFor(c)
	if err != nil {
		return httpError(c, err)
	}

	var req struct {
		MedicationID string `json:"medication_id"`
		LogDate      string `json:"log_date"`
		Status       string `json:"status"`
		Notes        string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.MedicationID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "medication_id is required"})
	}

	entry, err := s.deps.Adherence.Upsert(adherence.UpsertParams{
		MedicationID: req.MedicationID,
		UserID:       subject,
		LogDate:      req.LogDate,
		Status:       req.Status,
		Notes:        req.Notes,
	})
	if err != nil {
		return httpError(c, err)
	}
	return c.Status(201).JSON(entry)
}

// ==================== Read models ====================

func (s *Server) handleAnalyticsSummary(c *fiber.Ctx) error {
	subject, err := s.subjectFor(c)
	if err != nil {
		return httpError(c, err)
	}

	summary, err := s.deps.Analytics.Summary(c.Context(), subject)
	if err != nil {
		s.logger.Error("Analytics summary failed", zap.Error(err))
		return httpError(c, err)
	}
	return c.JSON(summary)
}

func (s *Server) handleSafetyReport(c *fiber.Ctx) error {
	subject, err := s.subjectFor(c)
	if err != nil {
		return httpError(c, err)
	}

	meds, err := s.deps.Store.ListMedications(subject, true)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list medications"})
	}

	allergies := ""
	if profile, err := s.deps.Store.GetProfile(subject); err == nil && profile != nil {
		allergies = profile.Allergies
	}

	report := safety.Check(meds, allergies, s.deps.Clock.Today(), s.deps.Clock.Location())
	return c.JSON(report)
}

func (s *Server) handleInventoryReport(c *fiber.Ctx) error {
	subject, err := s.subjectFor(c)
	if err != nil {
		return httpError(c, err)
	}

	meds, err := s.deps.Store.ListMedications(subject, true)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list medications"})
	}

	today := s.deps.Clock.Today()
	loc := s.deps.Clock.Location()
	reports := s.deps.Inventory.ReportsFor(meds, func(days int) string {
		key, err := clock.AddDays(today, days, loc)
		if err != nil {
			return ""
		}
		return key
	})
	return c.JSON(reports)
}

// ==================== Notification callback ====================

// handleNotificationAction is the device callback: the notification surface
// posts the user's response and the router turns it into state changes.
func (s *Server) handleNotificationAction(c *fiber.Ctx) error {
	var req struct {
		Action  string         `json:"action"`
		Payload notify.Payload `json:"payload"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Payload.MedicationID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "payload.medication_id is required"})
	}

	result, err := s.deps.Router.HandleAction(notify.Action(req.Action), req.Payload)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(result)
}

// ==================== Caregiver connections ====================

func (s *Server) handleListConnections(c *fiber.Ctx) error {
	p := principal(c)

	asPatient, err := s.deps.Store.ListConnectionsForPatient(p)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list connections"})
	}
	asCaregiver, err := s.deps.Store.ListConnectionsForCaregiver(p)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list connections"})
	}

	return c.JSON(fiber.Map{
		"as_patient":   asPatient,
		"as_caregiver": asCaregiver,
	})
}

// handleCreateConnection lets a caregiver request access to a patient by
// connection code. The edge starts pending; only the patient activates it.
func (s *Server) handleCreateConnection(c *fiber.Ctx) error {
	var req struct {
		ConnectionCode string `json:"connection_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.ConnectionCode == "" {
		return c.Status(400).JSON(fiber.Map{"error": "connection_code is required"})
	}

	patient, err := s.deps.Store.GetProfileByConnectionCode(req.ConnectionCode)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to look up connection code"})
	}
	if patient == nil {
		return c.Status(404).JSON(fiber.Map{"error": "connection code not found"})
	}
	if patient.UserID == principal(c) {
		return c.Status(400).JSON(fiber.Map{"error": "cannot connect to yourself"})
	}

	conn := &store.CaregiverConnection{
		PatientID:   patient.UserID,
		CaregiverID: principal(c),
		Status:      store.ConnectionPending,
	}
	if err := s.deps.Store.CreateConnection(conn); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to create connection"})
	}
	return c.Status(201).JSON(conn)
}

func (s *Server) handleAcceptConnection(c *fiber.Ctx) error {
	return s.setConnectionStatus(c, store.ConnectionActive)
}

func (s *Server) handleRevokeConnection(c *fiber.Ctx) error {
	return s.setConnectionStatus(c, store.ConnectionRevoked)
}

func (s *Server) setConnectionStatus(c *fiber.Ctx, status string) error {
	conn, err := s.deps.Store.GetConnection(c.Params("id"))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load connection"})
	}
	if conn == nil {
		return c.Status(404).JSON(fiber.Map{"error": "connection not found"})
	}

	// Only the patient accepts; either side revokes.
	p := principal(c)
	if status == store.ConnectionActive && conn.PatientID != p {
		return c.Status(403).JSON(fiber.Map{"error": "only the patient can accept"})
	}
	if status == store.ConnectionRevoked && conn.PatientID != p && conn.CaregiverID != p {
		return c.Status(403).JSON(fiber.Map{"error": "not a party to this connection"})
	}

	if err := s.deps.Store.UpdateConnectionStatus(conn.ID, status); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to update connection"})
	}
	conn.Status = status
	return c.JSON(conn)
}
