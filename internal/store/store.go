// Package store is the transport boundary to the relational store. It holds
// no business logic; callers own validation and access decisions.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store handles medication, log, profile, and connection persistence.
type Store struct {
	db *gorm.DB
}

// New migrates the schema and returns a store over db.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Medication{}, &AdherenceEntry{}, &UserProfile{}, &CaregiverConnection{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schemas: %w", err)
	}
	return &Store{db: db}, nil
}

func newID() string {
	return uuid.NewString()
}

// Medication operations

func (s *Store) CreateMedication(med *Medication) error {
	if med.ID == "" {
		med.ID = newID()
	}
	med.CreatedAt = time.Now()
	med.UpdatedAt = med.CreatedAt
	return s.db.Create(med).Error
}

func (s *Store) GetMedication(id string) (*Medication, error) {
	var med Medication
	err := s.db.Where("id = ?", id).First(&med).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &med, err
}

func (s *Store) UpdateMedication(med *Medication) error {
	med.UpdatedAt = time.Now()
	return s.db.Save(med).Error
}

// DeactivateMedication soft-deletes: rows are never destroyed.
func (s *Store) DeactivateMedication(id string) error {
	now := time.Now()
	return s.db.Model(&Medication{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_active":   false,
		"disposed_at": &now,
		"updated_at":  now,
	}).Error
}

func (s *Store) ListMedications(userID string, activeOnly bool) ([]Medication, error) {
	query := s.db.Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var meds []Medication
	err := query.Order("created_at DESC").Find(&meds).Error
	return meds, err
}

func (s *Store) CountActiveMedications(userID string) (int, error) {
	var count int64
	err := s.db.Model(&Medication{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return int(count), err
}

// Adherence log operations

// UpsertLog writes the entry for (medication_id, log_date), inserting or
// replacing status, logged_at, and notes. A write older than the stored
// logged_at is dropped silently; last write wins.
func (s *Store) UpsertLog(entry *AdherenceEntry) (*AdherenceEntry, error) {
	var existing AdherenceEntry
	err := s.db.Where("medication_id = ? AND log_date = ?", entry.MedicationID, entry.LogDate).
		First(&existing).Error

	if err == gorm.ErrRecordNotFound {
		if entry.ID == "" {
			entry.ID = newID()
		}
		entry.CreatedAt = time.Now()
		if createErr := s.db.Create(entry).Error; createErr != nil {
			return nil, createErr
		}
		return entry, nil
	}
	if err != nil {
		return nil, err
	}

	if entry.LoggedAt.Before(existing.LoggedAt) {
		return &existing, nil
	}

	existing.Status = entry.Status
	existing.LoggedAt = entry.LoggedAt
	if entry.Notes != "" {
		existing.Notes = entry.Notes
	}
	if saveErr := s.db.Save(&existing).Error; saveErr != nil {
		return nil, saveErr
	}
	return &existing, nil
}

func (s *Store) GetLog(medicationID, logDate string) (*AdherenceEntry, error) {
	var entry AdherenceEntry
	err := s.db.Where("medication_id = ? AND log_date = ?", medicationID, logDate).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &entry, err
}

// ListLogsByUser returns entries in [from, to] by log_date; empty bounds are
// open ended.
func (s *Store) ListLogsByUser(userID, from, to string) ([]AdherenceEntry, error) {
	query := s.db.Where("user_id = ?", userID)
	if from != "" {
		query = query.Where("log_date >= ?", from)
	}
	if to != "" {
		query = query.Where("log_date <= ?", to)
	}

	var entries []AdherenceEntry
	err := query.Order("log_date DESC").Find(&entries).Error
	return entries, err
}

func (s *Store) CountLogsByStatus(userID, status, from, to string) (int, error) {
	query := s.db.Model(&AdherenceEntry{}).
		Where("user_id = ? AND status = ?", userID, status)
	if from != "" {
		query = query.Where("log_date >= ?", from)
	}
	if to != "" {
		query = query.Where("log_date <= ?", to)
	}

	var count int64
	err := query.Count(&count).Error
	return int(count), err
}

// Profile operations

func (s *Store) SaveProfile(profile *UserProfile) error {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	profile.UpdatedAt = time.Now()
	return s.db.Save(profile).Error
}

func (s *Store) GetProfile(userID string) (*UserProfile, error) {
	var profile UserProfile
	err := s.db.Where("user_id = ?", userID).First(&profile).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &profile, err
}

func (s *Store) GetProfileByConnectionCode(code string) (*UserProfile, error) {
	var profile UserProfile
	err := s.db.Where("connection_code = ?", code).First(&profile).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &profile, err
}

func (s *Store) ListProfiles() ([]UserProfile, error) {
	var profiles []UserProfile
	err := s.db.Order("created_at ASC").Find(&profiles).Error
	return profiles, err
}

// Connection operations

func (s *Store) CreateConnection(conn *CaregiverConnection) error {
	if conn.ID == "" {
		conn.ID = newID()
	}
	if conn.Status == "" {
		conn.Status = ConnectionPending
	}
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = conn.CreatedAt
	return s.db.Create(conn).Error
}

func (s *Store) GetConnection(id string) (*CaregiverConnection, error) {
	var conn CaregiverConnection
	err := s.db.Where("id = ?", id).First(&conn).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &conn, err
}

func (s *Store) UpdateConnectionStatus(id, status string) error {
	return s.db.Model(&CaregiverConnection{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}).Error
}

// HasActiveEdge reports whether caregiver holds an active connection to patient.
func (s *Store) HasActiveEdge(caregiverID, patientID string) (bool, error) {
	var count int64
	err := s.db.Model(&CaregiverConnection{}).
		Where("caregiver_id = ? AND patient_id = ? AND status = ?", caregiverID, patientID, ConnectionActive).
		Count(&count).Error
	return count > 0, err
}

func (s *Store) ListConnectionsForPatient(patientID string) ([]CaregiverConnection, error) {
	var conns []CaregiverConnection
	err := s.db.Where("patient_id = ?", patientID).Order("created_at DESC").Find(&conns).Error
	return conns, err
}

func (s *Store) ListConnectionsForCaregiver(caregiverID string) ([]CaregiverConnection, error) {
	var conns []CaregiverConnection
	err := s.db.Where("caregiver_id = ?", caregiverID).Order("created_at DESC").Find(&conns).Error
	return conns, err
}
