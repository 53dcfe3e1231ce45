package store

import (
	"time"
)

// Adherence statuses for a (medication, day) entry.
const (
	StatusTaken   = "taken"
	StatusMissed  = "missed"
	StatusSkipped = "skipped"
)

// ValidStatus reports whether s is in the closed status domain.
func ValidStatus(s string) bool {
	return s == StatusTaken || s == StatusMissed || s == StatusSkipped
}

// Caregiver connection statuses.
const (
	ConnectionPending = "pending"
	ConnectionActive  = "active"
	ConnectionRevoked = "revoked"
)

// Profile roles.
const (
	RolePatient   = "patient"
	RoleCaregiver = "caregiver"
)

// Medication is one declared regimen for a subject user.
type Medication struct {
	ID     string `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"index"`

	// Regimen
	Name       string `json:"medication_name" gorm:"column:medication_name"`
	Dosage     string `json:"dosage"`
	DosageUnit string `json:"dosage_unit"`
	Frequency  string `json:"frequency"`
	AnchorTime string `json:"reminder_time" gorm:"column:reminder_time"` // HH:MM local
	Notes      string `json:"notes,omitempty"`

	// Lifecycle; dates are day keys (YYYY-MM-DD), expiry optional.
	StartDate  string `json:"start_date"`
	ExpiryDate string `json:"expiry_date,omitempty"`
	IsActive   bool   `json:"is_active"`

	// Inventory; tracked iff total quantity or threshold is non-zero.
	TotalQuantity     int `json:"total_quantity"`
	CurrentQuantity   int `json:"current_quantity"`
	LowStockThreshold int `json:"low_stock_threshold"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DisposedAt *time.Time `json:"disposed_at,omitempty"`
}

// Tracked reports whether inventory accounting applies to this medication.
func (m *Medication) Tracked() bool {
	return m.TotalQuantity > 0 || m.LowStockThreshold > 0
}

// AdherenceEntry records the outcome for one medication on one local day.
// At most one entry exists per (medication_id, log_date).
type AdherenceEntry struct {
	ID           string `json:"id" gorm:"primaryKey"`
	MedicationID string `json:"medication_id" gorm:"uniqueIndex:idx_medication_day"`
	LogDate      string `json:"log_date" gorm:"uniqueIndex:idx_medication_day"` // day key
	UserID       string `json:"user_id" gorm:"index"`

	Status   string    `json:"status"`
	Notes    string    `json:"notes,omitempty"`
	LoggedAt time.Time `json:"logged_at"`

	CreatedAt time.Time `json:"created_at"`
}

// UserProfile carries the per-user fields the engine consults.
type UserProfile struct {
	UserID         string `json:"user_id" gorm:"primaryKey"`
	DisplayName    string `json:"display_name"`
	Role           string `json:"role" gorm:"default:patient"`
	ConnectionCode string `json:"connection_code,omitempty" gorm:"index"`
	Allergies      string `json:"allergies,omitempty"` // comma-separated

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CaregiverConnection is an access edge; status "active" grants the caregiver
// read and write on the patient's medications.
type CaregiverConnection struct {
	ID          string `json:"id" gorm:"primaryKey"`
	PatientID   string `json:"patient_id" gorm:"index"`
	CaregiverID string `json:"caregiver_id" gorm:"index"`
	Status      string `json:"status" gorm:"default:pending"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
