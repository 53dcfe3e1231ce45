// Package safety runs the pull-based checks over a user's active regimen:
// expiry classification, static drug-interaction scan, and allergy scan.
// Every check is a pure function of its inputs.
package safety

import (
	"strings"
	"time"

	"github.com/medtrack/medtrackd/internal/clock"
	"github.com/medtrack/medtrackd/internal/store"
)

// Expiry levels.
type ExpiryLevel string

const (
	ExpiryExpired ExpiryLevel = "expired"
	ExpiryUrgent  ExpiryLevel = "urgent"
	ExpirySoon    ExpiryLevel = "soon"
	ExpiryOK      ExpiryLevel = "ok"
)

// ExpiryWarning classifies one medication's expiry date.
type ExpiryWarning struct {
	MedicationID string      `json:"medication_id"`
	Name         string      `json:"medication_name"`
	ExpiryDate   string      `json:"expiry_date"`
	DaysLeft     int         `json:"days_left"`
	Level        ExpiryLevel `json:"level"`
}

// Interaction is one known interacting unordered pair in the regimen.
type Interaction struct {
	DrugA    string `json:"drug_a"`
	DrugB    string `json:"drug_b"`
	Severity string `json:"severity"`
}

// AllergyWarning flags a medication whose name contains an allergy token.
type AllergyWarning struct {
	MedicationID string `json:"medication_id"`
	Name         string `json:"medication_name"`
	Allergen     string `json:"allergen"`
}

// Report bundles all three checks.
type Report struct {
	Expiry       []ExpiryWarning  `json:"expiry"`
	Interactions []Interaction    `json:"interactions"`
	Allergies    []AllergyWarning `json:"allergies"`
}

// CheckExpiry classifies each medication with an expiry date against today.
// days < 0 is expired, 0..7 urgent, 8..30 soon, otherwise ok.
func CheckExpiry(meds []store.Medication, today string, loc *time.Location) []ExpiryWarning {
	todayT, err := clock.ParseDayKey(today, loc)
	if err != nil {
		return nil
	}

	var warnings []ExpiryWarning
	for i := range meds {
		med := &meds[i]
		if med.ExpiryDate == "" {
			continue
		}
		expiry, err := clock.ParseDayKey(med.ExpiryDate, loc)
		if err != nil {
			continue
		}

		days := daysBetween(todayT, expiry)
		level := ExpiryOK
		switch {
		case days < 0:
			level = ExpiryExpired
		case days <= 7:
			level = ExpiryUrgent
		case days <= 30:
			level = ExpirySoon
		}

		warnings = append(warnings, ExpiryWarning{
			MedicationID: med.ID,
			Name:         med.Name,
			ExpiryDate:   med.ExpiryDate,
			DaysLeft:     days,
			Level:        level,
		})
	}
	return warnings
}

// daysBetween counts calendar days from a to b. Both are re-anchored at UTC
// midnight first so DST-shortened days do not skew the count.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

// CheckInteractions scans the regimen for known interacting pairs, emitting
// one entry per unordered pair.
func CheckInteractions(meds []store.Medication) []Interaction {
	var found []Interaction
	for i := 0; i < len(meds); i++ {
		for j := i + 1; j < len(meds); j++ {
			a := strings.ToLower(strings.TrimSpace(meds[i].Name))
			b := strings.ToLower(strings.TrimSpace(meds[j].Name))
			if a == b {
				continue
			}
			if severity := lookupInteraction(a, b); severity != "" {
				found = append(found, Interaction{DrugA: a, DrugB: b, Severity: severity})
			}
		}
	}
	return found
}

// CheckAllergies warns for each medication whose lowercased name contains an
// allergy token as a substring. The profile's allergies field is split on
// commas. The substring rule is deliberately conservative.
func CheckAllergies(meds []store.Medication, allergies string) []AllergyWarning {
	var tokens []string
	for _, raw := range strings.Split(allergies, ",") {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	var warnings []AllergyWarning
	for i := range meds {
		med := &meds[i]
		name := strings.ToLower(med.Name)
		for _, token := range tokens {
			if strings.Contains(name, token) {
				warnings = append(warnings, AllergyWarning{
					MedicationID: med.ID,
					Name:         med.Name,
					Allergen:     token,
				})
			}
		}
	}
	return warnings
}

// Check runs all three checks over the active regimen.
func Check(meds []store.Medication, allergies, today string, loc *time.Location) Report {
	return Report{
		Expiry:       CheckExpiry(meds, today, loc),
		Interactions: CheckInteractions(meds),
		Allergies:    CheckAllergies(meds, allergies),
	}
}
