package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/medtrackd/internal/store"
)

func meds(names ...string) []store.Medication {
	out := make([]store.Medication, len(names))
	for i, name := range names {
		out[i] = store.Medication{ID: "med_" + name, Name: name, IsActive: true}
	}
	return out
}

func TestCheckExpiry_Levels(t *testing.T) {
	regimen := []store.Medication{
		{ID: "m1", Name: "Expired", ExpiryDate: "2025-03-01"},
		{ID: "m2", Name: "Today", ExpiryDate: "2025-03-05"},
		{ID: "m3", Name: "NextWeek", ExpiryDate: "2025-03-12"},
		{ID: "m4", Name: "SoonEnough", ExpiryDate: "2025-03-20"},
		{ID: "m5", Name: "FarOut", ExpiryDate: "2025-06-01"},
		{ID: "m6", Name: "NoExpiry"},
	}

	warnings := CheckExpiry(regimen, "2025-03-05", time.UTC)
	require.Len(t, warnings, 5)

	byID := map[string]ExpiryWarning{}
	for _, w := range warnings {
		byID[w.MedicationID] = w
	}

	assert.Equal(t, ExpiryExpired, byID["m1"].Level)
	assert.Equal(t, ExpiryUrgent, byID["m2"].Level, "expiry today classifies as urgent")
	assert.Equal(t, 0, byID["m2"].DaysLeft)
	assert.Equal(t, ExpiryUrgent, byID["m3"].Level)
	assert.Equal(t, ExpirySoon, byID["m4"].Level)
	assert.Equal(t, ExpiryOK, byID["m5"].Level)
}

func TestCheckExpiry_CalendarDaysAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// The spring-forward transition on 2025-03-09 shortens one day to 23
	// hours. Day counts stay whole-calendar regardless.
	regimen := []store.Medication{
		{ID: "m1", Name: "Boundary", ExpiryDate: "2025-04-08"},
		{ID: "m2", Name: "WeekOut", ExpiryDate: "2025-03-16"},
	}

	warnings := CheckExpiry(regimen, "2025-03-08", loc)
	require.Len(t, warnings, 2)

	byID := map[string]ExpiryWarning{}
	for _, w := range warnings {
		byID[w.MedicationID] = w
	}

	assert.Equal(t, 31, byID["m1"].DaysLeft)
	assert.Equal(t, ExpiryOK, byID["m1"].Level)
	assert.Equal(t, 8, byID["m2"].DaysLeft)
	assert.Equal(t, ExpirySoon, byID["m2"].Level)
}

func TestCheckInteractions_PairEmittedOnce(t *testing.T) {
	found := CheckInteractions(meds("Aspirin", "Warfarin"))
	require.Len(t, found, 1)
	assert.Equal(t, "aspirin", found[0].DrugA)
	assert.Equal(t, "warfarin", found[0].DrugB)
	assert.Equal(t, SeverityHigh, found[0].Severity)
}

func TestCheckInteractions_SymmetricLookup(t *testing.T) {
	ab := CheckInteractions(meds("Warfarin", "Aspirin"))
	require.Len(t, ab, 1)
	assert.Equal(t, SeverityHigh, ab[0].Severity)
}

func TestCheckInteractions_NoPairs(t *testing.T) {
	assert.Empty(t, CheckInteractions(meds("Aspirin")))
	assert.Empty(t, CheckInteractions(meds("Levothyroxine", "Metformin")))
	assert.Empty(t, CheckInteractions(nil))
}

func TestCheckInteractions_MultiplePairs(t *testing.T) {
	found := CheckInteractions(meds("Aspirin", "Warfarin", "Ibuprofen"))
	// aspirin-warfarin, aspirin-ibuprofen, warfarin-ibuprofen
	assert.Len(t, found, 3)
}

func TestCheckInteractions_DuplicateNamesSkipped(t *testing.T) {
	assert.Empty(t, CheckInteractions(meds("Aspirin", "aspirin")))
}

func TestCheckAllergies_SubstringMatch(t *testing.T) {
	regimen := meds("Sulfasalazine", "Ibuprofen")

	warnings := CheckAllergies(regimen, "Sulfa, penicillin")
	require.Len(t, warnings, 1)
	assert.Equal(t, "med_Sulfasalazine", warnings[0].MedicationID)
	assert.Equal(t, "sulfa", warnings[0].Allergen)
}

func TestCheckAllergies_EmptyProfile(t *testing.T) {
	assert.Empty(t, CheckAllergies(meds("Aspirin"), ""))
	assert.Empty(t, CheckAllergies(meds("Aspirin"), " , ,"))
}

func TestCheck_Bundle(t *testing.T) {
	regimen := []store.Medication{
		{ID: "m1", Name: "Aspirin", ExpiryDate: "2025-03-06"},
		{ID: "m2", Name: "Warfarin"},
	}

	report := Check(regimen, "aspirin", "2025-03-05", time.UTC)
	assert.Len(t, report.Expiry, 1)
	assert.Len(t, report.Interactions, 1)
	assert.Len(t, report.Allergies, 1)
}
