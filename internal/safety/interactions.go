package safety

// Interaction severities.
const (
	SeverityHigh     = "high"
	SeverityModerate = "moderate"
)

// interactionTable is the static symmetric relation over lowercased drug
// names. Entries are stored once per unordered pair and looked up both ways.
var interactionTable = map[string]map[string]string{
	"aspirin": {
		"warfarin":  SeverityHigh,
		"ibuprofen": SeverityModerate,
		"naproxen":  SeverityModerate,
	},
	"warfarin": {
		"ibuprofen":     SeverityHigh,
		"naproxen":      SeverityHigh,
		"amiodarone":    SeverityHigh,
		"fluconazole":   SeverityHigh,
		"ciprofloxacin": SeverityModerate,
	},
	"lisinopril": {
		"ibuprofen":      SeverityModerate,
		"naproxen":       SeverityModerate,
		"spironolactone": SeverityModerate,
		"potassium":      SeverityModerate,
	},
	"metformin": {
		"prednisone":          SeverityModerate,
		"hydrochlorothiazide": SeverityModerate,
	},
	"simvastatin": {
		"amiodarone":     SeverityHigh,
		"clarithromycin": SeverityHigh,
		"fluconazole":    SeverityModerate,
		"amlodipine":     SeverityModerate,
	},
	"atorvastatin": {
		"clarithromycin": SeverityHigh,
		"fluconazole":    SeverityModerate,
	},
	"levothyroxine": {
		"calcium":    SeverityModerate,
		"iron":       SeverityModerate,
		"omeprazole": SeverityModerate,
	},
	"sertraline": {
		"tramadol":    SeverityHigh,
		"sumatriptan": SeverityHigh,
		"aspirin":     SeverityModerate,
	},
	"fluoxetine": {
		"tramadol":    SeverityHigh,
		"sumatriptan": SeverityHigh,
	},
	"digoxin": {
		"amiodarone": SeverityHigh,
		"verapamil":  SeverityHigh,
		"furosemide": SeverityModerate,
	},
	"clopidogrel": {
		"omeprazole": SeverityModerate,
		"aspirin":    SeverityModerate,
	},
	"methotrexate": {
		"ibuprofen":  SeverityHigh,
		"naproxen":   SeverityHigh,
		"omeprazole": SeverityModerate,
	},
}

// lookupInteraction returns the severity for {a, b}, checking both
// directions, or "" when no interaction is known.
func lookupInteraction(a, b string) string {
	if row, ok := interactionTable[a]; ok {
		if severity, ok := row[b]; ok {
			return severity
		}
	}
	if row, ok := interactionTable[b]; ok {
		if severity, ok := row[a]; ok {
			return severity
		}
	}
	return ""
}
