// Package notify wraps the device-local scheduled-alert primitive. The
// Notifier interface is the only way the engine touches the OS schedule
// tables; everything above it works in terms of handles and payloads.
package notify

import "time"

// CategoryMedicationReminder is the notification category carrying the
// TAKE_NOW / SNOOZE / SKIP action buttons.
const CategoryMedicationReminder = "MEDICATION_REMINDER"

// Actions a user can take on a fired reminder.
type Action string

const (
	ActionTakeNow Action = "TAKE_NOW"
	ActionSnooze  Action = "SNOOZE"
	ActionSkip    Action = "SKIP"
	ActionOpen    Action = "OPEN" // tap on the notification body
)

// Payload is the flat dictionary attached to every reminder. It carries
// enough medication metadata to write an adherence log without a network
// round-trip; only the user id comes from the session.
type Payload struct {
	MedicationID   string `json:"medication_id"`
	Name           string `json:"name"`
	Dosage         string `json:"dosage"`
	DosageUnit     string `json:"dosage_unit"`
	Notes          string `json:"notes,omitempty"`
	Type           string `json:"type"`
	ReminderIndex  int    `json:"reminder_index"`  // 0-based within the daily schedule
	TotalReminders int    `json:"total_reminders"` // |T(M)|
}

// Handle identifies one installed trigger.
type Handle string

// RepeatKind of an installed trigger.
type RepeatKind string

const (
	RepeatDaily   RepeatKind = "daily"
	RepeatWeekly  RepeatKind = "weekly"
	RepeatOneShot RepeatKind = "oneshot"
)

// Scheduled describes an installed trigger for introspection.
type Scheduled struct {
	Handle  Handle
	Payload Payload
	Repeat  RepeatKind
	Hour    int
	Minute  int
	Weekday time.Weekday // weekly only
	FiresAt time.Time    // oneshot only
}

// FireFunc receives a payload when its trigger fires.
type FireFunc func(Payload)

// ActionFunc receives the user's response to a presented reminder.
type ActionFunc func(Action, Payload)

// Notifier is the OS notification capability the scheduler depends on.
type Notifier interface {
	// Permission reports whether the OS has granted notification permission.
	Permission() bool

	ScheduleDaily(hour, minute int, p Payload) (Handle, error)
	ScheduleWeekly(weekday time.Weekday, hour, minute int, p Payload) (Handle, error)
	ScheduleOneShot(delay time.Duration, p Payload) (Handle, error)

	Cancel(h Handle) error
	List() []Scheduled

	// OnFire registers the callback invoked when any trigger fires.
	OnFire(fn FireFunc)
	// OnAction registers the callback invoked when the user responds.
	OnAction(fn ActionFunc)
}
