package pkg

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChildProfile holds the registered profile for a single child.  Allergy
// names are stored as entered; comparisons elsewhere are case-insensitive.
type ChildProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AgeYears  int       `json:"age_years"`
	WeightKg  float64   `json:"weight_kg"`
	Allergies []string  `json:"allergies"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MedicationRecord is one medication course for a child.  A nil EndedAt
// means the course is still active.
type MedicationRecord struct {
	ID        string     `json:"id"`
	ChildID   string     `json:"child_id"`
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage"`
	Frequency string     `json:"frequency"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// SymptomEntry is one reported symptom observation.  Entries are
// append-only; severity is on a 1-10 scale.
type SymptomEntry struct {
	ID         string    `json:"id"`
	ChildID    string    `json:"child_id"`
	Name       string    `json:"name"`
	Severity   int       `json:"severity"`
	Note       string    `json:"note,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// AppointmentStatus tracks the lifecycle of a scheduled appointment.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is an upcoming or past visit for a child.
type Appointment struct {
	ID          string            `json:"id"`
	ChildID     string            `json:"child_id"`
	Kind        string            `json:"kind"`
	Doctor      string            `json:"doctor"`
	Location    string            `json:"location,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	Status      AppointmentStatus `json:"status"`
}

// Pharmacy is a directory entry, keyed by name.  The directory is shared
// across all children; entries are upserted, never deleted.
type Pharmacy struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Phone    string `json:"phone"`
	Hours    string `json:"hours"`
}

// InteractionSeverity rates a known drug-drug interaction.  Only severe
// interactions block a medication from being added.
type InteractionSeverity string

const (
	InteractionMinor    InteractionSeverity = "minor"
	InteractionModerate InteractionSeverity = "moderate"
	InteractionSevere   InteractionSeverity = "severe"
)

// InteractionRule describes a known interaction between an unordered pair
// of medication names.  Static reference data, not per-child.
type InteractionRule struct {
	Medications [2]string           `json:"medications"`
	Severity    InteractionSeverity `json:"severity"`
	Description string              `json:"description"`
}

// UrgencyTier classifies how urgently a finding needs medical attention.
// The integer backing gives the tiers a total order so the evaluator can
// take a maximum without string comparison.
type UrgencyTier int

const (
	TierRoutine UrgencyTier = iota
	TierCallDoctor
	TierUrgentCare
	TierEmergency
)

var tierNames = map[UrgencyTier]string{
	TierRoutine:    "ROUTINE",
	TierCallDoctor: "CALL_DOCTOR",
	TierUrgentCare: "URGENT_CARE",
	TierEmergency:  "EMERGENCY",
}

func (t UrgencyTier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return fmt.Sprintf("UrgencyTier(%d)", int(t))
}

// ParseTier converts the wire/reference-data form back into a tier.
func ParseTier(s string) (UrgencyTier, error) {
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return TierRoutine, fmt.Errorf("unknown urgency tier %q", s)
}

// MaxTier returns the more urgent of two tiers.
func MaxTier(a, b UrgencyTier) UrgencyTier {
	if b > a {
		return b
	}
	return a
}

func (t UrgencyTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *UrgencyTier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ConflictKind labels what kind of safety finding a conflict represents.
type ConflictKind string

const (
	ConflictAllergy     ConflictKind = "allergy"
	ConflictInteraction ConflictKind = "interaction"
	ConflictSymptom     ConflictKind = "symptom"
)

// Conflict is a single finding inside a SafetyVerdict.  The order of
// conflicts in a verdict follows the order rules were evaluated in, so
// output is stable across calls.
type Conflict struct {
	Kind        ConflictKind        `json:"kind"`
	Description string              `json:"description"`
	Severity    InteractionSeverity `json:"severity,omitempty"`
	Tier        UrgencyTier         `json:"tier"`
}

// SafetyVerdict is the outcome of a safety evaluation.  It is derived
// fresh on every call and never persisted or cached, since the underlying
// medication and symptom state can change between calls.
type SafetyVerdict struct {
	Allowed     bool        `json:"allowed"`
	Conflicts   []Conflict  `json:"conflicts"`
	Tier        UrgencyTier `json:"urgency_tier"`
	CautionNote string      `json:"caution_note,omitempty"`
}

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleParent    Role = "parent"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one prior message in a chat session.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
