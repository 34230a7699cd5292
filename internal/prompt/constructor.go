package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pediatric-assistant/pkg"
)

// GraphFacts is the typed snapshot of a child's record fetched from the
// graph store for one chat turn. A nil *GraphFacts means the store was
// unreachable or the child is not registered.
type GraphFacts struct {
	Child        pkg.ChildProfile
	Medications  []pkg.MedicationRecord
	Symptoms     []pkg.SymptomEntry
	Appointments []pkg.Appointment
}

// BuildInput carries the five prompt inputs plus the length budget.
type BuildInput struct {
	ProfileNotes string
	History      []pkg.ConversationTurn
	Facts        *GraphFacts
	Verdict      *pkg.SafetyVerdict
	UserMessage  string

	// MaxLength is the character budget for the assembled prompt.
	// Zero or negative means unlimited.
	MaxLength int
}

const sectionSep = "\n\n"

// Build assembles the prompt deterministically: identical inputs always
// produce byte-identical output. When the naive assembly exceeds the
// budget, it drops the oldest history turns first, then truncates the
// profile notes, then the medical-record listing. The parent's message
// and any emergency block are never truncated: when the protected
// sections alone exceed MaxLength, the returned prompt exceeds it too,
// since an intact message and emergency block matter more than the
// length bound.
func Build(in BuildInput) (string, error) {
	if strings.TrimSpace(in.UserMessage) == "" {
		return "", &pkg.ValidationError{Field: "user_message", Reason: "must not be empty"}
	}

	emergency := in.Verdict != nil && in.Verdict.Tier == pkg.TierEmergency

	profileBody := strings.TrimSpace(in.ProfileNotes)
	if profileBody == "" {
		profileBody = NoProfileMarker
	}
	graphBody := formatFacts(in.Facts)
	history := in.History

	for {
		out := assemble(emergency, profileBody, graphBody, in.Verdict, history, in.UserMessage)
		if in.MaxLength <= 0 || len(out) <= in.MaxLength {
			return out, nil
		}
		over := len(out) - in.MaxLength

		// Oldest history turns go first.
		if len(history) > 0 {
			history = history[1:]
			continue
		}
		// Then the free-text profile notes.
		if profileBody != NoProfileMarker && len(profileBody) > 0 {
			profileBody = clip(profileBody, len(profileBody)-over)
			continue
		}
		// Then the medical-record listing.
		if graphBody != NoGraphMarker && len(graphBody) > 0 {
			graphBody = clip(graphBody, len(graphBody)-over)
			continue
		}
		// Nothing left that may be cut; the remaining sections are
		// protected, so return the smallest prompt we can build.
		return out, nil
	}
}

func assemble(emergency bool, profileBody, graphBody string, verdict *pkg.SafetyVerdict, history []pkg.ConversationTurn, userMessage string) string {
	var sections []string
	if emergency {
		sections = append(sections, EmergencyBlock)
	}
	sections = append(sections, Preamble)
	sections = append(sections, profileHeading+"\n"+profileBody)
	sections = append(sections, graphHeading+"\n"+graphBody)
	if verdict != nil {
		sections = append(sections, verdictHeading+"\n"+formatVerdict(*verdict))
	}
	sections = append(sections, historyHeading+"\n"+formatHistory(history))
	sections = append(sections, messageHeading+"\n"+userMessage)
	return strings.Join(sections, sectionSep)
}

func formatHistory(history []pkg.ConversationTurn) string {
	if len(history) == 0 {
		return NoHistoryMarker
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		label := "Parent"
		if t.Role == pkg.RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, label+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

func formatVerdict(v pkg.SafetyVerdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Urgency: %s\n", v.Tier)
	if v.Allowed {
		b.WriteString("The checked action is not blocked.\n")
	} else {
		b.WriteString("The checked action is BLOCKED.\n")
	}
	for _, c := range v.Conflicts {
		fmt.Fprintf(&b, "- [%s] %s\n", c.Kind, c.Description)
	}
	if v.CautionNote != "" {
		b.WriteString("Note: " + v.CautionNote + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatFacts renders the fetched record into the listing the model
// reads: child basics with an allergy call-out, active medications,
// recent symptoms, and upcoming appointments.
func formatFacts(f *GraphFacts) string {
	if f == nil {
		return NoGraphMarker
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Child: %s, %d years old, %.1f kg\n", f.Child.Name, f.Child.AgeYears, f.Child.WeightKg)
	if len(f.Child.Allergies) > 0 {
		fmt.Fprintf(&b, "ALLERGIES: %s\n", strings.Join(f.Child.Allergies, ", "))
	} else {
		b.WriteString("ALLERGIES: none recorded (treat as unknown)\n")
	}
	if len(f.Medications) > 0 {
		b.WriteString("Current medications:\n")
		for _, m := range f.Medications {
			fmt.Fprintf(&b, "- %s: %s, %s\n", m.Name, m.Dosage, m.Frequency)
		}
	}
	if len(f.Symptoms) > 0 {
		b.WriteString("Recent symptoms:\n")
		for _, s := range f.Symptoms {
			fmt.Fprintf(&b, "- %s: severity %d/10", s.Name, s.Severity)
			if s.Note != "" {
				fmt.Fprintf(&b, " (%s)", s.Note)
			}
			b.WriteString("\n")
		}
	}
	if len(f.Appointments) > 0 {
		b.WriteString("Upcoming appointments:\n")
		for _, a := range f.Appointments {
			fmt.Fprintf(&b, "- %s with Dr. %s on %s\n", a.Kind, a.Doctor, a.ScheduledAt.Format("2006-01-02 15:04"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// clip truncates s to at most n bytes without splitting a utf8 rune.
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
