package safety

import (
	"fmt"

	"pediatric-assistant/pkg"
)

// Config holds the evaluator's policy knobs.
type Config struct {
	// CautionOnUnknownAllergies adds a caution note to medication
	// verdicts when the child has no recorded allergies, since an empty
	// list means "unknown", not "no allergies". It never blocks on its
	// own.
	CautionOnUnknownAllergies bool
}

// DefaultConfig returns the default evaluator policy.
func DefaultConfig() Config {
	return Config{CautionOnUnknownAllergies: true}
}

// Evaluator computes safety verdicts for proposed medications and
// reported symptoms. It is a pure function over the data it is handed;
// it never queries a store itself, so callers control freshness.
type Evaluator struct {
	rules *RuleSet
	cfg   Config
}

// NewEvaluator builds an evaluator with the default policy.
func NewEvaluator(rules *RuleSet) *Evaluator {
	return NewEvaluatorWithConfig(rules, DefaultConfig())
}

// NewEvaluatorWithConfig builds an evaluator with an explicit policy.
func NewEvaluatorWithConfig(rules *RuleSet, cfg Config) *Evaluator {
	return &Evaluator{rules: rules, cfg: cfg}
}

const unknownAllergyCaution = "No allergies are recorded for this child. " +
	"Treat allergy status as unknown, not clear."

// EvaluateMedication checks a candidate medication against the child's
// recorded allergies and every active medication. Allergy and interaction
// checks are both always run in full; the first match never short-circuits
// the rest, so the verdict lists every conflict found.
func (e *Evaluator) EvaluateMedication(profile pkg.ChildProfile, candidate string, active []pkg.MedicationRecord) (pkg.SafetyVerdict, error) {
	if err := validateProfile(profile); err != nil {
		return pkg.SafetyVerdict{}, err
	}
	if normalize(candidate) == "" {
		return pkg.SafetyVerdict{}, &pkg.ValidationError{Field: "medication", Reason: "name must not be empty"}
	}

	// Names the candidate can conflict under: itself plus any allergy
	// class it belongs to (e.g. Amoxicillin -> penicillin).
	candidateNames := append([]string{normalize(candidate)}, e.rules.AllergyClassesOf(candidate)...)

	verdict := pkg.SafetyVerdict{Allowed: true, Tier: pkg.TierRoutine}

	allergyConflict := false
	seen := make(map[string]struct{})
	for _, allergy := range profile.Allergies {
		a := normalize(allergy)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		for _, name := range candidateNames {
			if name == a {
				allergyConflict = true
				verdict.Conflicts = append(verdict.Conflicts, pkg.Conflict{
					Kind:        pkg.ConflictAllergy,
					Description: fmt.Sprintf("%s conflicts with recorded allergy %q", candidate, allergy),
					Tier:        pkg.TierCallDoctor,
				})
				break
			}
		}
	}

	severeInteraction := false
	for _, med := range active {
		if med.EndedAt != nil {
			continue
		}
		for _, rule := range e.rules.InteractionsBetween(candidate, med.Name) {
			conflictTier := pkg.TierRoutine
			if rule.Severity == pkg.InteractionSevere {
				severeInteraction = true
				conflictTier = pkg.TierCallDoctor
			}
			verdict.Conflicts = append(verdict.Conflicts, pkg.Conflict{
				Kind:        pkg.ConflictInteraction,
				Description: fmt.Sprintf("%s with %s: %s", candidate, med.Name, rule.Description),
				Severity:    rule.Severity,
				Tier:        conflictTier,
			})
		}
	}

	verdict.Allowed = !allergyConflict && !severeInteraction
	if allergyConflict || severeInteraction {
		verdict.Tier = pkg.MaxTier(verdict.Tier, pkg.TierCallDoctor)
	}
	if len(profile.Allergies) == 0 && e.cfg.CautionOnUnknownAllergies {
		verdict.CautionNote = unknownAllergyCaution
	}
	return verdict, nil
}

// EvaluateSymptoms matches the reported symptom set against the emergency
// rules. The verdict's tier is the maximum tier across every matched
// rule; the conflicts list carries every match, not just the winner, so a
// rule that matched is never hidden by a more urgent one.
func (e *Evaluator) EvaluateSymptoms(profile pkg.ChildProfile, entries []pkg.SymptomEntry) (pkg.SafetyVerdict, error) {
	if err := validateProfile(profile); err != nil {
		return pkg.SafetyVerdict{}, err
	}
	for _, s := range entries {
		if s.Severity < 1 || s.Severity > 10 {
			return pkg.SafetyVerdict{}, &pkg.ValidationError{
				Field:  "severity",
				Reason: fmt.Sprintf("%d for %q is outside 1-10", s.Severity, s.Name),
			}
		}
		if normalize(s.Name) == "" {
			return pkg.SafetyVerdict{}, &pkg.ValidationError{Field: "symptom", Reason: "name must not be empty"}
		}
	}

	verdict := pkg.SafetyVerdict{Allowed: true, Tier: pkg.TierRoutine}
	for _, rule := range e.rules.EmergencyRules {
		if rule.MaxAgeYears != nil && profile.AgeYears > *rule.MaxAgeYears {
			continue
		}
		for _, s := range entries {
			if normalize(s.Name) != normalize(rule.Symptom) || s.Severity < rule.MinSeverity {
				continue
			}
			verdict.Conflicts = append(verdict.Conflicts, pkg.Conflict{
				Kind:        pkg.ConflictSymptom,
				Description: fmt.Sprintf("%s (severity %d/10): %s", s.Name, s.Severity, rule.Description),
				Tier:        rule.Tier,
			})
			verdict.Tier = pkg.MaxTier(verdict.Tier, rule.Tier)
			break // one match per rule; further entries add nothing new
		}
	}
	return verdict, nil
}

func validateProfile(p pkg.ChildProfile) error {
	if normalize(p.ID) == "" {
		return &pkg.ValidationError{Field: "child_id", Reason: "must not be empty"}
	}
	if p.AgeYears < 0 {
		return &pkg.ValidationError{Field: "age_years", Reason: "must not be negative"}
	}
	if p.WeightKg <= 0 {
		return &pkg.ValidationError{Field: "weight_kg", Reason: "must be positive"}
	}
	return nil
}
