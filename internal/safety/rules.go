package safety

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"pediatric-assistant/pkg"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// RuleSet is the static reference data the evaluator runs against:
// drug-drug interaction rules, the allergy synonym table, and the
// emergency symptom rules. Rule sets are versioned; they are loaded once
// at startup and never mutated.
type RuleSet struct {
	Version              int                 `yaml:"version"`
	InfantAgeCutoffYears int                 `yaml:"infant_age_cutoff_years"`
	Interactions         []interactionEntry  `yaml:"interactions"`
	AllergyClasses       []allergyClassEntry `yaml:"allergy_classes"`
	EmergencyRules       []EmergencyRule     `yaml:"emergency_rules"`

	// classByMember is a normalized lookup built at load time.
	classByMember map[string][]string
}

type interactionEntry struct {
	Pair        [2]string               `yaml:"pair"`
	Severity    pkg.InteractionSeverity `yaml:"severity"`
	Description string                  `yaml:"description"`
}

type allergyClassEntry struct {
	Class   string   `yaml:"class"`
	Members []string `yaml:"members"`
}

// EmergencyRule matches a reported symptom against a severity threshold.
// MaxAgeYears, when set, restricts the rule to children at or under that
// age. A rule marked infant takes its band from the rule set's
// infant_age_cutoff_years instead; the load step resolves it into
// MaxAgeYears so the evaluator only ever sees one kind of band.
type EmergencyRule struct {
	Symptom     string          `yaml:"symptom"`
	MinSeverity int             `yaml:"min_severity"`
	MaxAgeYears *int            `yaml:"max_age_years"`
	Infant      bool            `yaml:"infant"`
	Tier        pkg.UrgencyTier `yaml:"-"`
	TierName    string          `yaml:"tier"`
	Description string          `yaml:"description"`
}

// LoadDefaultRules parses the embedded reference rule set.
func LoadDefaultRules() (*RuleSet, error) {
	return LoadRules(defaultRulesYAML)
}

// LoadRules parses a yaml rule set and builds its lookup indexes.
func LoadRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse safety rules: %w", err)
	}
	for i := range rs.EmergencyRules {
		r := &rs.EmergencyRules[i]
		tier, err := pkg.ParseTier(r.TierName)
		if err != nil {
			return nil, fmt.Errorf("emergency rule %q: %w", r.Symptom, err)
		}
		r.Tier = tier
		if r.MinSeverity < 1 || r.MinSeverity > 10 {
			return nil, fmt.Errorf("emergency rule %q: min_severity %d out of range", r.Symptom, r.MinSeverity)
		}
		if r.Infant {
			if r.MaxAgeYears != nil {
				return nil, fmt.Errorf("emergency rule %q: infant and max_age_years are mutually exclusive", r.Symptom)
			}
			cutoff := rs.InfantAgeCutoffYears
			r.MaxAgeYears = &cutoff
		}
	}
	for _, e := range rs.Interactions {
		switch e.Severity {
		case pkg.InteractionMinor, pkg.InteractionModerate, pkg.InteractionSevere:
		default:
			return nil, fmt.Errorf("interaction %v: unknown severity %q", e.Pair, e.Severity)
		}
	}
	rs.classByMember = make(map[string][]string)
	for _, c := range rs.AllergyClasses {
		class := normalize(c.Class)
		for _, m := range c.Members {
			member := normalize(m)
			rs.classByMember[member] = append(rs.classByMember[member], class)
		}
	}
	return &rs, nil
}

// InteractionsBetween returns every interaction rule covering the
// unordered pair (a, b), in declaration order.
func (rs *RuleSet) InteractionsBetween(a, b string) []pkg.InteractionRule {
	na, nb := normalize(a), normalize(b)
	if na == nb {
		return nil
	}
	var out []pkg.InteractionRule
	for _, e := range rs.Interactions {
		p0, p1 := normalize(e.Pair[0]), normalize(e.Pair[1])
		if (p0 == na && p1 == nb) || (p0 == nb && p1 == na) {
			out = append(out, pkg.InteractionRule{
				Medications: e.Pair,
				Severity:    e.Severity,
				Description: e.Description,
			})
		}
	}
	return out
}

// AllergyClassesOf returns the normalized allergy-class names the given
// medication belongs to, or nil if it is not in the synonym table.
func (rs *RuleSet) AllergyClassesOf(medication string) []string {
	return rs.classByMember[normalize(medication)]
}

// normalize is the common comparison form for medication, allergy, and
// symptom names.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
