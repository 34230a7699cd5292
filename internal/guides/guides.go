// Package guides holds the aftercare reference guides: per-condition
// home-care instructions handed to parents after a diagnosis or
// procedure. Like the safety rules, the data is versioned, embedded,
// and read-only at runtime.
package guides

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"pediatric-assistant/pkg"
)

//go:embed guides.yaml
var defaultGuidesYAML []byte

// Guide is the aftercare sheet for one condition.
type Guide struct {
	Condition      string   `yaml:"condition" json:"condition"`
	Category       string   `yaml:"category" json:"category"`
	AgeRange       string   `yaml:"age_range" json:"age_range"`
	Overview       string   `yaml:"overview" json:"overview"`
	PainManagement string   `yaml:"pain_management" json:"pain_management"`
	Activity       string   `yaml:"activity" json:"activity"`
	Diet           string   `yaml:"diet" json:"diet"`
	WoundCare      string   `yaml:"wound_care" json:"wound_care,omitempty"`
	RedFlags       []string `yaml:"red_flags" json:"red_flags"`
	FollowUp       string   `yaml:"follow_up" json:"follow_up"`
}

// Library is the loaded guide collection with a case-insensitive
// condition index.
type Library struct {
	Version int     `yaml:"version"`
	Guides  []Guide `yaml:"guides"`

	byCondition map[string]int
}

// LoadDefaultLibrary parses the embedded guides.
func LoadDefaultLibrary() (*Library, error) {
	return Load(defaultGuidesYAML)
}

// Load parses a yaml guide collection and builds its condition index.
func Load(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("parse aftercare guides: %w", err)
	}
	lib.byCondition = make(map[string]int, len(lib.Guides))
	for i, g := range lib.Guides {
		key := normalize(g.Condition)
		if key == "" {
			return nil, fmt.Errorf("guide %d: condition must not be empty", i)
		}
		if _, dup := lib.byCondition[key]; dup {
			return nil, fmt.Errorf("duplicate guide for condition %q", g.Condition)
		}
		lib.byCondition[key] = i
		if len(g.RedFlags) == 0 {
			return nil, fmt.Errorf("guide %q: red_flags must not be empty", g.Condition)
		}
	}
	return &lib, nil
}

// Lookup finds the guide for a condition, matching case-insensitively.
func (l *Library) Lookup(condition string) (Guide, error) {
	i, ok := l.byCondition[normalize(condition)]
	if !ok {
		return Guide{}, &pkg.NotFoundError{Entity: "aftercare guide", ID: condition}
	}
	return l.Guides[i], nil
}

// Conditions lists every condition with a guide, sorted.
func (l *Library) Conditions() []string {
	out := make([]string, 0, len(l.Guides))
	for _, g := range l.Guides {
		out = append(out, g.Condition)
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
