package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pediatric-assistant/pkg"
)

func TestLoadDefaultRules(t *testing.T) {
	rules, err := LoadDefaultRules()
	require.NoError(t, err)
	assert.Equal(t, 1, rules.Version)
	assert.NotEmpty(t, rules.Interactions)
	assert.NotEmpty(t, rules.AllergyClasses)
	assert.NotEmpty(t, rules.EmergencyRules)
}

func TestInteractionsBetweenIsUnordered(t *testing.T) {
	rules, err := LoadDefaultRules()
	require.NoError(t, err)

	forward := rules.InteractionsBetween("Amoxicillin", "Warfarin")
	reverse := rules.InteractionsBetween("warfarin", "amoxicillin")
	require.Len(t, forward, 1)
	require.Len(t, reverse, 1)
	assert.Equal(t, forward[0].Description, reverse[0].Description)
	assert.Equal(t, pkg.InteractionSevere, forward[0].Severity)

	assert.Empty(t, rules.InteractionsBetween("Amoxicillin", "Amoxicillin"))
	assert.Empty(t, rules.InteractionsBetween("Amoxicillin", "Vitamin D"))
}

func TestAllergyClassesOf(t *testing.T) {
	rules, err := LoadDefaultRules()
	require.NoError(t, err)

	assert.Contains(t, rules.AllergyClassesOf("Amoxicillin"), "penicillin")
	assert.Contains(t, rules.AllergyClassesOf("  advil  "), "nsaid")
	assert.Empty(t, rules.AllergyClassesOf("Vitamin D"))
}

func TestInfantRulesTakeBandFromCutoff(t *testing.T) {
	const doc = `
version: 1
infant_age_cutoff_years: 1
emergency_rules:
  - symptom: fever
    min_severity: 3
    infant: true
    tier: EMERGENCY
    description: infant fever
  - symptom: fever
    min_severity: 8
    tier: URGENT_CARE
    description: high fever
`
	rules, err := LoadRules([]byte(doc))
	require.NoError(t, err)

	require.NotNil(t, rules.EmergencyRules[0].MaxAgeYears)
	assert.Equal(t, 1, *rules.EmergencyRules[0].MaxAgeYears)
	assert.Nil(t, rules.EmergencyRules[1].MaxAgeYears)

	// The resolved band is what the evaluator applies: a one-year-old is
	// inside a cutoff of 1, a two-year-old is not.
	e := NewEvaluator(rules)
	entries := []pkg.SymptomEntry{{Name: "fever", Severity: 4}}

	verdict, err := e.EvaluateSymptoms(pkg.ChildProfile{ID: "a", AgeYears: 1, WeightKg: 9}, entries)
	require.NoError(t, err)
	assert.Equal(t, pkg.TierEmergency, verdict.Tier)

	verdict, err = e.EvaluateSymptoms(pkg.ChildProfile{ID: "b", AgeYears: 2, WeightKg: 12}, entries)
	require.NoError(t, err)
	assert.Equal(t, pkg.TierRoutine, verdict.Tier)
}

func TestLoadRulesRejectsBadData(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			"unknown tier",
			"emergency_rules:\n  - symptom: fever\n    min_severity: 5\n    tier: PANIC\n",
		},
		{
			"severity out of range",
			"emergency_rules:\n  - symptom: fever\n    min_severity: 0\n    tier: ROUTINE\n",
		},
		{
			"unknown interaction severity",
			"interactions:\n  - pair: [A, B]\n    severity: catastrophic\n    description: x\n",
		},
		{
			"infant with explicit age band",
			"emergency_rules:\n  - symptom: fever\n    min_severity: 3\n    infant: true\n    max_age_years: 2\n    tier: EMERGENCY\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadRules([]byte(tc.yaml))
			require.Error(t, err)
		})
	}
}
