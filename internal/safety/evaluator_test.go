package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pediatric-assistant/pkg"
)

func testProfile() pkg.ChildProfile {
	return pkg.ChildProfile{
		ID:        "emma",
		Name:      "Emma",
		AgeYears:  5,
		WeightKg:  18.5,
		Allergies: []string{"penicillin"},
	}
}

func mustRules(t *testing.T) *RuleSet {
	t.Helper()
	rules, err := LoadDefaultRules()
	require.NoError(t, err)
	return rules
}

func TestEvaluateMedicationDirectAllergyMatch(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	profile := testProfile()
	profile.Allergies = []string{"Ibuprofen"}

	verdict, err := e.EvaluateMedication(profile, "ibuprofen", nil)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	require.Len(t, verdict.Conflicts, 1)
	assert.Equal(t, pkg.ConflictAllergy, verdict.Conflicts[0].Kind)
	assert.Equal(t, pkg.TierCallDoctor, verdict.Tier)
}

func TestEvaluateMedicationSynonymAllergyMatch(t *testing.T) {
	e := NewEvaluator(mustRules(t))

	// Amoxicillin is in the penicillin class, so a recorded penicillin
	// allergy must block it even though the names differ.
	verdict, err := e.EvaluateMedication(testProfile(), "Amoxicillin", nil)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	require.NotEmpty(t, verdict.Conflicts)
	assert.Equal(t, pkg.ConflictAllergy, verdict.Conflicts[0].Kind)
}

func TestEvaluateMedicationSevereInteractionBlocks(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	profile := testProfile()
	profile.Allergies = []string{"latex"}
	active := []pkg.MedicationRecord{{Name: "Warfarin", StartedAt: time.Now()}}

	verdict, err := e.EvaluateMedication(profile, "Amoxicillin", active)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	require.Len(t, verdict.Conflicts, 1)
	assert.Equal(t, pkg.ConflictInteraction, verdict.Conflicts[0].Kind)
	assert.Equal(t, pkg.InteractionSevere, verdict.Conflicts[0].Severity)
	assert.Equal(t, pkg.TierCallDoctor, verdict.Tier)
}

func TestEvaluateMedicationModerateInteractionReportedNotBlocked(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	profile := testProfile()
	profile.Allergies = []string{"latex"}
	active := []pkg.MedicationRecord{{Name: "Aspirin"}}

	verdict, err := e.EvaluateMedication(profile, "Ibuprofen", active)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	require.Len(t, verdict.Conflicts, 1)
	assert.Equal(t, pkg.InteractionModerate, verdict.Conflicts[0].Severity)
	assert.Equal(t, pkg.TierRoutine, verdict.Tier)
}

func TestEvaluateMedicationReportsBothCheckKinds(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	profile := testProfile()
	active := []pkg.MedicationRecord{{Name: "Warfarin"}}

	// Penicillin allergy and the Amoxicillin/Warfarin interaction must
	// both appear; the allergy match must not short-circuit the
	// interaction scan.
	verdict, err := e.EvaluateMedication(profile, "Amoxicillin", active)
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	require.Len(t, verdict.Conflicts, 2)
	assert.Equal(t, pkg.ConflictAllergy, verdict.Conflicts[0].Kind)
	assert.Equal(t, pkg.ConflictInteraction, verdict.Conflicts[1].Kind)
}

func TestEvaluateMedicationIgnoresEndedCourses(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	profile := testProfile()
	profile.Allergies = []string{"latex"}
	ended := time.Now()
	active := []pkg.MedicationRecord{{Name: "Warfarin", EndedAt: &ended}}

	verdict, err := e.EvaluateMedication(profile, "Amoxicillin", active)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Empty(t, verdict.Conflicts)
}

func TestEvaluateMedicationUnknownAllergyCaution(t *testing.T) {
	profile := testProfile()
	profile.Allergies = nil

	e := NewEvaluator(mustRules(t))
	verdict, err := e.EvaluateMedication(profile, "Acetaminophen", nil)
	require.NoError(t, err)
	assert.True(t, verdict.Allowed, "unknown allergy state must not block on its own")
	assert.NotEmpty(t, verdict.CautionNote)

	off := NewEvaluatorWithConfig(mustRules(t), Config{CautionOnUnknownAllergies: false})
	verdict, err = off.EvaluateMedication(profile, "Acetaminophen", nil)
	require.NoError(t, err)
	assert.Empty(t, verdict.CautionNote)
}

func TestEvaluateMedicationValidation(t *testing.T) {
	e := NewEvaluator(mustRules(t))

	cases := []struct {
		name      string
		profile   pkg.ChildProfile
		candidate string
	}{
		{"empty candidate", testProfile(), "  "},
		{"empty child id", pkg.ChildProfile{WeightKg: 10}, "Ibuprofen"},
		{"negative age", pkg.ChildProfile{ID: "x", AgeYears: -1, WeightKg: 10}, "Ibuprofen"},
		{"zero weight", pkg.ChildProfile{ID: "x", AgeYears: 2}, "Ibuprofen"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.EvaluateMedication(tc.profile, tc.candidate, nil)
			var verr *pkg.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestEvaluateSymptomsSeverityOutOfRange(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	for _, severity := range []int{0, -3, 11, 100} {
		_, err := e.EvaluateSymptoms(testProfile(), []pkg.SymptomEntry{{Name: "fever", Severity: severity}})
		var verr *pkg.ValidationError
		require.ErrorAs(t, err, &verr, "severity %d must be rejected", severity)
	}
}

func TestEvaluateSymptomsWheezingEmergency(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	profile := pkg.ChildProfile{ID: "c1", AgeYears: 2, WeightKg: 12}

	verdict, err := e.EvaluateSymptoms(profile, []pkg.SymptomEntry{{Name: "wheezing", Severity: 8}})
	require.NoError(t, err)
	assert.Equal(t, pkg.TierEmergency, verdict.Tier)
	assert.NotEmpty(t, verdict.Conflicts)
}

func TestEvaluateSymptomsTierIsMaxAcrossRules(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	entries := []pkg.SymptomEntry{
		{Name: "rash", Severity: 6},     // CALL_DOCTOR
		{Name: "wheezing", Severity: 9}, // EMERGENCY
		{Name: "fever", Severity: 5},    // CALL_DOCTOR
	}
	verdict, err := e.EvaluateSymptoms(testProfile(), entries)
	require.NoError(t, err)
	assert.Equal(t, pkg.TierEmergency, verdict.Tier)
	// Every matched rule is reported, not just the winner.
	assert.GreaterOrEqual(t, len(verdict.Conflicts), 3)
}

func TestEvaluateSymptomsNeverDowngraded(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	base := []pkg.SymptomEntry{{Name: "wheezing", Severity: 9}}
	withExtra := append([]pkg.SymptomEntry{{Name: "sniffles", Severity: 2}}, base...)

	v1, err := e.EvaluateSymptoms(testProfile(), base)
	require.NoError(t, err)
	v2, err := e.EvaluateSymptoms(testProfile(), withExtra)
	require.NoError(t, err)
	assert.Equal(t, v1.Tier, v2.Tier, "non-matching data must not lower the tier")
}

func TestEvaluateSymptomsInfantFeverBand(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	entries := []pkg.SymptomEntry{{Name: "fever", Severity: 4}}

	infant := pkg.ChildProfile{ID: "i1", AgeYears: 0, WeightKg: 4}
	verdict, err := e.EvaluateSymptoms(infant, entries)
	require.NoError(t, err)
	assert.Equal(t, pkg.TierEmergency, verdict.Tier)

	older := pkg.ChildProfile{ID: "c2", AgeYears: 6, WeightKg: 20}
	verdict, err = e.EvaluateSymptoms(older, entries)
	require.NoError(t, err)
	assert.Equal(t, pkg.TierRoutine, verdict.Tier)
}

func TestEvaluateSymptomsNoMatches(t *testing.T) {
	e := NewEvaluator(mustRules(t))
	verdict, err := e.EvaluateSymptoms(testProfile(), []pkg.SymptomEntry{{Name: "stubbed toe", Severity: 2}})
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, pkg.TierRoutine, verdict.Tier)
	assert.Empty(t, verdict.Conflicts)
}
