package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pediatric-assistant/pkg"
)

func newTestStore(t *testing.T) (*MemoryStore, pkg.ChildProfile) {
	t.Helper()
	s := NewMemoryStore()
	child, err := s.UpsertChild(context.Background(), pkg.ChildProfile{
		ID:        "emma",
		Name:      "Emma",
		AgeYears:  5,
		WeightKg:  18.5,
		Allergies: []string{"penicillin"},
	})
	require.NoError(t, err)
	return s, child
}

func TestMemoryStoreChildLifecycle(t *testing.T) {
	s, created := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetChild(ctx, "emma")
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)

	// Updating keeps the creation time.
	updated, err := s.UpsertChild(ctx, pkg.ChildProfile{ID: "emma", Name: "Emma", AgeYears: 6, WeightKg: 20})
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, 6, updated.AgeYears)

	_, err = s.GetChild(ctx, "nobody")
	var nf *pkg.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestMemoryStoreMedications(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddMedication(ctx, "missing", pkg.MedicationRecord{Name: "Ibuprofen"})
	var nf *pkg.NotFoundError
	require.ErrorAs(t, err, &nf)

	first, err := s.AddMedication(ctx, "emma", pkg.MedicationRecord{
		Name: "Ibuprofen", Dosage: "100mg", Frequency: "every 6h",
		StartedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	second, err := s.AddMedication(ctx, "emma", pkg.MedicationRecord{Name: "Amoxicillin"})
	require.NoError(t, err)

	active, err := s.ListActiveMedications(ctx, "emma")
	require.NoError(t, err)
	require.Len(t, active, 2)
	// Most recently started first.
	assert.Equal(t, second.ID, active[0].ID)

	require.NoError(t, s.EndMedication(ctx, "emma", first.ID))
	active, err = s.ListActiveMedications(ctx, "emma")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	err = s.EndMedication(ctx, "emma", "bogus")
	require.ErrorAs(t, err, &nf)
}

func TestMemoryStoreSymptomsSinceFilter(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	old := pkg.SymptomEntry{Name: "cough", Severity: 3, ReportedAt: time.Now().Add(-48 * time.Hour)}
	recent := pkg.SymptomEntry{Name: "fever", Severity: 6, ReportedAt: time.Now().Add(-time.Hour)}
	_, err := s.LogSymptom(ctx, "emma", old)
	require.NoError(t, err)
	logged, err := s.LogSymptom(ctx, "emma", recent)
	require.NoError(t, err)
	assert.NotEmpty(t, logged.ID)

	got, err := s.ListRecentSymptoms(ctx, "emma", time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fever", got[0].Name)

	all, err := s.ListRecentSymptoms(ctx, "emma", time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "cough", all[0].Name, "oldest first")
}

func TestMemoryStoreAppointments(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	past := pkg.Appointment{Kind: "Checkup", ScheduledAt: time.Now().Add(-time.Hour)}
	soon := pkg.Appointment{Kind: "Vaccination", Doctor: "Smith", ScheduledAt: time.Now().Add(2 * time.Hour)}
	later := pkg.Appointment{Kind: "Checkup", ScheduledAt: time.Now().Add(48 * time.Hour)}
	for _, a := range []pkg.Appointment{past, later, soon} {
		_, err := s.CreateAppointment(ctx, "emma", a)
		require.NoError(t, err)
	}

	upcoming, err := s.ListUpcomingAppointments(ctx, "emma", 5)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "Vaccination", upcoming[0].Kind, "soonest first")
	assert.Equal(t, pkg.AppointmentScheduled, upcoming[0].Status)
}

func TestMemoryStorePharmacies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, p := range []pkg.Pharmacy{
		{Name: "Walgreens Downtown", Location: "12 Main St, Springfield", Phone: "555-0101", Hours: "8am-10pm"},
		{Name: "CVS Riverside", Location: "300 River Rd, Springfield", Phone: "555-0102", Hours: "24h"},
		{Name: "Corner Pharmacy", Location: "9 Oak Ave, Shelbyville", Phone: "555-0103", Hours: "9am-6pm"},
	} {
		_, err := s.UpsertPharmacy(ctx, p)
		require.NoError(t, err)
	}

	all, err := s.FindPharmacies(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "CVS Riverside", all[0].Name, "ordered by name")

	springfield, err := s.FindPharmacies(ctx, "SPRINGFIELD", 0)
	require.NoError(t, err)
	assert.Len(t, springfield, 2, "location filter is case-insensitive")

	limited, err := s.FindPharmacies(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	// Upserting an existing name replaces, never duplicates.
	updated, err := s.UpsertPharmacy(ctx, pkg.Pharmacy{Name: "Corner Pharmacy", Location: "9 Oak Ave, Shelbyville", Phone: "555-0199", Hours: "9am-9pm"})
	require.NoError(t, err)
	assert.Equal(t, "555-0199", updated.Phone)
	all, err = s.FindPharmacies(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
