package graph

import (
	"context"
	"time"

	"pediatric-assistant/pkg"
)

// Store is the typed interface over the child-record graph. Rows coming
// back from the underlying store are mapped into the pkg types at this
// boundary, so nothing downstream branches on untyped data.
type Store interface {
	GetChild(ctx context.Context, childID string) (pkg.ChildProfile, error)
	UpsertChild(ctx context.Context, profile pkg.ChildProfile) (pkg.ChildProfile, error)

	AddMedication(ctx context.Context, childID string, m pkg.MedicationRecord) (pkg.MedicationRecord, error)
	ListActiveMedications(ctx context.Context, childID string) ([]pkg.MedicationRecord, error)
	EndMedication(ctx context.Context, childID, medicationID string) error

	LogSymptom(ctx context.Context, childID string, s pkg.SymptomEntry) (pkg.SymptomEntry, error)
	ListRecentSymptoms(ctx context.Context, childID string, since time.Time) ([]pkg.SymptomEntry, error)

	CreateAppointment(ctx context.Context, childID string, a pkg.Appointment) (pkg.Appointment, error)
	ListUpcomingAppointments(ctx context.Context, childID string, limit int) ([]pkg.Appointment, error)

	UpsertPharmacy(ctx context.Context, p pkg.Pharmacy) (pkg.Pharmacy, error)
	// FindPharmacies filters the directory by a case-insensitive location
	// substring; an empty location returns everything up to limit.
	FindPharmacies(ctx context.Context, location string, limit int) ([]pkg.Pharmacy, error)
}
