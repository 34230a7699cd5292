package graph

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pediatric-assistant/pkg"
)

// Repository is the Postgres-backed Store. The caller owns the *sql.DB
// lifecycle; Repository only issues queries against it.
type Repository struct {
	DB *sql.DB
}

// NewRepository wraps an existing database handle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

var _ Store = (*Repository)(nil)

// GetChild fetches a child's profile by identifier.
func (r *Repository) GetChild(ctx context.Context, childID string) (pkg.ChildProfile, error) {
	var c pkg.ChildProfile
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, age_years, weight_kg, allergies, created_at, updated_at
         FROM children
         WHERE id = $1`, childID,
	).Scan(&c.ID, &c.Name, &c.AgeYears, &c.WeightKg, pq.Array(&c.Allergies), &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pkg.ChildProfile{}, &pkg.NotFoundError{Entity: "child", ID: childID}
	}
	if err != nil {
		return pkg.ChildProfile{}, err
	}
	return c, nil
}

// UpsertChild creates or updates a child profile in a single statement,
// so the write is atomic from the caller's point of view.
func (r *Repository) UpsertChild(ctx context.Context, profile pkg.ChildProfile) (pkg.ChildProfile, error) {
	var c pkg.ChildProfile
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO children (id, name, age_years, weight_kg, allergies)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (id) DO UPDATE
           SET name = EXCLUDED.name,
               age_years = EXCLUDED.age_years,
               weight_kg = EXCLUDED.weight_kg,
               allergies = EXCLUDED.allergies,
               updated_at = NOW()
         RETURNING id, name, age_years, weight_kg, allergies, created_at, updated_at`,
		profile.ID, profile.Name, profile.AgeYears, profile.WeightKg, pq.Array(profile.Allergies),
	).Scan(&c.ID, &c.Name, &c.AgeYears, &c.WeightKg, pq.Array(&c.Allergies), &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return pkg.ChildProfile{}, err
	}
	return c, nil
}

// AddMedication records a new medication course for the child.
func (r *Repository) AddMedication(ctx context.Context, childID string, m pkg.MedicationRecord) (pkg.MedicationRecord, error) {
	if _, err := r.GetChild(ctx, childID); err != nil {
		return pkg.MedicationRecord{}, err
	}
	startedAt := m.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	var out pkg.MedicationRecord
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO medications (id, child_id, name, dosage, frequency, started_at)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING id, child_id, name, dosage, frequency, started_at, ended_at`,
		uuid.NewString(), childID, m.Name, m.Dosage, m.Frequency, startedAt,
	).Scan(&out.ID, &out.ChildID, &out.Name, &out.Dosage, &out.Frequency, &out.StartedAt, &out.EndedAt)
	if err != nil {
		return pkg.MedicationRecord{}, err
	}
	return out, nil
}

// ListActiveMedications returns the child's ongoing medication courses,
// most recently started first.
func (r *Repository) ListActiveMedications(ctx context.Context, childID string) ([]pkg.MedicationRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, child_id, name, dosage, frequency, started_at, ended_at
         FROM medications
         WHERE child_id = $1 AND ended_at IS NULL
         ORDER BY started_at DESC, id`, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.MedicationRecord
	for rows.Next() {
		var m pkg.MedicationRecord
		if err := rows.Scan(&m.ID, &m.ChildID, &m.Name, &m.Dosage, &m.Frequency, &m.StartedAt, &m.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// EndMedication closes a medication course. Ending an already-ended
// course is a no-op.
func (r *Repository) EndMedication(ctx context.Context, childID, medicationID string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE medications SET ended_at = NOW()
         WHERE id = $1 AND child_id = $2 AND ended_at IS NULL`,
		medicationID, childID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish "missing" from "already ended".
		var exists bool
		if err := r.DB.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM medications WHERE id = $1 AND child_id = $2)`,
			medicationID, childID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return &pkg.NotFoundError{Entity: "medication", ID: medicationID}
		}
	}
	return nil
}

// LogSymptom appends a symptom observation. Entries are never updated
// after creation.
func (r *Repository) LogSymptom(ctx context.Context, childID string, s pkg.SymptomEntry) (pkg.SymptomEntry, error) {
	if _, err := r.GetChild(ctx, childID); err != nil {
		return pkg.SymptomEntry{}, err
	}
	reportedAt := s.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now().UTC()
	}
	var out pkg.SymptomEntry
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO symptoms (id, child_id, name, severity, note, reported_at)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING id, child_id, name, severity, note, reported_at`,
		uuid.NewString(), childID, s.Name, s.Severity, s.Note, reportedAt,
	).Scan(&out.ID, &out.ChildID, &out.Name, &out.Severity, &out.Note, &out.ReportedAt)
	if err != nil {
		return pkg.SymptomEntry{}, err
	}
	return out, nil
}

// ListRecentSymptoms returns symptom entries reported at or after the
// given time, oldest first.
func (r *Repository) ListRecentSymptoms(ctx context.Context, childID string, since time.Time) ([]pkg.SymptomEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, child_id, name, severity, note, reported_at
         FROM symptoms
         WHERE child_id = $1 AND reported_at >= $2
         ORDER BY reported_at ASC, id`, childID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.SymptomEntry
	for rows.Next() {
		var s pkg.SymptomEntry
		if err := rows.Scan(&s.ID, &s.ChildID, &s.Name, &s.Severity, &s.Note, &s.ReportedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateAppointment schedules a visit for the child.
func (r *Repository) CreateAppointment(ctx context.Context, childID string, a pkg.Appointment) (pkg.Appointment, error) {
	if _, err := r.GetChild(ctx, childID); err != nil {
		return pkg.Appointment{}, err
	}
	status := a.Status
	if status == "" {
		status = pkg.AppointmentScheduled
	}
	var out pkg.Appointment
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO appointments (id, child_id, kind, doctor, location, notes, scheduled_at, status)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         RETURNING id, child_id, kind, doctor, location, notes, scheduled_at, status`,
		uuid.NewString(), childID, a.Kind, a.Doctor, a.Location, a.Notes, a.ScheduledAt, string(status),
	).Scan(&out.ID, &out.ChildID, &out.Kind, &out.Doctor, &out.Location, &out.Notes, &out.ScheduledAt, &out.Status)
	if err != nil {
		return pkg.Appointment{}, err
	}
	return out, nil
}

// UpsertPharmacy creates or updates a directory entry by name.
func (r *Repository) UpsertPharmacy(ctx context.Context, p pkg.Pharmacy) (pkg.Pharmacy, error) {
	var out pkg.Pharmacy
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO pharmacies (name, location, phone, hours)
         VALUES ($1, $2, $3, $4)
         ON CONFLICT (name) DO UPDATE
           SET location = EXCLUDED.location,
               phone = EXCLUDED.phone,
               hours = EXCLUDED.hours
         RETURNING name, location, phone, hours`,
		p.Name, p.Location, p.Phone, p.Hours,
	).Scan(&out.Name, &out.Location, &out.Phone, &out.Hours)
	if err != nil {
		return pkg.Pharmacy{}, err
	}
	return out, nil
}

// FindPharmacies lists directory entries, optionally filtered by a
// case-insensitive location substring, ordered by name.
func (r *Repository) FindPharmacies(ctx context.Context, location string, limit int) ([]pkg.Pharmacy, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT name, location, phone, hours
         FROM pharmacies
         WHERE $1 = '' OR location ILIKE '%' || $1 || '%'
         ORDER BY name
         LIMIT $2`, location, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.Pharmacy
	for rows.Next() {
		var p pkg.Pharmacy
		if err := rows.Scan(&p.Name, &p.Location, &p.Phone, &p.Hours); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListUpcomingAppointments returns scheduled appointments from now on,
// soonest first.
func (r *Repository) ListUpcomingAppointments(ctx context.Context, childID string, limit int) ([]pkg.Appointment, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, child_id, kind, doctor, location, notes, scheduled_at, status
         FROM appointments
         WHERE child_id = $1 AND status = 'scheduled' AND scheduled_at >= NOW()
         ORDER BY scheduled_at ASC, id
         LIMIT $2`, childID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.Appointment
	for rows.Next() {
		var a pkg.Appointment
		if err := rows.Scan(&a.ID, &a.ChildID, &a.Kind, &a.Doctor, &a.Location, &a.Notes, &a.ScheduledAt, &a.Status); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
