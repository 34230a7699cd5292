package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pediatric-assistant/pkg"
)

// MemoryStore is an in-memory Store for tests and development. All
// methods copy data in and out, so callers never share mutable state
// with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	children     map[string]pkg.ChildProfile
	medications  map[string][]pkg.MedicationRecord
	symptoms     map[string][]pkg.SymptomEntry
	appointments map[string][]pkg.Appointment
	pharmacies   map[string]pkg.Pharmacy
	now          func() time.Time
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		children:     make(map[string]pkg.ChildProfile),
		medications:  make(map[string][]pkg.MedicationRecord),
		symptoms:     make(map[string][]pkg.SymptomEntry),
		appointments: make(map[string][]pkg.Appointment),
		pharmacies:   make(map[string]pkg.Pharmacy),
		now:          time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// SetClock overrides the store's clock, for tests.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) GetChild(ctx context.Context, childID string) (pkg.ChildProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.children[childID]
	if !ok {
		return pkg.ChildProfile{}, &pkg.NotFoundError{Entity: "child", ID: childID}
	}
	c.Allergies = append([]string(nil), c.Allergies...)
	return c, nil
}

func (s *MemoryStore) UpsertChild(ctx context.Context, profile pkg.ChildProfile) (pkg.ChildProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	existing, ok := s.children[profile.ID]
	if ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	profile.Allergies = append([]string(nil), profile.Allergies...)
	s.children[profile.ID] = profile
	return profile, nil
}

func (s *MemoryStore) AddMedication(ctx context.Context, childID string, m pkg.MedicationRecord) (pkg.MedicationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.children[childID]; !ok {
		return pkg.MedicationRecord{}, &pkg.NotFoundError{Entity: "child", ID: childID}
	}
	m.ID = uuid.NewString()
	m.ChildID = childID
	if m.StartedAt.IsZero() {
		m.StartedAt = s.now().UTC()
	}
	m.EndedAt = nil
	s.medications[childID] = append(s.medications[childID], m)
	return m, nil
}

func (s *MemoryStore) ListActiveMedications(ctx context.Context, childID string) ([]pkg.MedicationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pkg.MedicationRecord
	for _, m := range s.medications[childID] {
		if m.EndedAt == nil {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryStore) EndMedication(ctx context.Context, childID, medicationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meds := s.medications[childID]
	for i := range meds {
		if meds[i].ID == medicationID {
			if meds[i].EndedAt == nil {
				ended := s.now().UTC()
				meds[i].EndedAt = &ended
			}
			return nil
		}
	}
	return &pkg.NotFoundError{Entity: "medication", ID: medicationID}
}

func (s *MemoryStore) LogSymptom(ctx context.Context, childID string, entry pkg.SymptomEntry) (pkg.SymptomEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.children[childID]; !ok {
		return pkg.SymptomEntry{}, &pkg.NotFoundError{Entity: "child", ID: childID}
	}
	entry.ID = uuid.NewString()
	entry.ChildID = childID
	if entry.ReportedAt.IsZero() {
		entry.ReportedAt = s.now().UTC()
	}
	s.symptoms[childID] = append(s.symptoms[childID], entry)
	return entry, nil
}

func (s *MemoryStore) ListRecentSymptoms(ctx context.Context, childID string, since time.Time) ([]pkg.SymptomEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pkg.SymptomEntry
	for _, e := range s.symptoms[childID] {
		if !e.ReportedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReportedAt.Before(out[j].ReportedAt) })
	return out, nil
}

func (s *MemoryStore) CreateAppointment(ctx context.Context, childID string, a pkg.Appointment) (pkg.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.children[childID]; !ok {
		return pkg.Appointment{}, &pkg.NotFoundError{Entity: "child", ID: childID}
	}
	a.ID = uuid.NewString()
	a.ChildID = childID
	if a.Status == "" {
		a.Status = pkg.AppointmentScheduled
	}
	s.appointments[childID] = append(s.appointments[childID], a)
	return a, nil
}

func (s *MemoryStore) UpsertPharmacy(ctx context.Context, p pkg.Pharmacy) (pkg.Pharmacy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pharmacies[p.Name] = p
	return p, nil
}

func (s *MemoryStore) FindPharmacies(ctx context.Context, location string, limit int) ([]pkg.Pharmacy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(location)
	var out []pkg.Pharmacy
	for _, p := range s.pharmacies {
		if needle == "" || strings.Contains(strings.ToLower(p.Location), needle) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListUpcomingAppointments(ctx context.Context, childID string, limit int) ([]pkg.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 5
	}
	now := s.now()
	var out []pkg.Appointment
	for _, a := range s.appointments[childID] {
		if a.Status == pkg.AppointmentScheduled && !a.ScheduledAt.Before(now) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
