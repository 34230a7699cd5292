package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pediatric-assistant/pkg"
)

type childRequest struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	AgeYears  int      `json:"age_years"`
	WeightKg  float64  `json:"weight_kg"`
	Allergies []string `json:"allergies"`
}

type medicationRequest struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

type medicationResponse struct {
	Medication pkg.MedicationRecord `json:"medication"`
	Verdict    pkg.SafetyVerdict    `json:"verdict"`
}

type symptomRequest struct {
	Name     string `json:"name"`
	Severity int    `json:"severity"`
	Note     string `json:"note"`
}

type symptomResponse struct {
	Symptom pkg.SymptomEntry  `json:"symptom"`
	Verdict pkg.SafetyVerdict `json:"verdict"`
}

type appointmentRequest struct {
	Kind        string    `json:"kind"`
	Doctor      string    `json:"doctor"`
	Location    string    `json:"location"`
	Notes       string    `json:"notes"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type personaRequest struct {
	Notes string `json:"notes"`
}

type chatRequest struct {
	ChildID   string `json:"child_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleUpsertChild(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &pkg.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	if req.ID == "" {
		writeError(w, &pkg.ValidationError{Field: "id", Reason: "must not be empty"})
		return
	}
	if req.AgeYears < 0 {
		writeError(w, &pkg.ValidationError{Field: "age_years", Reason: "must not be negative"})
		return
	}
	if req.WeightKg <= 0 {
		writeError(w, &pkg.ValidationError{Field: "weight_kg", Reason: "must be positive"})
		return
	}
	child, err := s.Graph.UpsertChild(r.Context(), pkg.ChildProfile{
		ID:        req.ID,
		Name:      req.Name,
		AgeYears:  req.AgeYears,
		WeightKg:  req.WeightKg,
		Allergies: dedupeFold(req.Allergies),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

func (s *Server) handleGetChild(w http.ResponseWriter, r *http.Request) {
	child, err := s.Graph.GetChild(r.Context(), chi.URLParam(r, "childID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, child)
}

// handleAddMedication runs the safety evaluation before anything is
// persisted. A blocked verdict is returned to the caller as a structured
// 409, never recorded.
func (s *Server) handleAddMedication(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "childID")
	var req medicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &pkg.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	child, err := s.Graph.GetChild(r.Context(), childID)
	if err != nil {
		writeError(w, err)
		return
	}
	active, err := s.Graph.ListActiveMedications(r.Context(), childID)
	if err != nil {
		writeError(w, err)
		return
	}
	verdict, err := s.Safety.EvaluateMedication(child, req.Name, active)
	if err != nil {
		writeError(w, err)
		return
	}
	if !verdict.Allowed {
		writeError(w, &pkg.SafetyBlockError{Verdict: verdict})
		return
	}

	med, err := s.Graph.AddMedication(r.Context(), childID, pkg.MedicationRecord{
		Name:      req.Name,
		Dosage:    req.Dosage,
		Frequency: req.Frequency,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, medicationResponse{Medication: med, Verdict: verdict})
}

func (s *Server) handleListMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := s.Graph.ListActiveMedications(r.Context(), chi.URLParam(r, "childID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if meds == nil {
		meds = []pkg.MedicationRecord{}
	}
	writeJSON(w, http.StatusOK, meds)
}

func (s *Server) handleEndMedication(w http.ResponseWriter, r *http.Request) {
	err := s.Graph.EndMedication(r.Context(), chi.URLParam(r, "childID"), chi.URLParam(r, "medicationID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogSymptom validates through the evaluator first, persists the
// entry, then evaluates the full recent symptom window so the returned
// verdict reflects everything currently reported, not just this entry.
func (s *Server) handleLogSymptom(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "childID")
	var req symptomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &pkg.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	child, err := s.Graph.GetChild(r.Context(), childID)
	if err != nil {
		writeError(w, err)
		return
	}
	entry := pkg.SymptomEntry{Name: req.Name, Severity: req.Severity, Note: req.Note}
	if _, err := s.Safety.EvaluateSymptoms(child, []pkg.SymptomEntry{entry}); err != nil {
		writeError(w, err)
		return
	}

	logged, err := s.Graph.LogSymptom(r.Context(), childID, entry)
	if err != nil {
		writeError(w, err)
		return
	}
	recent, err := s.Graph.ListRecentSymptoms(r.Context(), childID, time.Now().Add(-s.SymptomWindow))
	if err != nil {
		writeError(w, err)
		return
	}
	verdict, err := s.Safety.EvaluateSymptoms(child, recent)
	if err != nil {
		writeError(w, err)
		return
	}

	if verdict.Tier == pkg.TierEmergency && s.Notifier != nil {
		if err := s.Notifier.NotifyEmergency(r.Context(), childID); err != nil {
			s.Log.Warn("emergency notify failed", zap.String("child_id", childID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, symptomResponse{Symptom: logged, Verdict: verdict})
}

func (s *Server) handleListSymptoms(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-s.SymptomWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, &pkg.ValidationError{Field: "since", Reason: "must be RFC 3339"})
			return
		}
		since = parsed
	}
	entries, err := s.Graph.ListRecentSymptoms(r.Context(), chi.URLParam(r, "childID"), since)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []pkg.SymptomEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "childID")
	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &pkg.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	if req.Kind == "" {
		writeError(w, &pkg.ValidationError{Field: "kind", Reason: "must not be empty"})
		return
	}
	if req.ScheduledAt.IsZero() {
		writeError(w, &pkg.ValidationError{Field: "scheduled_at", Reason: "must be set"})
		return
	}
	appt, err := s.Graph.CreateAppointment(r.Context(), childID, pkg.Appointment{
		Kind:        req.Kind,
		Doctor:      req.Doctor,
		Location:    req.Location,
		Notes:       req.Notes,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := s.Graph.ListUpcomingAppointments(r.Context(), chi.URLParam(r, "childID"), 10)
	if err != nil {
		writeError(w, err)
		return
	}
	if appts == nil {
		appts = []pkg.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}

func (s *Server) handleUpsertPharmacy(w http.ResponseWriter, r *http.Request) {
	var req pkg.Pharmacy
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &pkg.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, &pkg.ValidationError{Field: "name", Reason: "must not be empty"})
		return
	}
	pharmacy, err := s.Graph.UpsertPharmacy(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pharmacy)
}

func (s *Server) handleFindPharmacies(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, &pkg.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		limit = n
	}
	pharmacies, err := s.Graph.FindPharmacies(r.Context(), r.URL.Query().Get("location"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if pharmacies == nil {
		pharmacies = []pkg.Pharmacy{}
	}
	writeJSON(w, http.StatusOK, pharmacies)
}

func (s *Server) handleListGuides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"conditions": s.Guides.Conditions()})
}

func (s *Server) handleGetGuide(w http.ResponseWriter, r *http.Request) {
	condition := chi.URLParam(r, "condition")
	if unescaped, err := url.PathUnescape(condition); err == nil {
		condition = unescaped
	}
	guide, err := s.Guides.Lookup(condition)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guide)
}

// handleAlertStream streams emergency alerts as server-sent events, one
// event per affected child, until the client disconnects.
func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, &pkg.RemoteServiceError{Service: "alerts", Err: errors.New("no alert source configured")})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.New("streaming unsupported"))
		return
	}
	alerts, err := s.Alerts.Listen(r.Context())
	if err != nil {
		writeError(w, &pkg.RemoteServiceError{Service: "alerts", Err: err})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case childID, open := <-alerts:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: emergency\ndata: %s\n\n", childID)
			flusher.Flush()
		}
	}
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	notes, err := s.Memory.GetProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, personaRequest{Notes: notes})
}

func (s *Server) handleSetPersona(w http.ResponseWriter, r *http.Request) {
	var req personaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &pkg.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	if err := s.Memory.SetProfile(r.Context(), chi.URLParam(r, "userID"), req.Notes); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &pkg.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}
	if req.ChildID == "" || req.SessionID == "" {
		writeError(w, &pkg.ValidationError{Field: "child_id/session_id", Reason: "must not be empty"})
		return
	}
	reply, err := s.Chat.Answer(r.Context(), req.ChildID, req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// dedupeFold removes case-insensitive duplicates while keeping the first
// spelling and the original order.
func dedupeFold(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := foldKey(item)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the error kinds of the domain onto HTTP statuses:
// validation 400, missing entity 404, safety block 409, collaborator
// failure 502, anything else 500.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *pkg.ValidationError
		notFound   *pkg.NotFoundError
		blocked    *pkg.SafetyBlockError
		remote     *pkg.RemoteServiceError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusConflict, medicationResponse{Verdict: blocked.Verdict})
	case errors.As(err, &remote):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
