package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pediatric-assistant/internal/core"
	"pediatric-assistant/internal/graph"
	"pediatric-assistant/internal/guides"
	"pediatric-assistant/internal/memory"
	"pediatric-assistant/internal/safety"
)

// EmergencyNotifier publishes an alert when a symptom log produces an
// emergency-tier verdict. graph.Notifier satisfies it; a nil notifier
// disables alerts.
type EmergencyNotifier interface {
	NotifyEmergency(ctx context.Context, childID string) error
}

// AlertSource is the subscribe half of the emergency channel, consumed
// by the alert stream endpoint. graph.Notifier satisfies it too.
type AlertSource interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// Server bundles the dependencies the HTTP handlers need. Construct it
// as a literal and pass it to NewServer, which fills defaults and
// mounts the routes.
type Server struct {
	Graph    graph.Store
	Memory   memory.Store
	Chat     *core.ChatService
	Safety   *safety.Evaluator
	Notifier EmergencyNotifier
	Alerts   AlertSource
	Guides   *guides.Library
	Log      *zap.Logger

	// SymptomWindow is how far back symptom listings and post-log
	// re-evaluations look. It should match the chat service's window so
	// both paths see the same recent symptoms. Zero means 24 hours.
	SymptomWindow time.Duration

	router chi.Router
}

// NewServer fills defaults and mounts the routes.
func NewServer(s Server) *Server {
	if s.SymptomWindow <= 0 {
		s.SymptomWindow = 24 * time.Hour
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(api chi.Router) {
		api.Post("/children", s.handleUpsertChild)
		api.Route("/children/{childID}", func(cr chi.Router) {
			cr.Get("/", s.handleGetChild)
			cr.Post("/medications", s.handleAddMedication)
			cr.Get("/medications", s.handleListMedications)
			cr.Delete("/medications/{medicationID}", s.handleEndMedication)
			cr.Post("/symptoms", s.handleLogSymptom)
			cr.Get("/symptoms", s.handleListSymptoms)
			cr.Post("/appointments", s.handleCreateAppointment)
			cr.Get("/appointments", s.handleListAppointments)
		})
		api.Get("/personas/{userID}", s.handleGetPersona)
		api.Put("/personas/{userID}", s.handleSetPersona)
		api.Post("/pharmacies", s.handleUpsertPharmacy)
		api.Get("/pharmacies", s.handleFindPharmacies)
		api.Get("/guides", s.handleListGuides)
		api.Get("/guides/{condition}", s.handleGetGuide)
		api.Get("/alerts", s.handleAlertStream)
		api.Post("/chat", s.handleChat)
	})
	s.router = r
	return &s
}

// ServeHTTP makes Server usable directly with http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
