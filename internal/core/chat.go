package core

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"pediatric-assistant/internal/graph"
	"pediatric-assistant/internal/llm"
	"pediatric-assistant/internal/memory"
	"pediatric-assistant/internal/prompt"
	"pediatric-assistant/internal/safety"
	"pediatric-assistant/pkg"
)

// ChatConfig bounds one chat turn. Zero values fall back to the
// defaults below.
type ChatConfig struct {
	MaxPromptLength int
	HistoryLimit    int
	SymptomWindow   time.Duration
	FetchTimeout    time.Duration
	ModelOptions    llm.Options
}

const (
	defaultMaxPromptLength = 12000
	defaultHistoryLimit    = 20
	defaultSymptomWindow   = 24 * time.Hour
	defaultFetchTimeout    = 5 * time.Second
)

// ChatService runs one full chat turn: memory fetch, graph fetch, safety
// pass, prompt assembly, model call, memory write. All state is fetched
// fresh per request; nothing is cached across turns, so a stale allergy
// list can never leak into a verdict.
type ChatService struct {
	graph  graph.Store
	mem    memory.Store
	model  llm.Client
	safety *safety.Evaluator
	log    *zap.Logger
	cfg    ChatConfig
}

// NewChatService wires the collaborators for the chat flow.
func NewChatService(g graph.Store, m memory.Store, model llm.Client, eval *safety.Evaluator, log *zap.Logger, cfg ChatConfig) *ChatService {
	if cfg.MaxPromptLength <= 0 {
		cfg.MaxPromptLength = defaultMaxPromptLength
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.SymptomWindow <= 0 {
		cfg.SymptomWindow = defaultSymptomWindow
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &ChatService{graph: g, mem: m, model: model, safety: eval, log: log, cfg: cfg}
}

// Answer handles one parent message for the given child and session.
// Memory and graph failures degrade to explicit "unavailable" markers in
// the prompt; a model failure is fatal for the turn and is returned to
// the caller as a retryable error. The model call is never retried here,
// so a single request can never record duplicate turns.
func (s *ChatService) Answer(ctx context.Context, childID, sessionID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", &pkg.ValidationError{Field: "message", Reason: "must not be empty"}
	}

	profileNotes := s.fetchProfileNotes(ctx, childID)
	history := s.fetchHistory(ctx, sessionID)
	facts, verdict := s.fetchFacts(ctx, childID)

	promptText, err := prompt.Build(prompt.BuildInput{
		ProfileNotes: profileNotes,
		History:      history,
		Facts:        facts,
		Verdict:      verdict,
		UserMessage:  message,
		MaxLength:    s.cfg.MaxPromptLength,
	})
	if err != nil {
		return "", err
	}

	reply, err := s.model.Complete(ctx, promptText, s.cfg.ModelOptions)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	s.appendTurn(ctx, sessionID, pkg.ConversationTurn{Role: pkg.RoleParent, Text: message, Timestamp: now})
	s.appendTurn(ctx, sessionID, pkg.ConversationTurn{Role: pkg.RoleAssistant, Text: reply, Timestamp: now})
	return reply, nil
}

func (s *ChatService) fetchProfileNotes(ctx context.Context, childID string) string {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	notes, err := s.mem.GetProfile(ctx, childID)
	if err != nil {
		s.log.Warn("profile memory unavailable", zap.String("child_id", childID), zap.Error(err))
		return ""
	}
	return notes
}

func (s *ChatService) fetchHistory(ctx context.Context, sessionID string) []pkg.ConversationTurn {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	history, err := s.mem.GetHistory(ctx, sessionID, s.cfg.HistoryLimit)
	if err != nil {
		s.log.Warn("history unavailable", zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}
	return history
}

// fetchFacts loads the child's record and, when recent symptoms exist,
// runs the safety pass over them. Any fetch failure degrades to a nil
// snapshot rather than aborting the turn.
func (s *ChatService) fetchFacts(ctx context.Context, childID string) (*prompt.GraphFacts, *pkg.SafetyVerdict) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	child, err := s.graph.GetChild(ctx, childID)
	if err != nil {
		s.log.Warn("child record unavailable", zap.String("child_id", childID), zap.Error(err))
		return nil, nil
	}

	facts := &prompt.GraphFacts{Child: child}
	if meds, err := s.graph.ListActiveMedications(ctx, childID); err != nil {
		s.log.Warn("medication list unavailable", zap.String("child_id", childID), zap.Error(err))
	} else {
		facts.Medications = meds
	}
	since := time.Now().Add(-s.cfg.SymptomWindow)
	if symptoms, err := s.graph.ListRecentSymptoms(ctx, childID, since); err != nil {
		s.log.Warn("symptom list unavailable", zap.String("child_id", childID), zap.Error(err))
	} else {
		facts.Symptoms = symptoms
	}
	if appts, err := s.graph.ListUpcomingAppointments(ctx, childID, 5); err != nil {
		s.log.Warn("appointment list unavailable", zap.String("child_id", childID), zap.Error(err))
	} else {
		facts.Appointments = appts
	}

	var verdict *pkg.SafetyVerdict
	if len(facts.Symptoms) > 0 {
		v, err := s.safety.EvaluateSymptoms(child, facts.Symptoms)
		if err != nil {
			s.log.Warn("symptom evaluation failed", zap.String("child_id", childID), zap.Error(err))
		} else {
			verdict = &v
		}
	}
	return facts, verdict
}

func (s *ChatService) appendTurn(ctx context.Context, sessionID string, turn pkg.ConversationTurn) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	if err := s.mem.AppendTurn(ctx, sessionID, turn); err != nil {
		s.log.Warn("failed to record turn", zap.String("session_id", sessionID), zap.Error(err))
	}
}
