package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pediatric-assistant/internal/graph"
	"pediatric-assistant/internal/llm"
	"pediatric-assistant/internal/memory"
	"pediatric-assistant/internal/prompt"
	"pediatric-assistant/internal/safety"
	"pediatric-assistant/pkg"
)

// fakeModel records the prompt it was handed and returns a canned reply
// or error.
type fakeModel struct {
	lastPrompt string
	reply      string
	err        error
}

func (f *fakeModel) Complete(ctx context.Context, promptText string, opts llm.Options) (string, error) {
	f.lastPrompt = promptText
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newChatFixture(t *testing.T, model *fakeModel) (*ChatService, *graph.MemoryStore, *memory.InMemoryStore) {
	t.Helper()
	rules, err := safety.LoadDefaultRules()
	require.NoError(t, err)
	g := graph.NewMemoryStore()
	m := memory.NewInMemoryStore()
	svc := NewChatService(g, m, model, safety.NewEvaluator(rules), zap.NewNop(), ChatConfig{})
	return svc, g, m
}

func registerEmma(t *testing.T, g *graph.MemoryStore) {
	t.Helper()
	_, err := g.UpsertChild(context.Background(), pkg.ChildProfile{
		ID: "emma", Name: "Emma", AgeYears: 5, WeightKg: 18.5, Allergies: []string{"penicillin"},
	})
	require.NoError(t, err)
}

func TestAnswerFullTurn(t *testing.T) {
	model := &fakeModel{reply: "Keep her hydrated and watch the fever."}
	svc, g, m := newChatFixture(t, model)
	ctx := context.Background()
	registerEmma(t, g)
	_, err := g.AddMedication(ctx, "emma", pkg.MedicationRecord{Name: "Ibuprofen", Dosage: "100mg", Frequency: "as needed"})
	require.NoError(t, err)
	require.NoError(t, m.SetProfile(ctx, "emma", "Emma loves soccer"))

	reply, err := svc.Answer(ctx, "emma", "sess-1", "Should I give her more medicine?")
	require.NoError(t, err)
	assert.Equal(t, model.reply, reply)

	// The prompt carried the fetched data.
	assert.Contains(t, model.lastPrompt, "Emma loves soccer")
	assert.Contains(t, model.lastPrompt, "Ibuprofen")
	assert.Contains(t, model.lastPrompt, "penicillin")
	assert.Contains(t, model.lastPrompt, "Should I give her more medicine?")

	// Both turns were recorded.
	history, err := m.GetHistory(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, pkg.RoleParent, history[0].Role)
	assert.Equal(t, pkg.RoleAssistant, history[1].Role)
	assert.Equal(t, model.reply, history[1].Text)
}

func TestAnswerEmptyMessage(t *testing.T) {
	svc, _, _ := newChatFixture(t, &fakeModel{reply: "x"})
	_, err := svc.Answer(context.Background(), "emma", "sess", "  ")
	var verr *pkg.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAnswerModelFailureIsFatalForTurn(t *testing.T) {
	model := &fakeModel{err: &pkg.RemoteServiceError{Service: "model", Err: errors.New("timeout")}}
	svc, g, m := newChatFixture(t, model)
	ctx := context.Background()
	registerEmma(t, g)

	_, err := svc.Answer(ctx, "emma", "sess", "hello")
	var remote *pkg.RemoteServiceError
	require.ErrorAs(t, err, &remote)

	// A failed turn records nothing, so a caller retry cannot duplicate
	// history.
	history, err := m.GetHistory(ctx, "sess", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnswerUnknownChildDegradesToMarker(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	svc, _, _ := newChatFixture(t, model)

	_, err := svc.Answer(context.Background(), "ghost", "sess", "is she ok?")
	require.NoError(t, err)
	assert.Contains(t, model.lastPrompt, prompt.NoGraphMarker)
	assert.Contains(t, model.lastPrompt, prompt.NoProfileMarker)
}

func TestAnswerRecentEmergencySymptomShapesPrompt(t *testing.T) {
	model := &fakeModel{reply: "Call 911 now."}
	svc, g, _ := newChatFixture(t, model)
	ctx := context.Background()
	registerEmma(t, g)
	_, err := g.LogSymptom(ctx, "emma", pkg.SymptomEntry{
		Name: "wheezing", Severity: 8, ReportedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.Answer(ctx, "emma", "sess", "she keeps wheezing")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(model.lastPrompt, prompt.EmergencyBlock),
		"emergency verdict must put the alert block first")
	assert.Contains(t, model.lastPrompt, "wheezing")
}
