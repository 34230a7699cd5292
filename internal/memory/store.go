package memory

import (
	"context"
	"sync"

	"pediatric-assistant/pkg"
)

// Store is the conversation-memory backend: a persona profile per user
// and an ordered turn history per chat session.
type Store interface {
	// GetProfile returns the persona notes for a user, or "" when none
	// have been written yet.
	GetProfile(ctx context.Context, userID string) (string, error)
	SetProfile(ctx context.Context, userID, notes string) error

	// GetHistory returns up to limit most recent turns, oldest first.
	GetHistory(ctx context.Context, sessionID string, limit int) ([]pkg.ConversationTurn, error)
	AppendTurn(ctx context.Context, sessionID string, turn pkg.ConversationTurn) error
}

// InMemoryStore keeps everything in process memory. Used in tests and
// when no Redis address is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]string
	history  map[string][]pkg.ConversationTurn
}

// NewInMemoryStore builds an empty in-process store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]string),
		history:  make(map[string][]pkg.ConversationTurn),
	}
}

var _ Store = (*InMemoryStore)(nil)

func (s *InMemoryStore) GetProfile(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[userID], nil
}

func (s *InMemoryStore) SetProfile(ctx context.Context, userID, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = notes
	return nil
}

func (s *InMemoryStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]pkg.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.history[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]pkg.ConversationTurn(nil), turns...), nil
}

func (s *InMemoryStore) AppendTurn(ctx context.Context, sessionID string, turn pkg.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[sessionID] = append(s.history[sessionID], turn)
	return nil
}
