package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pediatric-assistant/pkg"
)

const (
	profileKeyPrefix = "persona:"
	historyKeyPrefix = "history:"
)

// RedisStore backs conversation memory with Redis: the persona profile
// lives in a plain string key, the session history in a list capped at
// historyCap turns.
type RedisStore struct {
	client     *redis.Client
	historyCap int
}

// NewRedisStore wraps an existing Redis client. historyCap bounds the
// stored turns per session; zero or negative falls back to 200.
func NewRedisStore(client *redis.Client, historyCap int) *RedisStore {
	if historyCap <= 0 {
		historyCap = 200
	}
	return &RedisStore{client: client, historyCap: historyCap}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) GetProfile(ctx context.Context, userID string) (string, error) {
	val, err := s.client.Get(ctx, profileKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", &pkg.RemoteServiceError{Service: "memory store", Err: err}
	}
	return val, nil
}

func (s *RedisStore) SetProfile(ctx context.Context, userID, notes string) error {
	if err := s.client.Set(ctx, profileKeyPrefix+userID, notes, 0).Err(); err != nil {
		return &pkg.RemoteServiceError{Service: "memory store", Err: err}
	}
	return nil
}

func (s *RedisStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]pkg.ConversationTurn, error) {
	if limit <= 0 {
		limit = s.historyCap
	}
	// The list is append-ordered, so the last limit elements are the
	// most recent turns, already oldest-first.
	raw, err := s.client.LRange(ctx, historyKeyPrefix+sessionID, int64(-limit), -1).Result()
	if err != nil {
		return nil, &pkg.RemoteServiceError{Service: "memory store", Err: err}
	}
	turns := make([]pkg.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var t pkg.ConversationTurn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decode stored turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, sessionID string, turn pkg.ConversationTurn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	key := historyKeyPrefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.historyCap), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return &pkg.RemoteServiceError{Service: "memory store", Err: err}
	}
	return nil
}
