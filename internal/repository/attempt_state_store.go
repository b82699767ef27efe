package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"xp_engine/internal/model"
	"xp_engine/internal/util"

	"github.com/go-redis/redis/v8"
)

// AttemptKey builds the composite key of an attempt.
func AttemptKey(userID, assessmentID, sessionID string) string {
	return util.AttemptKeyPrefix + userID + ":" + assessmentID + ":" + sessionID
}

// FinalizeLockKey is shared by every session of a user on one assessment, so
// attempts opened in parallel tabs commit one at a time.
func FinalizeLockKey(userID, assessmentID string) string {
	return util.FinalizeLockPrefix + userID + ":" + assessmentID
}

func attemptKeyOf(state *model.AttemptState) string {
	return AttemptKey(state.UserID, state.AssessmentID, state.SessionID)
}

// AttemptStateStore is the keyed store of in-progress attempts.
// Get returns util.ErrAttemptNotFound when the key is absent.
type AttemptStateStore interface {
	Get(ctx context.Context, key string) (*model.AttemptState, error)
	Save(ctx context.Context, state *model.AttemptState) error
	Delete(ctx context.Context, key string) error
}

type RedisAttemptStateStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewRedisAttemptStateStore(rdb *redis.Client, ttl time.Duration) *RedisAttemptStateStore {
	return &RedisAttemptStateStore{Redis: rdb, TTL: ttl}
}

func (s *RedisAttemptStateStore) Get(ctx context.Context, key string) (*model.AttemptState, error) {
	val, err := s.Redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	var state model.AttemptState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RedisAttemptStateStore) Save(ctx context.Context, state *model.AttemptState) error {
	val, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, attemptKeyOf(state), val, s.TTL).Err()
}

func (s *RedisAttemptStateStore) Delete(ctx context.Context, key string) error {
	return s.Redis.Del(ctx, key).Err()
}

// MemoryAttemptStateStore keeps attempts in process memory. States are copied
// through JSON so callers never share mutable maps with the store.
type MemoryAttemptStateStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewMemoryAttemptStateStore() *MemoryAttemptStateStore {
	return &MemoryAttemptStateStore{states: make(map[string][]byte)}
}

func (s *MemoryAttemptStateStore) Get(ctx context.Context, key string) (*model.AttemptState, error) {
	s.mu.RLock()
	val, ok := s.states[key]
	s.mu.RUnlock()
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	var state model.AttemptState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *MemoryAttemptStateStore) Save(ctx context.Context, state *model.AttemptState) error {
	val, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[attemptKeyOf(state)] = val
	s.mu.Unlock()
	return nil
}

func (s *MemoryAttemptStateStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.states, key)
	s.mu.Unlock()
	return nil
}
