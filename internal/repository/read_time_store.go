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

func ReadTimeKey(userID, resourceID string) string {
	return util.ReadTimeKeyPrefix + userID + ":" + resourceID
}

// ReadTimeStore holds passive content engagement. Get returns (nil, nil) when
// nothing has been recorded yet.
type ReadTimeStore interface {
	Get(ctx context.Context, userID, resourceID string) (*model.ReadTimeState, error)
	Save(ctx context.Context, state *model.ReadTimeState) error
}

type RedisReadTimeStore struct {
	Redis *redis.Client
	// Retention is the data retention window; finalize never deletes state
	Retention time.Duration
}

func NewRedisReadTimeStore(rdb *redis.Client, retention time.Duration) *RedisReadTimeStore {
	return &RedisReadTimeStore{Redis: rdb, Retention: retention}
}

func (s *RedisReadTimeStore) Get(ctx context.Context, userID, resourceID string) (*model.ReadTimeState, error) {
	val, err := s.Redis.Get(ctx, ReadTimeKey(userID, resourceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state model.ReadTimeState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RedisReadTimeStore) Save(ctx context.Context, state *model.ReadTimeState) error {
	val, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, ReadTimeKey(state.UserID, state.ResourceID), val, s.Retention).Err()
}

type MemoryReadTimeStore struct {
	mu     sync.RWMutex
	states map[string]model.ReadTimeState
}

func NewMemoryReadTimeStore() *MemoryReadTimeStore {
	return &MemoryReadTimeStore{states: make(map[string]model.ReadTimeState)}
}

func (s *MemoryReadTimeStore) Get(ctx context.Context, userID, resourceID string) (*model.ReadTimeState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[ReadTimeKey(userID, resourceID)]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *MemoryReadTimeStore) Save(ctx context.Context, state *model.ReadTimeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[ReadTimeKey(state.UserID, state.ResourceID)] = *state
	return nil
}
