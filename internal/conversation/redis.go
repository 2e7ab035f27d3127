package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "chat-gateway:conversation:"

// RedisStore keeps conversation state in Redis so it survives gateway
// restarts and can be shared across replicas. Values are stored without a
// TTL, matching the in-memory behavior.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the given Redis instance.
func NewRedisStore(addr, password string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client}
}

// Get returns the stored state for a conversation.
func (s *RedisStore) Get(ctx context.Context, conversationID string) (State, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+conversationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("redis get: %w", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("decode conversation state: %w", err)
	}
	return st, true, nil
}

// Put overwrites the stored state for a conversation.
func (s *RedisStore) Put(ctx context.Context, conversationID string, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode conversation state: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+conversationID, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection, for readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
