// Package conversation persists per-conversation continuation state.
package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/lexiqai/chat-gateway/internal/config"
)

// State is the durable state kept for one conversation: the last upstream
// response id known to be a valid continuation point. It is only ever
// written with a value observed on the upstream stream, never guessed.
type State struct {
	PreviousResponseID string `json:"previous_response_id"`
}

// Store maps conversation ids to continuation state. A Get for an id that
// was never seen returns ok=false, not an error. Get and Put must be atomic
// with respect to each other per key; there is no cross-key ordering.
type Store interface {
	Get(ctx context.Context, conversationID string) (State, bool, error)
	Put(ctx context.Context, conversationID string, st State) error
}

// NewStore builds the configured store backend.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.ConversationStore {
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	default:
		return nil, fmt.Errorf("unknown conversation store backend %q", cfg.ConversationStore)
	}
}

// MemoryStore keeps conversation state in process memory. State lives for
// the lifetime of the process; there is no eviction.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]State)}
}

// Get returns the stored state for a conversation.
func (s *MemoryStore) Get(_ context.Context, conversationID string) (State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[conversationID]
	return st, ok, nil
}

// Put overwrites the stored state for a conversation.
func (s *MemoryStore) Put(_ context.Context, conversationID string, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[conversationID] = st
	return nil
}

// Len reports the number of conversations with stored state.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
