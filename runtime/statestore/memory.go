package statestore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation of Store and ProfileStore.
// It is thread-safe and suitable for development, testing, and single-instance deployments.
// For distributed systems, use RedisStore.
type MemoryStore struct {
	mu       sync.RWMutex
	states   map[string]*ConversationState
	profiles map[string]UserProfile
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[string]*ConversationState),
		profiles: make(map[string]UserProfile),
		now:      time.Now,
	}
}

// Load retrieves a conversation state by ID.
// Returns a deep copy to prevent external mutations.
func (s *MemoryStore) Load(ctx context.Context, id string) (*ConversationState, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[id]
	if !exists {
		return nil, ErrNotFound
	}
	return deepCopyState(state)
}

// Save persists a conversation state. If it already exists, it will be updated.
func (s *MemoryStore) Save(ctx context.Context, state *ConversationState) error {
	if state == nil {
		return ErrInvalidState
	}
	if state.ID == "" {
		return ErrInvalidID
	}

	stateCopy, err := deepCopyState(state)
	if err != nil {
		return err
	}
	stateCopy.LastAccessedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ID] = stateCopy
	return nil
}

// Delete removes a conversation state by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.states[id]; !exists {
		return ErrNotFound
	}
	delete(s.states, id)
	return nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// GetProfile implements ProfileStore.
func (s *MemoryStore) GetProfile(ctx context.Context, key string, def UserProfile) (UserProfile, error) {
	if key == "" {
		return def, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.profiles[key]; ok {
		return p, nil
	}
	return def, nil
}

// SetProfile implements ProfileStore.
func (s *MemoryStore) SetProfile(ctx context.Context, key string, p UserProfile) error {
	if key == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = s.now()
	s.profiles[key] = p
	return nil
}

// UpdateProfile implements ProfileStore. fn runs under the store's write lock.
func (s *MemoryStore) UpdateProfile(ctx context.Context, key string, fn UpdateFunc) (UserProfile, error) {
	if key == "" {
		return UserProfile{}, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := fn(s.profiles[key])
	if err != nil {
		return UserProfile{}, err
	}
	updated.UpdatedAt = s.now()
	s.profiles[key] = updated
	return updated, nil
}

// deepCopyState creates a deep copy of a conversation state.
func deepCopyState(state *ConversationState) (*ConversationState, error) {
	// JSON keeps the copy identical to what RedisStore would return.
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}

	var stateCopy ConversationState
	if err := json.Unmarshal(data, &stateCopy); err != nil {
		return nil, err
	}
	return &stateCopy, nil
}
