// Package statestore persists per-conversation dialog state and user profiles.
package statestore

import (
	"context"
	"errors"
)

// Store persists the dialog state of conversations between turns.
type Store interface {
	// Load retrieves conversation state by ID
	Load(ctx context.Context, id string) (*ConversationState, error)

	// Save persists conversation state
	Save(ctx context.Context, state *ConversationState) error

	// Delete removes conversation state. Deleting a missing ID returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// UpdateFunc transforms a profile inside an atomic read-modify-write.
type UpdateFunc func(UserProfile) (UserProfile, error)

// ProfileStore keeps one UserProfile per key. Implementations guarantee that
// Update does not interleave with other writes to the same key.
type ProfileStore interface {
	// GetProfile returns the stored profile, or def when none exists.
	GetProfile(ctx context.Context, key string, def UserProfile) (UserProfile, error)

	// SetProfile stores p under key, replacing any previous profile.
	SetProfile(ctx context.Context, key string, p UserProfile) error

	// UpdateProfile applies fn to the stored profile (or the zero profile) and
	// stores the result atomically.
	UpdateProfile(ctx context.Context, key string, fn UpdateFunc) (UserProfile, error)
}

// ErrNotFound is returned when a conversation doesn't exist in the store.
var ErrNotFound = errors.New("conversation not found")

// ErrInvalidID is returned when an invalid conversation or profile ID is provided.
var ErrInvalidID = errors.New("invalid conversation ID")

// ErrInvalidState is returned when a conversation state is invalid.
var ErrInvalidState = errors.New("invalid conversation state")

// ErrConflict is returned when a profile update lost too many optimistic races.
var ErrConflict = errors.New("concurrent profile update conflict")
