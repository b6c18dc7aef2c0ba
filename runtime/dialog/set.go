package dialog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Dialog is one unit of conversation logic that can be placed on the stack.
type Dialog interface {
	ID() string
	// Begin runs when the dialog is pushed. Its options are on dc.Active().
	Begin(ctx context.Context, dc *Context) (TurnResult, error)
	// Continue runs when a new turn arrives while the dialog is active.
	Continue(ctx context.Context, dc *Context) (TurnResult, error)
	// Resume runs when a child dialog ends and this dialog is active again.
	Resume(ctx context.Context, dc *Context, result any) (TurnResult, error)
}

// Set is a registry of dialogs by id. It is safe for concurrent reads once built.
type Set struct {
	mu      sync.RWMutex
	dialogs map[string]Dialog
}

// NewSet creates a Set containing dialogs.
func NewSet(dialogs ...Dialog) (*Set, error) {
	s := &Set{dialogs: make(map[string]Dialog, len(dialogs))}
	for _, d := range dialogs {
		if err := s.Add(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers d.
func (s *Set) Add(d Dialog) error {
	if d == nil || d.ID() == "" {
		return errors.New("dialog must have a non-empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.dialogs[d.ID()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateDialog, d.ID())
	}
	s.dialogs[d.ID()] = d
	return nil
}

// Find looks up a dialog by id.
func (s *Set) Find(id string) (Dialog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dialogs[id]
	return d, ok
}

// IDs returns the registered ids, sorted.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.dialogs))
	for id := range s.dialogs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
