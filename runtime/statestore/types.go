package statestore

import (
	"time"

	"github.com/jagmitg/botservice/runtime/dialog"
)

// defaultTTLHours is the default TTL for conversation states (24 hours).
const defaultTTLHours = 24

// DeclinedAge marks a profile whose owner chose not to give an age.
const DeclinedAge = -1

// UserProfile is what the renewal flow learns about a user.
type UserProfile struct {
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// HasAge reports whether the profile holds a real age.
func (p UserProfile) HasAge() bool {
	return p.Age != DeclinedAge && p.Age > 0
}

// ConversationState is the stored state of one conversation.
type ConversationState struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId,omitempty"`
	Dialogs        *dialog.State  `json:"dialogs,omitempty"`
	TurnCount      int            `json:"turnCount"`
	LastAccessedAt time.Time      `json:"lastAccessedAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
