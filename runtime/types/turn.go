package types

import (
	"errors"
	"strings"
)

// ErrInvalidTurn is returned when a turn cannot be processed.
var ErrInvalidTurn = errors.New("invalid turn")

// Turn is one inbound unit of user input for a conversation.
//
// Text carries free-text utterances. Value carries a structured response to a
// prior prompt, such as a boolean from a yes/no button.
type Turn struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId,omitempty"`
	ID             string `json:"id,omitempty"`
	Text           string `json:"text,omitempty"`
	Value          any    `json:"value,omitempty"`
}

// Validate checks the turn carries a conversation id.
func (t *Turn) Validate() error {
	if t == nil || strings.TrimSpace(t.ConversationID) == "" {
		return ErrInvalidTurn
	}
	return nil
}

// ProfileKey returns the key under which the user's profile is stored.
// Profiles follow the user when one is known and the conversation otherwise.
func (t *Turn) ProfileKey() string {
	if t.UserID != "" {
		return t.UserID
	}
	return t.ConversationID
}
