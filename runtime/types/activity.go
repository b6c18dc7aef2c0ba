// Package types defines the activities exchanged with a channel and the inbound turn shape.
package types

import (
	"encoding/json"
	"time"
)

// ActivityType identifies the kind of outbound activity.
type ActivityType string

// Activity types.
const (
	ActivityMessage ActivityType = "message"
	ActivityTyping  ActivityType = "typing"
)

// InputHint tells the channel whether the bot is waiting for the user.
type InputHint string

// Input hints.
const (
	InputHintExpecting InputHint = "expectingInput"
	InputHintIgnoring  InputHint = "ignoringInput"
	InputHintAccepting InputHint = "acceptingInput"
)

// CardContentType is the content type used for rich card attachments.
const CardContentType = "application/vnd.microsoft.card.adaptive"

// Activity is a single outbound message produced during a turn.
type Activity struct {
	ID               string       `json:"id,omitempty"`
	Type             ActivityType `json:"type"`
	Text             string       `json:"text,omitempty"`
	Speak            string       `json:"speak,omitempty"`
	InputHint        InputHint    `json:"inputHint,omitempty"`
	SuggestedActions []string     `json:"suggestedActions,omitempty"`
	Attachments      []Attachment `json:"attachments,omitempty"`
	Timestamp        time.Time    `json:"timestamp,omitempty"`
}

// Attachment is an opaque structured payload keyed by a named template.
type Attachment struct {
	ContentType string          `json:"contentType"`
	Name        string          `json:"name,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// Text builds a plain text message. The same text is used for speech.
func Text(text string, hint InputHint) Activity {
	return Activity{
		Type:      ActivityMessage,
		Text:      text,
		Speak:     text,
		InputHint: hint,
	}
}

// SuggestedActions builds a message offering the given short labels as quick replies.
func SuggestedActions(actions []string, text string, hint InputHint) Activity {
	a := Text(text, hint)
	a.SuggestedActions = append([]string(nil), actions...)
	return a
}

// Card builds a message carrying a single rich card attachment.
func Card(name string, content json.RawMessage) Activity {
	return Activity{
		Type: ActivityMessage,
		Attachments: []Attachment{{
			ContentType: CardContentType,
			Name:        name,
			Content:     content,
		}},
	}
}

// HasCard reports whether the activity carries a card built from the named template.
func (a Activity) HasCard(name string) bool {
	for _, att := range a.Attachments {
		if att.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with the receiver.
func (a Activity) Clone() Activity {
	c := a
	if a.SuggestedActions != nil {
		c.SuggestedActions = append([]string(nil), a.SuggestedActions...)
	}
	if a.Attachments != nil {
		c.Attachments = make([]Attachment, len(a.Attachments))
		for i, att := range a.Attachments {
			c.Attachments[i] = att
			if att.Content != nil {
				c.Attachments[i].Content = append(json.RawMessage(nil), att.Content...)
			}
		}
	}
	return c
}
