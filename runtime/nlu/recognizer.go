// Package nlu turns free-text utterances into ranked intents.
//
// A Recognizer is an external collaborator from the dialogs' point of view: the
// dialogs only look at the top intent label and whether a recognizer is
// configured at all. Implementations are a LUIS prediction client, a
// deterministic keyword table, and an unconfigured stand-in.
package nlu

import (
	"context"
	"errors"
	"sort"
)

// None is the label reported when nothing matched, the top score is tied, or the
// best score is under the recognizer's threshold.
const None = "None"

// ErrNotConfigured is returned by recognizers that lack credentials.
var ErrNotConfigured = errors.New("recognizer is not configured")

// Recognizer classifies an utterance.
type Recognizer interface {
	// Name identifies the implementation in logs and metrics.
	Name() string
	// IsConfigured reports whether the recognizer can be called at all.
	IsConfigured() bool
	// Recognize classifies text. Implementations return ErrNotConfigured when
	// IsConfigured is false.
	Recognize(ctx context.Context, text string) (RecognizedIntent, error)
}

// RecognizedIntent is the outcome of one recognition call.
type RecognizedIntent struct {
	Label        string             `json:"label"`
	Score        float64            `json:"score"`
	IsConfigured bool               `json:"isConfigured"`
	Intents      map[string]float64 `json:"intents,omitempty"`
	Text         string             `json:"text,omitempty"`
}

// Unrecognized returns the result used when recognition is unavailable or failed.
func Unrecognized(text string, configured bool) RecognizedIntent {
	return RecognizedIntent{Label: None, IsConfigured: configured, Text: text}
}

// NewResult builds a RecognizedIntent from raw scores, choosing the top intent
// with TopIntent.
func NewResult(text string, intents map[string]float64, minScore float64) RecognizedIntent {
	label, score := TopIntent(intents, minScore)
	return RecognizedIntent{
		Label:        label,
		Score:        score,
		IsConfigured: true,
		Intents:      intents,
		Text:         text,
	}
}

// TopIntent picks the highest scoring intent.
//
// Matching is exact; there is no fuzzy merging of labels. An empty map, a tie for
// the top score between different labels, or a best score below minScore all
// yield None.
func TopIntent(intents map[string]float64, minScore float64) (string, float64) {
	if len(intents) == 0 {
		return None, 0
	}
	labels := make([]string, 0, len(intents))
	for l := range intents {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best, bestScore, tied := "", -1.0, false
	for _, l := range labels {
		s := intents[l]
		switch {
		case s > bestScore:
			best, bestScore, tied = l, s, false
		case s == bestScore:
			tied = true
		}
	}
	if tied {
		return None, bestScore
	}
	if bestScore < minScore {
		return None, bestScore
	}
	return best, bestScore
}

// Unconfigured is the recognizer used when no NLU service is set up.
type Unconfigured struct{}

// Name implements Recognizer.
func (Unconfigured) Name() string { return "none" }

// IsConfigured always reports false.
func (Unconfigured) IsConfigured() bool { return false }

// Recognize always fails with ErrNotConfigured.
func (Unconfigured) Recognize(_ context.Context, text string) (RecognizedIntent, error) {
	return Unrecognized(text, false), ErrNotConfigured
}
