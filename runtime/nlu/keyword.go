package nlu

import (
	"context"
	"strings"
	"unicode"
)

// KeywordRule maps phrases to an intent. A rule matches when any phrase occurs
// in the utterance as a whole-word sequence, ignoring case and punctuation.
type KeywordRule struct {
	Intent  string   `yaml:"intent" json:"intent"`
	Phrases []string `yaml:"phrases" json:"phrases"`
}

// KeywordRecognizer is a deterministic phrase table. It is used for local runs
// and tests where a hosted NLU service is unavailable.
type KeywordRecognizer struct {
	rules    []KeywordRule
	minScore float64
}

// NewKeywordRecognizer creates a recognizer over rules. Phrases are normalised once.
func NewKeywordRecognizer(rules []KeywordRule, minScore float64) *KeywordRecognizer {
	normalised := make([]KeywordRule, 0, len(rules))
	for _, r := range rules {
		nr := KeywordRule{Intent: r.Intent}
		for _, p := range r.Phrases {
			if n := normalise(p); n != "" {
				nr.Phrases = append(nr.Phrases, n)
			}
		}
		normalised = append(normalised, nr)
	}
	return &KeywordRecognizer{rules: normalised, minScore: minScore}
}

// Name implements Recognizer.
func (k *KeywordRecognizer) Name() string { return "keyword" }

// IsConfigured reports whether any rules are loaded.
func (k *KeywordRecognizer) IsConfigured() bool { return len(k.rules) > 0 }

// Recognize scores each intent by the share of the utterance its longest matching
// phrase covers. Equal best scores for different intents resolve to None.
func (k *KeywordRecognizer) Recognize(ctx context.Context, text string) (RecognizedIntent, error) {
	if !k.IsConfigured() {
		return Unrecognized(text, false), ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return Unrecognized(text, true), err
	}

	utterance := normalise(text)
	if utterance == "" {
		return NewResult(text, nil, k.minScore), nil
	}
	padded := " " + utterance + " "

	scores := make(map[string]float64)
	for _, r := range k.rules {
		longest := 0
		for _, p := range r.Phrases {
			if strings.Contains(padded, " "+p+" ") && len(p) > longest {
				longest = len(p)
			}
		}
		if longest == 0 {
			continue
		}
		score := float64(longest) / float64(len(utterance))
		if score > scores[r.Intent] {
			scores[r.Intent] = score
		}
	}
	return NewResult(text, scores, k.minScore), nil
}

// normalise lower-cases s and collapses every run of non-alphanumerics to one space.
func normalise(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
