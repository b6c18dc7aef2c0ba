package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jagmitg/botservice/runtime/types"
)

func TestRecognizeConfirm(t *testing.T) {
	yesNo := PromptOptions{Choices: []string{"yes", "no"}}
	tests := []struct {
		name  string
		turn  types.Turn
		opts  PromptOptions
		ok    bool
		value any
	}{
		{"structured true", types.Turn{Value: true}, PromptOptions{}, true, true},
		{"structured false", types.Turn{Value: false}, PromptOptions{}, true, false},
		{"yes word", types.Turn{Text: "Yes!"}, PromptOptions{}, true, true},
		{"no word", types.Turn{Text: " nope "}, PromptOptions{}, true, false},
		{"choice label", types.Turn{Text: "NO"}, yesNo, true, false},
		{"custom choices", types.Turn{Text: "Helpful"}, PromptOptions{Choices: []string{"Helpful", "Not helpful"}}, true, true},
		{"garbage", types.Turn{Text: "maybe later"}, yesNo, false, nil},
		{"empty", types.Turn{}, yesNo, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recognizeConfirm(tt.turn, tt.opts)
			assert.Equal(t, tt.ok, rec.Succeeded)
			assert.Equal(t, tt.value, rec.Value)
		})
	}
}

func TestRecognizeNumber(t *testing.T) {
	assert.Equal(t, Recognized{Succeeded: true, Value: 45.5}, recognizeNumber(types.Turn{Text: " 45.5 "}, PromptOptions{}))
	assert.Equal(t, Recognized{Succeeded: true, Value: float64(3)}, recognizeNumber(types.Turn{Value: 3}, PromptOptions{}))
	assert.False(t, recognizeNumber(types.Turn{Text: "NaN"}, PromptOptions{}).Succeeded)
	assert.False(t, recognizeNumber(types.Turn{Text: "forty"}, PromptOptions{}).Succeeded)
}

func TestRecognizeInteger(t *testing.T) {
	assert.Equal(t, Recognized{Succeeded: true, Value: 45}, recognizeInteger(types.Turn{Text: "45"}, PromptOptions{}))
	assert.Equal(t, Recognized{Succeeded: true, Value: 12}, recognizeInteger(types.Turn{Value: float64(12)}, PromptOptions{}))
	assert.False(t, recognizeInteger(types.Turn{Text: "45.5"}, PromptOptions{}).Succeeded)
	assert.False(t, recognizeInteger(types.Turn{Text: ""}, PromptOptions{}).Succeeded)
}

func TestRecognizeText(t *testing.T) {
	assert.Equal(t, Recognized{Succeeded: true, Value: "Alice"}, recognizeText(types.Turn{Text: "  Alice "}, PromptOptions{}))
	assert.Equal(t, Recognized{Succeeded: true, Value: "from value"}, recognizeText(types.Turn{Value: "from value"}, PromptOptions{}))
	assert.False(t, recognizeText(types.Turn{Text: "   "}, PromptOptions{}).Succeeded)
}

func TestPrompt_ActivityUsesChoices(t *testing.T) {
	p := NewConfirmPrompt("confirm")
	opts, err := p.options(&Frame{})
	assert.NoError(t, err)
	assert.Equal(t, []string{"Yes", "No"}, opts.Choices)

	act := p.activity("Was this helpful?", opts)
	assert.Equal(t, []string{"Yes", "No"}, act.SuggestedActions)
	assert.Equal(t, types.InputHintExpecting, act.InputHint)
	assert.Equal(t, "confirm", p.Kind())

	plain := NewTextPrompt("text").activity("Name?", PromptOptions{})
	assert.Empty(t, plain.SuggestedActions)
	assert.Equal(t, "Name?", plain.Text)
}
