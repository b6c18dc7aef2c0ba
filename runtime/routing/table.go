// Package routing maps recognized intents to dialog actions.
//
// Each dialog that branches on intent owns a BranchTable. Labels match the top
// intent exactly; anything else, including a tie or a low score, takes the
// default branch. When no recognizer is configured the table's Unconfigured
// action is used without calling the recognizer.
package routing

import (
	"github.com/jagmitg/botservice/runtime/nlu"
)

// Kind tags an Action.
type Kind string

// Action kinds.
const (
	// KindSendMessage sends Message and/or Card, then continues to the next step.
	KindSendMessage Kind = "sendMessage"
	// KindBeginChild begins the child dialog Target.
	KindBeginChild Kind = "beginChild"
	// KindContinue moves to the next step without output.
	KindContinue Kind = "continue"
	// KindPrompt sends Card when set, then begins prompt Target asking Message.
	KindPrompt Kind = "prompt"
)

// Action is one branch outcome. Message may reference {{intent}}.
type Action struct {
	Kind    Kind     `json:"kind" yaml:"kind"`
	Target  string   `json:"target,omitempty" yaml:"target,omitempty"`
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
	Card    string   `json:"card,omitempty" yaml:"card,omitempty"`
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`
	// ThenDefault runs the table's default action after this one. Only valid on
	// Unconfigured actions of kind KindSendMessage.
	ThenDefault bool `json:"thenDefault,omitempty" yaml:"thenDefault,omitempty"`
}

// BranchTable is the intent routing of one dialog step.
type BranchTable struct {
	Name         string            `json:"name" yaml:"name"`
	Branches     map[string]Action `json:"branches" yaml:"branches"`
	Default      Action            `json:"default" yaml:"default"`
	Unconfigured Action            `json:"unconfigured" yaml:"unconfigured"`
}

// Branch names reported in a Selection.
const (
	BranchIntent       = "intent"
	BranchDefault      = "default"
	BranchUnconfigured = "unconfigured"
)

// Selection is the action chosen for a recognition result.
type Selection struct {
	Table  string
	Branch string
	Intent nlu.RecognizedIntent
	Action Action
}

// Select picks the action for res.
func (t *BranchTable) Select(res nlu.RecognizedIntent) Selection {
	sel := Selection{Table: t.Name, Intent: res}
	switch {
	case !res.IsConfigured:
		sel.Branch, sel.Action = BranchUnconfigured, t.Unconfigured
	default:
		if a, ok := t.Branches[res.Label]; ok && res.Label != nlu.None {
			sel.Branch, sel.Action = BranchIntent, a
		} else {
			sel.Branch, sel.Action = BranchDefault, t.Default
		}
	}
	return sel
}

// Labels returns the intent labels the table branches on.
func (t *BranchTable) Labels() []string {
	labels := make([]string, 0, len(t.Branches))
	for l := range t.Branches {
		labels = append(labels, l)
	}
	return labels
}
