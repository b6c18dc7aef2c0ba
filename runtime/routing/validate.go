package routing

import (
	"fmt"
	"regexp"
	"slices"
)

var pascalCaseRe = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)

// ValidationResult holds errors and warnings from branch table validation.
type ValidationResult struct {
	Errors   []string // Blocking: unknown intents, missing targets, empty actions
	Warnings []string // Non-blocking: naming, uncovered intents
}

// HasErrors returns true if there are blocking validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Merge appends other's findings to r.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Validate checks a table against the recognizer's intents and the dialog ids
// its actions may target.
func Validate(table *BranchTable, knownIntents, dialogIDs []string) *ValidationResult {
	r := &ValidationResult{}
	if table.Name == "" {
		r.Errors = append(r.Errors, "branch table name must be non-empty")
	}
	intents := toSet(knownIntents)
	dialogs := toSet(dialogIDs)

	labels := table.Labels()
	slices.Sort(labels)
	for _, label := range labels {
		validateLabel(table.Name, label, intents, r)
		validateAction(table.Name, fmt.Sprintf("branches[%q]", label), table.Branches[label], dialogs, false, r)
	}
	validateAction(table.Name, "default", table.Default, dialogs, false, r)
	validateAction(table.Name, "unconfigured", table.Unconfigured, dialogs, true, r)
	return r
}

func validateLabel(name, label string, intents map[string]bool, r *ValidationResult) {
	if !intents[label] {
		r.Errors = append(r.Errors, fmt.Sprintf(
			"%s.branches[%q]: intent is not published by the recognizer", name, label))
	}
	if !pascalCaseRe.MatchString(label) {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"%s.branches[%q]: intent label should be PascalCase", name, label))
	}
}

func validateAction(name, where string, a Action, dialogs map[string]bool, unconfigured bool, r *ValidationResult) {
	switch a.Kind {
	case "":
		r.Errors = append(r.Errors, fmt.Sprintf("%s.%s: action kind is required", name, where))
	case KindBeginChild, KindPrompt:
		if !dialogs[a.Target] {
			r.Errors = append(r.Errors, fmt.Sprintf(
				"%s.%s: target %q is not a registered dialog", name, where, a.Target))
		}
		if a.Kind == KindPrompt && a.Message == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("%s.%s: prompt needs a message", name, where))
		}
	case KindSendMessage:
		if a.Message == "" && a.Card == "" {
			r.Errors = append(r.Errors, fmt.Sprintf("%s.%s: message or card is required", name, where))
		}
	case KindContinue:
	default:
		r.Errors = append(r.Errors, fmt.Sprintf("%s.%s: unknown action kind %q", name, where, a.Kind))
	}
	if a.ThenDefault && (!unconfigured || a.Kind != KindSendMessage) {
		r.Errors = append(r.Errors, fmt.Sprintf(
			"%s.%s: thenDefault is only valid on an unconfigured sendMessage action", name, where))
	}
}

// Coverage warns about known intents that no table in tables branches on.
func Coverage(knownIntents []string, tables ...*BranchTable) *ValidationResult {
	r := &ValidationResult{}
	covered := map[string]bool{}
	for _, t := range tables {
		for label := range t.Branches {
			covered[label] = true
		}
	}
	for _, intent := range knownIntents {
		if !covered[intent] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("intent %q is not handled by any branch table", intent))
		}
	}
	return r
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[it] = true
	}
	return s
}
