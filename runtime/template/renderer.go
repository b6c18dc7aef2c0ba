// Package template provides {{variable}} substitution for bot message text.
//
// Message content (fallback replies, confirmations, escalation text) is kept as
// templates so it can be overridden from configuration without code changes.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// placeholderRe matches a {{name}} placeholder; names are letters, digits, '_' and '.'.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// maxPasses bounds nested substitution (a variable whose value holds another placeholder).
const maxPasses = 3

// Renderer handles variable substitution in templates.
type Renderer struct {
	// Lenient leaves unresolved placeholders in place instead of failing.
	Lenient bool
}

// NewRenderer creates a strict renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render substitutes vars into templateText.
//
// Substitution is repeated up to maxPasses times so that values may themselves
// contain placeholders. In strict mode an error lists any placeholders left over.
func (r *Renderer) Render(templateText string, vars map[string]string) (string, error) {
	result := templateText
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		result = placeholderRe.ReplaceAllStringFunc(result, func(m string) string {
			name := placeholderRe.FindStringSubmatch(m)[1]
			if v, ok := vars[name]; ok {
				changed = true
				return v
			}
			return m
		})
		if !changed {
			break
		}
	}

	if r.Lenient {
		return result, nil
	}
	if unresolved := Placeholders(result); len(unresolved) > 0 {
		return "", fmt.Errorf("unresolved template placeholders: %v", unresolved)
	}
	return result, nil
}

// MustRender is Render for templates built into the binary; it panics on error.
func (r *Renderer) MustRender(templateText string, vars map[string]string) string {
	out, err := r.Render(templateText, vars)
	if err != nil {
		panic(err)
	}
	return out
}

// Placeholders returns the sorted, de-duplicated placeholder names used in text.
func Placeholders(text string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// ValidateRequiredVars checks that every placeholder in templateText is provided.
func ValidateRequiredVars(templateText string, vars map[string]string) error {
	var missing []string
	for _, name := range Placeholders(templateText) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
