// Package models provides model id normalization and allow-list matching for provider adapters.
package models

import (
	"sort"
	"strings"
)

// Normalize lowercases a model id and strips any channel suffix such as ":online".
func Normalize(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.Index(m, ":"); i >= 0 {
		m = m[:i]
	}
	return m
}

// Matcher is a hard allow-list. Unknown models are rejected.
type Matcher struct {
	families []string
	exact    []string
}

// NewMatcher creates a matcher. A family entry also admits dated or suffixed
// variants ("gpt-5" admits "gpt-5-mini-2025-08-07"); an exact entry admits only itself.
func NewMatcher(families, exact []string) *Matcher {
	return &Matcher{
		families: families,
		exact:    exact,
	}
}

// Matches returns true if the normalized model is allowed.
func (m *Matcher) Matches(model string) bool {
	model = Normalize(model)
	if model == "" {
		return false
	}

	// Check exact matches first
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}

	for _, f := range m.families {
		if model == f {
			return true
		}
		// Variants must continue at a segment boundary so "gpt-5o" does not ride on "gpt-5".
		if strings.HasPrefix(model, f) {
			switch model[len(f)] {
			case '-', '.', '@':
				return true
			}
		}
	}

	return false
}

// Entries returns every allow-list entry, sorted.
func (m *Matcher) Entries() []string {
	out := make([]string, 0, len(m.families)+len(m.exact))
	out = append(out, m.families...)
	out = append(out, m.exact...)
	sort.Strings(out)
	return out
}
