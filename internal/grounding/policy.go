// Package grounding decides, before a request is built, whether provider-side
// grounding should be attempted for a model.
package grounding

import (
	"strings"

	"github.com/morganross/FilePromptForge/internal/domain"
)

// Tool detail values recorded when grounding is skipped.
const (
	NoteDisabled       = "grounding disabled"
	ErrUnavailable     = "provider_grounding_unavailable"
	detailNote         = "note"
	detailError        = "error"
	detailFallbackFlag = "allow_ungrounded_fallback"
)

// DefaultAllow lists the models known to support provider-side grounding.
// Entries match case-insensitively as substrings of the model id.
var DefaultAllow = map[domain.Provider][]string{
	domain.ProviderOpenAI:     {"gpt-5", "o3", "o4-mini", "-deep-research"},
	domain.ProviderGoogle:     {"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite"},
	domain.ProviderOpenRouter: {":online"},
}

// Policy is the grounding capability check.
type Policy struct {
	Enabled                 bool
	AllowUngroundedFallback bool
	allow                   map[domain.Provider][]string
}

// NewPolicy creates a policy. Providers missing from allow use DefaultAllow.
func NewPolicy(enabled, allowFallback bool, allow map[domain.Provider][]string) *Policy {
	merged := make(map[domain.Provider][]string, len(DefaultAllow))
	for p, list := range DefaultAllow {
		merged[p] = list
	}
	for p, list := range allow {
		if list != nil {
			merged[p] = list
		}
	}
	return &Policy{
		Enabled:                 enabled,
		AllowUngroundedFallback: allowFallback,
		allow:                   merged,
	}
}

// Decision is the outcome of a policy check.
type Decision struct {
	// Ground is true when the grounded request should be sent.
	Ground bool
	// Fallback is true when an ungrounded completion may be sent instead. A
	// disabled policy always falls back; the operator opted out of grounding.
	Fallback bool
	// ToolDetails explains a skipped grounding and is copied into the result.
	ToolDetails map[string]any
}

// Allowed returns the allow-list entries for kind.
func (p *Policy) Allowed(kind domain.Provider) []string {
	return append([]string(nil), p.allow[kind]...)
}

// Groundable reports whether model is on the allow-list for p.
func (p *Policy) Groundable(kind domain.Provider, model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	if m == "" {
		return false
	}
	for _, entry := range p.allow[kind] {
		if entry != "" && strings.Contains(m, strings.ToLower(entry)) {
			return true
		}
	}
	return false
}

// Evaluate decides whether grounding is attempted for model on kind.
func (p *Policy) Evaluate(kind domain.Provider, model string) Decision {
	if !p.Enabled {
		return Decision{
			Fallback:    true,
			ToolDetails: map[string]any{detailNote: NoteDisabled},
		}
	}
	if !p.Groundable(kind, model) {
		return Decision{
			Fallback: p.AllowUngroundedFallback,
			ToolDetails: map[string]any{
				detailError:        ErrUnavailable,
				detailFallbackFlag: p.AllowUngroundedFallback,
			},
		}
	}
	return Decision{Ground: true}
}
