// Package provider defines the adapter contract every upstream LLM vendor implements
// and selects the adapter for a provider.
package provider

import (
	"fmt"
	"net/http"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/provider/google"
	"github.com/morganross/FilePromptForge/internal/provider/openai"
	"github.com/morganross/FilePromptForge/internal/provider/openrouter"
	"github.com/morganross/FilePromptForge/internal/rawjson"
)

// Adapter knows one provider's wire format.
type Adapter interface {
	// Provider returns the provider this adapter speaks to.
	Provider() domain.Provider

	// ValidateModel reports whether the normalized model id is on the allow-list.
	ValidateModel(model string) bool

	// BuildPayload builds a request that forces provider-side web search and a
	// reasoning directive. It fails with UnsupportedModel or UnsupportedReasoningMapping.
	BuildPayload(spec *domain.RequestSpec) (*domain.ProviderPayload, error)

	// BuildPlainPayload builds an ungrounded completion request for policy fallbacks.
	BuildPlainPayload(spec *domain.RequestSpec) (*domain.ProviderPayload, error)

	// ParseResponse extracts best-effort human-readable text. It never returns
	// an empty string for a non-empty response; the raw JSON is the last resort.
	ParseResponse(raw rawjson.Node) string

	// ExtractReasoning returns the reasoning trace, or false when there is none.
	ExtractReasoning(raw rawjson.Node) (string, bool)

	// Authorize sets the authentication header for apiKey.
	Authorize(h http.Header, apiKey string)

	// AllowedModels lists the allow-list entries, for display.
	AllowedModels() []string
}

var (
	_ Adapter = (*openai.Adapter)(nil)
	_ Adapter = (*google.Adapter)(nil)
	_ Adapter = (*openrouter.Adapter)(nil)
)

// New returns the adapter for p.
func New(p domain.Provider) (Adapter, error) {
	switch p {
	case domain.ProviderOpenAI:
		return openai.New(), nil
	case domain.ProviderGoogle:
		return google.New(), nil
	case domain.ProviderOpenRouter:
		return openrouter.New(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %q", p)
	}
}

// Endpoint expands the {model} placeholder of a configured provider URL.
func Endpoint(urlTemplate string, payload *domain.ProviderPayload) string {
	return expandModel(urlTemplate, payload.Model)
}
