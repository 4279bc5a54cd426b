// Package google adapts the pipeline to the Gemini generateContent API.
package google

import (
	"net/http"
	"strings"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/provider/extract"
	"github.com/morganross/FilePromptForge/internal/provider/models"
	"github.com/morganross/FilePromptForge/internal/rawjson"
)

// dynamicThinkingBudget lets the model choose its own thinking budget.
const dynamicThinkingBudget = -1

// Adapter builds Gemini payloads with search grounding.
type Adapter struct {
	allowed *models.Matcher
}

// New creates a Google adapter.
func New() *Adapter {
	return &Adapter{
		allowed: models.NewMatcher(
			[]string{
				"gemini-2.5-pro",
				"gemini-2.5-flash",
				"gemini-2.5-flash-lite",
				"gemini-2.0-flash",
				"gemini-1.5-pro",
				"gemini-1.5-flash",
			},
			nil,
		),
	}
}

// Provider returns domain.ProviderGoogle.
func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderGoogle
}

// ValidateModel reports whether the model is allowed.
func (a *Adapter) ValidateModel(model string) bool {
	return a.allowed.Matches(model)
}

// AllowedModels lists the allow-list entries.
func (a *Adapter) AllowedModels() []string {
	return a.allowed.Entries()
}

// Authorize sets the API key header.
func (a *Adapter) Authorize(h http.Header, apiKey string) {
	h.Set("x-goog-api-key", apiKey)
}

// BuildPayload builds a generateContent request with google_search and thought summaries.
func (a *Adapter) BuildPayload(spec *domain.RequestSpec) (*domain.ProviderPayload, error) {
	if !a.ValidateModel(spec.Model) {
		return nil, domain.ErrUnsupportedModel(domain.ProviderGoogle, spec.Model)
	}
	model := models.Normalize(spec.Model)

	thinking, ok := thinkingConfig(model, spec.Reasoning)
	if !ok {
		return nil, domain.ErrUnsupportedReasoningMapping(domain.ProviderGoogle, spec.Model)
	}

	req := baseRequest(spec)
	req.Tools = []Tool{{GoogleSearch: &GoogleSearch{}}}
	req.GenerationConfig.ThinkingConfig = thinking

	return &domain.ProviderPayload{Model: model, Body: req}, nil
}

// BuildPlainPayload builds a generateContent request without tools.
func (a *Adapter) BuildPlainPayload(spec *domain.RequestSpec) (*domain.ProviderPayload, error) {
	if !a.ValidateModel(spec.Model) {
		return nil, domain.ErrUnsupportedModel(domain.ProviderGoogle, spec.Model)
	}
	model := models.Normalize(spec.Model)

	req := baseRequest(spec)
	if thinking, ok := thinkingConfig(model, spec.Reasoning); ok {
		req.GenerationConfig.ThinkingConfig = thinking
	}
	return &domain.ProviderPayload{Model: model, Body: req}, nil
}

func baseRequest(spec *domain.RequestSpec) *GenerateContentRequest {
	return &GenerateContentRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: spec.Prompt}}}},
		GenerationConfig: &GenerationConfig{
			MaxOutputTokens: spec.Sampling.MaxTokens,
			Temperature:     spec.Sampling.Temperature,
			TopP:            spec.Sampling.TopP,
		},
	}
}

// thinkingConfig maps Gemini 2.5 models onto thought summaries. Earlier
// generations have no thinking channel and report false.
func thinkingConfig(model string, opts domain.ReasoningOptions) (*ThinkingConfig, bool) {
	if !strings.HasPrefix(model, "gemini-2.5") {
		return nil, false
	}
	budget := opts.MaxTokens
	if budget <= 0 {
		budget = dynamicThinkingBudget
	}
	return &ThinkingConfig{IncludeThoughts: true, ThinkingBudget: budget}, true
}

// ParseResponse returns a top-level text field, then candidate parts, then a
// chat message, then the raw JSON.
func (a *Adapter) ParseResponse(raw rawjson.Node) string {
	if s, ok := raw.String("text"); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if parts := extract.CandidateParts(raw); len(parts) > 0 {
		return extract.Join(parts)
	}
	if s, ok := extract.ChatMessage(raw); ok {
		return s
	}
	return extract.Fallback(raw)
}

// ExtractReasoning returns the grounding search queries, which stand in for a
// reasoning channel. Thought summaries are used when no queries were recorded.
func (a *Adapter) ExtractReasoning(raw rawjson.Node) (string, bool) {
	candidates := raw.Get("candidates").Items()

	var queries []string
	for _, cand := range candidates {
		if q := extract.JoinStrings(cand.Get("groundingMetadata.webSearchQueries"), "\n"); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) > 0 {
		return strings.Join(queries, "\n"), true
	}

	var thoughts []string
	for _, cand := range candidates {
		for _, part := range cand.Get("content.parts").Items() {
			if thought, _ := part.Bool("thought"); !thought {
				continue
			}
			if s, ok := part.String("text"); ok {
				thoughts = append(thoughts, s)
			}
		}
	}
	if s := extract.Join(thoughts); s != "" {
		return s, true
	}
	return "", false
}
