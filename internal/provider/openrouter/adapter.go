// Package openrouter adapts the pipeline to OpenRouter's chat completions proxy.
//
// OpenRouter forwards to many upstreams, so search and reasoning behavior is
// best-effort and depends on the routed model.
package openrouter

import (
	"net/http"
	"strings"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/provider/extract"
	"github.com/morganross/FilePromptForge/internal/provider/models"
	"github.com/morganross/FilePromptForge/internal/rawjson"
)

const (
	onlineSuffix             = ":online"
	webPluginID              = "web"
	defaultEffort            = "high"
	defaultReasoningMaxToken = 1500
)

// Adapter builds OpenRouter payloads with the web plugin.
type Adapter struct {
	allowed *models.Matcher
}

// New creates an OpenRouter adapter.
func New() *Adapter {
	return &Adapter{
		allowed: models.NewMatcher(
			[]string{
				"openai/gpt-5",
				"openai/o3",
				"openai/o4-mini",
				"openai/gpt-4o-mini",
				"google/gemini-2.5-pro",
				"google/gemini-2.5-flash",
				"anthropic/claude-sonnet-4",
				"anthropic/claude-opus-4",
				"anthropic/claude-3.7-sonnet",
				"x-ai/grok-4",
				"perplexity/sonar",
			},
			nil,
		),
	}
}

// Provider returns domain.ProviderOpenRouter.
func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderOpenRouter
}

// ValidateModel reports whether the model slug is allowed. Channel suffixes are ignored.
func (a *Adapter) ValidateModel(model string) bool {
	return a.allowed.Matches(model)
}

// AllowedModels lists the allow-list entries.
func (a *Adapter) AllowedModels() []string {
	return a.allowed.Entries()
}

// Authorize sets a bearer token.
func (a *Adapter) Authorize(h http.Header, apiKey string) {
	h.Set("Authorization", "Bearer "+apiKey)
}

// BuildPayload builds a chat request for the online variant of the model with
// the web plugin and a unified reasoning parameter.
func (a *Adapter) BuildPayload(spec *domain.RequestSpec) (*domain.ProviderPayload, error) {
	if !a.ValidateModel(spec.Model) {
		return nil, domain.ErrUnsupportedModel(domain.ProviderOpenRouter, spec.Model)
	}
	slug := models.Normalize(spec.Model)

	reasoning, ok := reasoningParam(slug, spec.Reasoning)
	if !ok {
		return nil, domain.ErrUnsupportedReasoningMapping(domain.ProviderOpenRouter, spec.Model)
	}

	wireModel := slug + onlineSuffix
	req := baseRequest(wireModel, spec)
	req.Plugins = []Plugin{{
		ID:           webPluginID,
		MaxResults:   spec.WebSearch.MaxResults,
		SearchPrompt: spec.WebSearch.SearchPrompt,
	}}
	if size := strings.ToLower(spec.WebSearch.ContextSize); size == "low" || size == "medium" || size == "high" {
		req.WebSearchOptions = &WebSearchOptions{SearchContextSize: size}
	}
	req.Reasoning = reasoning

	return &domain.ProviderPayload{
		Model:   wireModel,
		Body:    req,
		Headers: identificationHeaders(spec),
	}, nil
}

// BuildPlainPayload builds a chat request for the base model without plugins.
func (a *Adapter) BuildPlainPayload(spec *domain.RequestSpec) (*domain.ProviderPayload, error) {
	if !a.ValidateModel(spec.Model) {
		return nil, domain.ErrUnsupportedModel(domain.ProviderOpenRouter, spec.Model)
	}
	slug := models.Normalize(spec.Model)

	req := baseRequest(slug, spec)
	if reasoning, ok := reasoningParam(slug, spec.Reasoning); ok {
		req.Reasoning = reasoning
	}
	return &domain.ProviderPayload{
		Model:   slug,
		Body:    req,
		Headers: identificationHeaders(spec),
	}, nil
}

func baseRequest(model string, spec *domain.RequestSpec) *ChatRequest {
	req := &ChatRequest{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: spec.Prompt}},
		MaxTokens:   spec.Sampling.MaxTokens,
		Temperature: spec.Sampling.Temperature,
		TopP:        spec.Sampling.TopP,
	}
	if spec.JSONMode {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	return req
}

func identificationHeaders(spec *domain.RequestSpec) map[string]string {
	headers := make(map[string]string, 2)
	if spec.Referer != "" {
		headers["HTTP-Referer"] = spec.Referer
	}
	if spec.Title != "" {
		headers["X-Title"] = spec.Title
	}
	return headers
}

// reasoningParam picks effort for OpenAI reasoning models and Grok, and a token
// budget for Anthropic, Gemini and Perplexity. Other slugs report false.
func reasoningParam(slug string, opts domain.ReasoningOptions) (*Reasoning, bool) {
	switch {
	case strings.HasPrefix(slug, "openai/gpt-5"),
		strings.HasPrefix(slug, "openai/o"),
		strings.HasPrefix(slug, "x-ai/grok"):
		effort := strings.ToLower(strings.TrimSpace(opts.Effort))
		if effort != "low" && effort != "medium" && effort != "high" {
			effort = defaultEffort
		}
		return &Reasoning{Effort: effort}, true
	case strings.HasPrefix(slug, "anthropic/"),
		strings.HasPrefix(slug, "google/gemini-2.5"),
		strings.HasPrefix(slug, "perplexity/"):
		budget := opts.MaxTokens
		if budget <= 0 {
			budget = defaultReasoningMaxToken
		}
		return &Reasoning{MaxTokens: budget}, true
	}
	return nil, false
}

// ParseResponse returns aggregated output text, then structured output or
// candidate parts, then the chat message, then the raw JSON.
func (a *Adapter) ParseResponse(raw rawjson.Node) string {
	if s, ok := extract.OutputText(raw); ok {
		return s
	}
	if parts := extract.OutputParts(raw); len(parts) > 0 {
		return extract.Join(parts)
	}
	if parts := extract.CandidateParts(raw); len(parts) > 0 {
		return extract.Join(parts)
	}
	if s, ok := extract.ChatMessage(raw); ok {
		return s
	}
	return extract.Fallback(raw)
}

// ExtractReasoning reads the message reasoning field, then reasoning_details,
// then a top-level reasoning string.
func (a *Adapter) ExtractReasoning(raw rawjson.Node) (string, bool) {
	for _, choice := range raw.Get("choices").Items() {
		msg := choice.Get("message")
		if s, ok := msg.String("reasoning"); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
		var details []string
		for _, d := range msg.Get("reasoning_details").Items() {
			for _, key := range []string{"text", "summary"} {
				if s, ok := d.String(key); ok {
					details = append(details, s)
				}
			}
		}
		if s := extract.Join(details); s != "" {
			return s, true
		}
	}
	if s, ok := raw.String("reasoning"); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s), true
	}
	return "", false
}
