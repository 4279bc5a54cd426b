// Package openai adapts the pipeline to the OpenAI Responses API.
package openai

import (
	"net/http"
	"strings"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/provider/extract"
	"github.com/morganross/FilePromptForge/internal/provider/models"
	"github.com/morganross/FilePromptForge/internal/rawjson"
)

const (
	webSearchToolType  = "web_search_preview"
	defaultEffort      = "high"
	deepResearchEffort = "medium"
	deepResearchSearch = "medium"
)

var (
	validEfforts   = map[string]bool{"minimal": true, "low": true, "medium": true, "high": true}
	validSummaries = map[string]bool{"auto": true, "concise": true, "detailed": true, "none": true}
)

// Adapter builds Responses API payloads and reads Responses API output.
type Adapter struct {
	allowed *models.Matcher
}

// New creates an OpenAI adapter.
func New() *Adapter {
	return &Adapter{
		allowed: models.NewMatcher(
			// o3 and o4-mini cover their deep-research variants
			[]string{"gpt-5", "o4-mini", "o3", "o1"},
			nil,
		),
	}
}

// Provider returns domain.ProviderOpenAI.
func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderOpenAI
}

// ValidateModel reports whether the model is allowed.
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

// BuildPayload builds a Responses request with the web search tool and a reasoning directive.
func (a *Adapter) BuildPayload(spec *domain.RequestSpec) (*domain.ProviderPayload, error) {
	if !a.ValidateModel(spec.Model) {
		return nil, domain.ErrUnsupportedModel(domain.ProviderOpenAI, spec.Model)
	}
	model := models.Normalize(spec.Model)

	reasoning, ok := reasoningParam(model, spec.Reasoning)
	if !ok {
		return nil, domain.ErrUnsupportedReasoningMapping(domain.ProviderOpenAI, spec.Model)
	}

	req := baseRequest(model, spec)
	req.Tools = []Tool{webSearchTool(model, spec.WebSearch)}
	req.ToolChoice = "auto"
	req.Reasoning = reasoning

	return &domain.ProviderPayload{Model: model, Body: req}, nil
}

// BuildPlainPayload builds a Responses request without tools.
func (a *Adapter) BuildPlainPayload(spec *domain.RequestSpec) (*domain.ProviderPayload, error) {
	if !a.ValidateModel(spec.Model) {
		return nil, domain.ErrUnsupportedModel(domain.ProviderOpenAI, spec.Model)
	}
	model := models.Normalize(spec.Model)

	req := baseRequest(model, spec)
	if reasoning, ok := reasoningParam(model, spec.Reasoning); ok {
		req.Reasoning = reasoning
	}
	return &domain.ProviderPayload{Model: model, Body: req}, nil
}

func baseRequest(model string, spec *domain.RequestSpec) *ResponsesRequest {
	req := &ResponsesRequest{
		Model:           model,
		Input:           []InputMessage{{Role: "user", Content: spec.Prompt}},
		MaxOutputTokens: spec.Sampling.MaxTokens,
		Temperature:     spec.Sampling.Temperature,
		TopP:            spec.Sampling.TopP,
	}
	if spec.JSONMode {
		req.Text = &TextConfig{Format: TextFormat{Type: "json_object"}}
	}
	return req
}

func isDeepResearch(model string) bool {
	return strings.Contains(model, "deep-research")
}

func webSearchTool(model string, opts domain.WebSearchOptions) Tool {
	tool := Tool{Type: webSearchToolType}

	switch {
	case isDeepResearch(model):
		tool.SearchContextSize = deepResearchSearch
	case strings.HasPrefix(model, "gpt-5"):
		// Only the gpt-5 family accepts a context size alongside reasoning.
		if size := strings.ToLower(opts.ContextSize); size == "low" || size == "medium" || size == "high" {
			tool.SearchContextSize = size
		}
	}

	if loc := opts.UserLocation; loc != nil {
		tool.UserLocation = &UserLocation{
			Type:     "approximate",
			Country:  loc.Country,
			City:     loc.City,
			Region:   loc.Region,
			Timezone: loc.Timezone,
		}
	}
	return tool
}

// reasoningParam maps the model family onto a reasoning directive. Families without
// a known mapping report false so the caller fails instead of guessing.
func reasoningParam(model string, opts domain.ReasoningOptions) (*Reasoning, bool) {
	var effort string
	switch {
	case isDeepResearch(model):
		effort = deepResearchEffort
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		effort = strings.ToLower(strings.TrimSpace(opts.Effort))
		if !validEfforts[effort] {
			effort = defaultEffort
		}
	default:
		return nil, false
	}

	summary := strings.ToLower(strings.TrimSpace(opts.Summary))
	if !validSummaries[summary] {
		summary = "auto"
	}
	r := &Reasoning{Effort: effort}
	if summary != "none" {
		r.Summary = summary
	}
	return r, true
}

// ParseResponse returns output_text, then output content parts, then a chat
// message, then the raw JSON.
func (a *Adapter) ParseResponse(raw rawjson.Node) string {
	if s, ok := extract.OutputText(raw); ok {
		return s
	}
	if parts := extract.OutputParts(raw); len(parts) > 0 {
		return extract.Join(parts)
	}
	if s, ok := extract.ChatMessage(raw); ok {
		return s
	}
	return extract.Fallback(raw)
}

// ExtractReasoning looks at the top-level reasoning field, reasoning output items,
// reasoning content blocks, and deep-research hints, in that order.
func (a *Adapter) ExtractReasoning(raw rawjson.Node) (string, bool) {
	if s := topLevelReasoning(raw.Get("reasoning")); s != "" {
		return s, true
	}
	if s := outputReasoning(raw); s != "" {
		return s, true
	}
	if s := researchHints(raw); s != "" {
		return s, true
	}
	return "", false
}

// requestEchoKeys are fields the API echoes back from the request; they are
// configuration, not reasoning.
var requestEchoKeys = map[string]bool{"effort": true, "generate_summary": true}

func topLevelReasoning(node rawjson.Node) string {
	if s, ok := node.Text(); ok {
		return strings.TrimSpace(s)
	}
	if !node.IsObject() {
		return ""
	}
	var parts []string
	node.Each(func(key string, value rawjson.Node) bool {
		if requestEchoKeys[key] {
			return true
		}
		if s, ok := value.Text(); ok {
			if key == "summary" && validSummaries[strings.ToLower(s)] {
				return true
			}
			parts = append(parts, s)
			return true
		}
		parts = append(parts, summaryText(value)...)
		return true
	})
	return extract.Join(parts)
}

func outputReasoning(raw rawjson.Node) string {
	var parts []string
	for _, item := range raw.Get("output").Items() {
		if typ, _ := item.String("type"); typ == "reasoning" {
			parts = append(parts, summaryText(item.Get("summary"))...)
			parts = append(parts, summaryText(item.Get("content"))...)
			continue
		}
		if r := item.Get("reasoning"); r.Exists() {
			if s := topLevelReasoning(r); s != "" {
				parts = append(parts, s)
			}
		}
		for _, block := range item.Get("content").Items() {
			typ, _ := block.String("type")
			if typ != "reasoning" && typ != "explanation" {
				continue
			}
			if s, ok := block.String("text"); ok {
				parts = append(parts, s)
			}
		}
	}
	return extract.Join(parts)
}

// summaryText reads a list of {"text": ...} blocks or plain strings.
func summaryText(list rawjson.Node) []string {
	var out []string
	for _, block := range list.Items() {
		if s, ok := block.Text(); ok {
			out = append(out, s)
			continue
		}
		if s, ok := block.String("text"); ok {
			out = append(out, s)
		}
	}
	return out
}

func researchHints(raw rawjson.Node) string {
	var parts []string
	for _, key := range []string{"research_steps", "plan", "queries"} {
		node := raw.Get(key)
		if s, ok := node.Text(); ok {
			parts = append(parts, s)
			continue
		}
		if joined := extract.JoinStrings(node, "\n"); joined != "" {
			parts = append(parts, joined)
			continue
		}
		parts = append(parts, summaryText(node)...)
	}
	return extract.Join(parts)
}
