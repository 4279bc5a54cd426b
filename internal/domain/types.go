package domain

import (
	"fmt"
	"strings"
)

// Provider identifies an upstream LLM vendor.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderGoogle     Provider = "google"
	ProviderOpenRouter Provider = "openrouter"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderOpenAI, ProviderGoogle, ProviderOpenRouter}

// ParseProvider converts a configuration string into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderOpenAI, ProviderGoogle, ProviderOpenRouter:
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// CredentialKey returns the secrets file key holding this provider's API key.
func (p Provider) CredentialKey() string {
	return strings.ToUpper(string(p)) + "_API_KEY"
}

// Method records how an answer was grounded.
type Method string

const (
	// MethodProviderTool means citations from a provider-side tool were recovered.
	MethodProviderTool Method = "provider-tool"
	// MethodNoTool means no citation evidence was recovered from the response.
	MethodNoTool Method = "no-tool"
	// MethodNone means the grounding policy skipped grounding entirely.
	MethodNone Method = "none"
)

// Sampling holds optional sampling parameters. Nil fields are omitted from payloads.
type Sampling struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UserLocation is an approximate location hint for web search.
type UserLocation struct {
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// WebSearchOptions configures provider-side search. All fields are best-effort.
type WebSearchOptions struct {
	MaxResults   int
	SearchPrompt string
	ContextSize  string
	UserLocation *UserLocation
}

// ReasoningOptions configures the reasoning directive.
type ReasoningOptions struct {
	Effort    string
	MaxTokens int
	Summary   string
}

// RequestSpec is the immutable input of one run.
type RequestSpec struct {
	Provider  Provider
	Model     string
	Prompt    string
	Sampling  Sampling
	WebSearch WebSearchOptions
	Reasoning ReasoningOptions

	// Referer and Title identify the caller to proxying providers.
	Referer string
	Title   string

	// JSONMode asks the provider for a JSON object response.
	JSONMode bool
}

// ProviderPayload is a provider-specific request body plus extra headers.
type ProviderPayload struct {
	// Model is the wire model id, which may differ from the requested model.
	Model   string
	Body    any
	Headers map[string]string
}

// Source is one citation recovered from a response.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// CanonicalResult is the normalized record of one provider response.
type CanonicalResult struct {
	Text        string         `json:"text"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Method      Method         `json:"method"`
	Sources     []Source       `json:"sources"`
	Reasoning   *string        `json:"reasoning,omitempty"`
	ToolDetails map[string]any `json:"tool_details,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

// ErrorInfo is the error section of an error sidecar.
type ErrorInfo struct {
	Type    ErrorKind `json:"type"`
	Message string    `json:"message"`
}

// ErrorRecord describes a failed run. It is always serializable as a sidecar.
type ErrorRecord struct {
	Error     ErrorInfo `json:"error"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Method    Method    `json:"method"`
	Timestamp string    `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Stage     string    `json:"stage,omitempty"`
}

// Kind returns the failure kind.
func (r *ErrorRecord) Kind() ErrorKind {
	return r.Error.Type
}

// Usage is token usage reported by the provider or estimated locally.
type Usage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	TotalTokens  int  `json:"total_tokens"`
	Estimated    bool `json:"estimated"`
}

// Cost is the priced usage of a run.
type Cost struct {
	InputPricePerMillion  *float64 `json:"input_price_per_million_usd"`
	OutputPricePerMillion *float64 `json:"output_price_per_million_usd"`
	InputTokens           int      `json:"input_tokens"`
	OutputTokens          int      `json:"output_tokens"`
	InputCost             *float64 `json:"input_cost_usd"`
	OutputCost            *float64 `json:"output_cost_usd"`
	TotalCost             *float64 `json:"total_cost_usd"`
	PricingLastUpdated    string   `json:"pricing_last_updated,omitempty"`
	PricingSource         string   `json:"pricing_source,omitempty"`
	PricingSourceURL      string   `json:"pricing_source_url,omitempty"`
	Unit                  string   `json:"unit,omitempty"`
	Reason                string   `json:"reason,omitempty"`
}

// RunOutcome is the terminal state of one run: a result with its output path, or a failure.
type RunOutcome struct {
	RunID       string
	Provider    Provider
	Model       string
	Result      *CanonicalResult
	OutputPath  string
	SidecarPath string
	LogPath     string
	Usage       *Usage
	Cost        *Cost
	Failure     *ErrorRecord
	StartedAt   string
	FinishedAt  string
}

// Succeeded reports whether the run produced a trusted output.
func (o *RunOutcome) Succeeded() bool {
	return o != nil && o.Failure == nil && o.Result != nil
}

// ExitCode returns the process exit code for this outcome.
func (o *RunOutcome) ExitCode() int {
	if o.Succeeded() {
		return ExitOK
	}
	if o == nil || o.Failure == nil {
		return ExitProviderFailed
	}
	return o.Failure.Kind().ExitCode()
}
