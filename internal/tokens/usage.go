// Package tokens reads provider-reported token usage and estimates it when absent.
package tokens

import (
	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/rawjson"
)

// Counter counts the tokens of a text for a model.
type Counter interface {
	SupportsModel(model string) bool
	CountText(model, text string) (int, error)
}

// Registry picks a counter per model, falling back to a character estimator.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry creates a registry with the tiktoken counter and the estimator fallback.
func NewRegistry() *Registry {
	return &Registry{
		counters: []Counter{NewOpenAICounter()},
		fallback: NewEstimator(),
	}
}

// Register adds a token counter to the registry.
func (r *Registry) Register(counter Counter) {
	r.counters = append(r.counters, counter)
}

// GetCounter returns the appropriate counter for a model.
func (r *Registry) GetCounter(model string) Counter {
	for _, counter := range r.counters {
		if counter.SupportsModel(model) {
			return counter
		}
	}
	return r.fallback
}

// CountText counts text with the model's counter, using the estimator if that fails.
func (r *Registry) CountText(model, text string) int {
	if n, err := r.GetCounter(model).CountText(model, text); err == nil {
		return n
	}
	n, _ := r.fallback.CountText(model, text)
	return n
}

// Estimator approximates token counts from character length.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		CharsPerToken: 4.0,
	}
}

// SupportsModel returns true - estimator supports all models as a fallback.
func (e *Estimator) SupportsModel(string) bool {
	return true
}

// CountText estimates the token count of text.
func (e *Estimator) CountText(_, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	n := int(float64(len(text)) / e.CharsPerToken)
	if n == 0 {
		n = 1
	}
	return n, nil
}

// usageShapes lists where each provider reports input and output token counts.
var usageShapes = []struct{ input, output, total string }{
	{"usage.input_tokens", "usage.output_tokens", "usage.total_tokens"},
	{"usage.prompt_tokens", "usage.completion_tokens", "usage.total_tokens"},
	{"usageMetadata.promptTokenCount", "usageMetadata.candidatesTokenCount", "usageMetadata.totalTokenCount"},
}

// FromResponse returns the usage reported in raw, or false when the response carries none.
func FromResponse(raw rawjson.Node) (domain.Usage, bool) {
	for _, shape := range usageShapes {
		in, okIn := raw.Int(shape.input)
		out, okOut := raw.Int(shape.output)
		if !okIn && !okOut {
			continue
		}
		u := domain.Usage{InputTokens: int(in), OutputTokens: int(out)}
		if total, ok := raw.Int(shape.total); ok {
			u.TotalTokens = int(total)
		} else {
			u.TotalTokens = u.InputTokens + u.OutputTokens
		}
		return u, true
	}
	return domain.Usage{}, false
}

// Resolve returns the reported usage of raw, or an estimate from the prompt
// and output text marked Estimated.
func (r *Registry) Resolve(raw rawjson.Node, model, prompt, output string) domain.Usage {
	if u, ok := FromResponse(raw); ok {
		return u
	}
	in := r.CountText(model, prompt)
	out := r.CountText(model, output)
	return domain.Usage{
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
		Estimated:    true,
	}
}
