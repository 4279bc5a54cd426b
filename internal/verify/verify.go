// Package verify decides whether a provider response shows evidence of web search.
//
// The checks are heuristics ordered from structural signals to string scanning.
// String scanning can false-positive on echoed prompts, so it runs last and can
// be disabled per provider.
package verify

import (
	"strings"

	"github.com/morganross/FilePromptForge/internal/rawjson"
)

// Rule names the check that produced a positive verdict.
type Rule string

const (
	RuleNone              Rule = ""
	RuleToolCalls         Rule = "tool_calls"
	RuleSourceKey         Rule = "source_key"
	RuleCitationText      Rule = "citation_text"
	RuleGroundingMetadata Rule = "grounding_metadata"
	RuleStringFallback    Rule = "string_fallback"
)

// DefaultCitationMarkers are the substrings that mark a textual citation.
var DefaultCitationMarkers = []string{"http://", "https://", "[source]", "Citation:"}

var sourceKeys = []string{"source", "url", "link"}

// Option configures a Verifier.
type Option func(*Verifier)

// WithStringFallback enables or disables the final whole-document scan for "web_search".
func WithStringFallback(enabled bool) Option {
	return func(v *Verifier) {
		v.stringFallback = enabled
	}
}

// WithCitationMarkers adds textual citation markers to the defaults.
func WithCitationMarkers(markers ...string) Option {
	return func(v *Verifier) {
		for _, m := range markers {
			if m != "" {
				v.markers = append(v.markers, m)
			}
		}
	}
}

// Verifier applies the web search heuristics. It holds no state between calls.
type Verifier struct {
	stringFallback bool
	markers        []string
}

// New creates a Verifier with the default rules.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		stringFallback: true,
		markers:        append([]string(nil), DefaultCitationMarkers...),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultVerifier = New()

// UsedWebSearch applies the default rules to raw.
func UsedWebSearch(raw rawjson.Node) bool {
	return defaultVerifier.UsedWebSearch(raw)
}

// UsedWebSearch reports whether raw shows evidence of web search.
func (v *Verifier) UsedWebSearch(raw rawjson.Node) bool {
	ok, _ := v.Check(raw)
	return ok
}

// Check runs the rules in priority order and reports the first that matched.
func (v *Verifier) Check(raw rawjson.Node) (bool, Rule) {
	for _, key := range []string{"tool_calls", "tools"} {
		if list, ok := raw.List(key); ok && len(list) > 0 {
			return true, RuleToolCalls
		}
	}

	for _, block := range blocks(raw) {
		for _, key := range sourceKeys {
			if block.Has(key) {
				return true, RuleSourceKey
			}
		}
	}

	for _, text := range textBlocks(raw) {
		for _, marker := range v.markers {
			if strings.Contains(text, marker) {
				return true, RuleCitationText
			}
		}
	}

	for _, cand := range raw.Get("candidates").Items() {
		if cand.Get("groundingMetadata").NonEmpty() {
			return true, RuleGroundingMetadata
		}
	}

	if v.stringFallback && strings.Contains(raw.Raw(), "web_search") {
		return true, RuleStringFallback
	}

	return false, RuleNone
}

// blocks collects every output item, content block and annotation object.
func blocks(raw rawjson.Node) []rawjson.Node {
	var out []rawjson.Node
	addContent := func(list rawjson.Node) {
		for _, block := range list.Items() {
			if !block.IsObject() {
				continue
			}
			out = append(out, block)
			for _, ann := range block.Get("annotations").Items() {
				if ann.IsObject() {
					out = append(out, ann)
				}
			}
		}
	}

	for _, key := range []string{"output", "outputs"} {
		for _, item := range raw.Get(key).Items() {
			if !item.IsObject() {
				continue
			}
			out = append(out, item)
			addContent(item.Get("content"))
			addContent(item.Get("contents"))
		}
	}
	for _, cand := range raw.Get("candidates").Items() {
		addContent(cand.Get("content.parts"))
	}
	for _, choice := range raw.Get("choices").Items() {
		addContent(choice.Get("message.content"))
		addContent(choice.Get("message.annotations"))
	}
	return out
}

// textBlocks collects every string that is presented as answer or content text.
func textBlocks(raw rawjson.Node) []string {
	var out []string
	add := func(n rawjson.Node) {
		if s, ok := n.Text(); ok {
			out = append(out, s)
		}
	}
	addContent := func(content rawjson.Node) {
		add(content)
		for _, block := range content.Items() {
			add(block)
			add(block.Get("text"))
		}
	}

	add(raw.Get("output_text"))
	add(raw.Get("content"))
	for _, key := range []string{"output", "outputs"} {
		for _, item := range raw.Get(key).Items() {
			add(item)
			add(item.Get("text"))
			addContent(item.Get("content"))
			addContent(item.Get("contents"))
		}
	}
	for _, cand := range raw.Get("candidates").Items() {
		addContent(cand.Get("content.parts"))
	}
	for _, choice := range raw.Get("choices").Items() {
		addContent(choice.Get("message.content"))
		add(choice.Get("text"))
	}
	return out
}

// WebSearchEntries returns the output items that record a web search call.
func WebSearchEntries(raw rawjson.Node) []rawjson.Node {
	var out []rawjson.Node
	for _, key := range []string{"output", "tool_calls"} {
		for _, item := range raw.Get(key).Items() {
			typ, _ := item.String("type")
			id, _ := item.String("id")
			if typ == "web_search_call" || strings.Contains(typ, "web_search") || strings.HasPrefix(id, "ws_") {
				out = append(out, item)
			}
		}
	}
	return out
}
