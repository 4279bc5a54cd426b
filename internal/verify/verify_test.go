package verify

import (
	"fmt"
	"testing"

	"github.com/morganross/FilePromptForge/internal/rawjson"
)

func TestVerifier_Check(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     bool
		wantRule Rule
	}{
		{
			name:     "tool_calls array",
			raw:      `{"output_text": "It is sunny. [source](https://weather.example)", "tool_calls": [{"type": "web_search"}]}`,
			want:     true,
			wantRule: RuleToolCalls,
		},
		{
			name:     "tools array",
			raw:      `{"tools": [{"name": "search"}]}`,
			want:     true,
			wantRule: RuleToolCalls,
		},
		{
			name:     "empty tool_calls falls through",
			raw:      `{"tool_calls": [], "output_text": "no evidence"}`,
			want:     false,
			wantRule: RuleNone,
		},
		{
			name:     "url key in content block",
			raw:      `{"output": [{"type": "message", "content": [{"type": "output_text", "text": "x", "url": "u"}]}]}`,
			want:     true,
			wantRule: RuleSourceKey,
		},
		{
			name:     "url citation annotation",
			raw:      `{"output": [{"type": "message", "content": [{"type": "output_text", "text": "sunny", "annotations": [{"type": "url_citation", "url": "u"}]}]}]}`,
			want:     true,
			wantRule: RuleSourceKey,
		},
		{
			name:     "link key on gemini part",
			raw:      `{"candidates": [{"content": {"parts": [{"text": "x", "link": "l"}]}}]}`,
			want:     true,
			wantRule: RuleSourceKey,
		},
		{
			name:     "https in output_text",
			raw:      `{"output_text": "See https://example.com"}`,
			want:     true,
			wantRule: RuleCitationText,
		},
		{
			name:     "citation marker in chat message",
			raw:      `{"choices": [{"message": {"content": "Citation: NOAA bulletin"}}]}`,
			want:     true,
			wantRule: RuleCitationText,
		},
		{
			name:     "source marker in content part",
			raw:      `{"output": [{"content": [{"type": "output_text", "text": "sunny [source]"}]}]}`,
			want:     true,
			wantRule: RuleCitationText,
		},
		{
			name:     "grounding metadata",
			raw:      `{"candidates": [{"content": {"parts": [{"text": "sunny"}]}, "groundingMetadata": {"webSearchQueries": ["weather"]}}]}`,
			want:     true,
			wantRule: RuleGroundingMetadata,
		},
		{
			name:     "empty grounding metadata",
			raw:      `{"candidates": [{"content": {"parts": [{"text": "sunny"}]}, "groundingMetadata": {}}]}`,
			want:     false,
			wantRule: RuleNone,
		},
		{
			name:     "string fallback",
			raw:      `{"output": [{"type": "web_search_call", "status": "completed"}]}`,
			want:     true,
			wantRule: RuleStringFallback,
		},
		{
			name:     "no evidence",
			raw:      `{"output_text": "It is sunny.", "reasoning": "thought about it"}`,
			want:     false,
			wantRule: RuleNone,
		},
		{
			name:     "url outside any block is not evidence",
			raw:      `{"metadata": {"url": "https://example.com"}}`,
			want:     false,
			wantRule: RuleNone,
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := v.Check(rawjson.ParseString(tt.raw))
			if got != tt.want || rule != tt.wantRule {
				t.Errorf("Check() = (%v, %q), want (%v, %q)", got, rule, tt.want, tt.wantRule)
			}
		})
	}
}

func TestVerifier_WithoutStringFallback(t *testing.T) {
	raw := rawjson.ParseString(`{"output_text": "I did not use web_search today"}`)

	if !UsedWebSearch(raw) {
		t.Error("UsedWebSearch() = false, want true with default string fallback")
	}
	if New(WithStringFallback(false)).UsedWebSearch(raw) {
		t.Error("UsedWebSearch() = true, want false with string fallback disabled")
	}
}

func TestVerifier_WithCitationMarkers(t *testing.T) {
	raw := rawjson.ParseString(`{"output_text": "Sunny (ref: weather service)"}`)

	if UsedWebSearch(raw) {
		t.Error("UsedWebSearch() = true, want false without custom marker")
	}
	if !New(WithCitationMarkers("(ref:")).UsedWebSearch(raw) {
		t.Error("UsedWebSearch() = false, want true with custom marker")
	}
}

// Structural evidence takes priority: any non-empty tool_calls wins whatever else the tree holds.
func TestUsedWebSearch_ToolCallsAlwaysTrue(t *testing.T) {
	bodies := []string{
		`"output_text": ""`,
		`"candidates": "not a list"`,
		`"output": [1, 2, 3]`,
		`"choices": null`,
		`"reasoning": {"effort": "high"}`,
	}
	calls := []string{`[{}]`, `[1]`, `["x"]`, `[{"type": "function"}]`}

	v := New(WithStringFallback(false))
	for _, body := range bodies {
		for _, call := range calls {
			raw := fmt.Sprintf(`{%s, "tool_calls": %s}`, body, call)
			if !v.UsedWebSearch(rawjson.ParseString(raw)) {
				t.Errorf("UsedWebSearch(%s) = false, want true", raw)
			}
		}
	}
}

func TestUsedWebSearch_HostileInput(t *testing.T) {
	for _, raw := range []string{``, `null`, `[]`, `"str"`, `{"output": {"content": 1}}`, `{"candidates": [null, 1, "x"]}`, `{broken`} {
		if UsedWebSearch(rawjson.ParseString(raw)) {
			t.Errorf("UsedWebSearch(%q) = true, want false", raw)
		}
	}
}

func TestWebSearchEntries(t *testing.T) {
	raw := rawjson.ParseString(`{"output": [
		{"type": "web_search_call", "id": "ws_1"},
		{"type": "message", "id": "msg_1"},
		{"type": "other", "id": "ws_2"},
		{"type": "web_search_preview_result", "id": "x"}
	]}`)

	entries := WebSearchEntries(raw)
	if len(entries) != 3 {
		t.Fatalf("WebSearchEntries() len = %d, want 3", len(entries))
	}
	if id, _ := entries[1].String("id"); id != "ws_2" {
		t.Errorf("entries[1].id = %q, want ws_2", id)
	}
}
