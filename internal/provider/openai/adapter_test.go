package openai

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/rawjson"
)

func ptr[T any](v T) *T { return &v }

func TestAdapter_ValidateModel(t *testing.T) {
	a := New()

	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-5", true},
		{"gpt-5-mini", true},
		{"gpt-5-nano", true},
		{"o4-mini", true},
		{"o3", true},
		{"o3-mini", true},
		{"o1", true},
		{"o3-deep-research", true},
		{"o4-mini-deep-research", true},
		{"gpt-4.1", false},
		{"gpt-4o", false},
		{"gpt-3.5-turbo", false},
		{"gpt5", false},
		{"gpt-5o", false},
		{"gtp-5", false},
		{"o2", false},
		{"claude-sonnet-4", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := a.ValidateModel(tt.model); got != tt.want {
				t.Errorf("ValidateModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func buildBody(t *testing.T, spec *domain.RequestSpec) map[string]any {
	t.Helper()
	payload, err := New().BuildPayload(spec)
	if err != nil {
		t.Fatalf("BuildPayload() error = %v", err)
	}
	data, err := json.Marshal(payload.Body)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	return body
}

func TestAdapter_BuildPayload(t *testing.T) {
	body := buildBody(t, &domain.RequestSpec{
		Provider:  domain.ProviderOpenAI,
		Model:     "gpt-5",
		Prompt:    "Weather today?",
		WebSearch: domain.WebSearchOptions{ContextSize: "low"},
	})

	if body["model"] != "gpt-5" {
		t.Errorf("model = %v, want gpt-5", body["model"])
	}
	if body["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v, want auto", body["tool_choice"])
	}

	tools, _ := body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v, want one web search tool", body["tools"])
	}
	tool := tools[0].(map[string]any)
	if tool["type"] != webSearchToolType {
		t.Errorf("tool type = %v, want %s", tool["type"], webSearchToolType)
	}
	if tool["search_context_size"] != "low" {
		t.Errorf("search_context_size = %v, want low", tool["search_context_size"])
	}

	reasoning, _ := body["reasoning"].(map[string]any)
	if reasoning["effort"] != "high" {
		t.Errorf("reasoning.effort = %v, want high", reasoning["effort"])
	}
	if reasoning["summary"] != "auto" {
		t.Errorf("reasoning.summary = %v, want auto", reasoning["summary"])
	}

	for _, key := range []string{"temperature", "top_p", "max_output_tokens", "text"} {
		if _, ok := body[key]; ok {
			t.Errorf("%s present, want omitted when unset", key)
		}
	}

	input, _ := body["input"].([]any)
	if len(input) != 1 || input[0].(map[string]any)["content"] != "Weather today?" {
		t.Errorf("input = %v, want single user message", body["input"])
	}
}

func TestAdapter_BuildPayload_Sampling(t *testing.T) {
	body := buildBody(t, &domain.RequestSpec{
		Model:     "o3",
		Prompt:    "p",
		Sampling:  domain.Sampling{Temperature: ptr(0.2), MaxTokens: ptr(2048), TopP: ptr(0.9)},
		Reasoning: domain.ReasoningOptions{Effort: "low", Summary: "none"},
		JSONMode:  true,
	})

	if body["temperature"] != 0.2 {
		t.Errorf("temperature = %v, want 0.2", body["temperature"])
	}
	if body["max_output_tokens"] != float64(2048) {
		t.Errorf("max_output_tokens = %v, want 2048", body["max_output_tokens"])
	}
	if body["top_p"] != 0.9 {
		t.Errorf("top_p = %v, want 0.9", body["top_p"])
	}
	reasoning := body["reasoning"].(map[string]any)
	if reasoning["effort"] != "low" {
		t.Errorf("reasoning.effort = %v, want low", reasoning["effort"])
	}
	if _, ok := reasoning["summary"]; ok {
		t.Error("reasoning.summary present, want omitted for none")
	}
	// o-series models do not take a search context size.
	tool := body["tools"].([]any)[0].(map[string]any)
	if _, ok := tool["search_context_size"]; ok {
		t.Error("search_context_size present for o3, want omitted")
	}
	format := body["text"].(map[string]any)["format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("text.format.type = %v, want json_object", format["type"])
	}
}

func TestAdapter_BuildPayload_DeepResearch(t *testing.T) {
	body := buildBody(t, &domain.RequestSpec{
		Model:     "o3-deep-research",
		Prompt:    "p",
		Reasoning: domain.ReasoningOptions{Effort: "high"},
	})

	if got := body["reasoning"].(map[string]any)["effort"]; got != deepResearchEffort {
		t.Errorf("reasoning.effort = %v, want %s", got, deepResearchEffort)
	}
	tool := body["tools"].([]any)[0].(map[string]any)
	if tool["search_context_size"] != deepResearchSearch {
		t.Errorf("search_context_size = %v, want %s", tool["search_context_size"], deepResearchSearch)
	}
}

func TestAdapter_BuildPayload_Errors(t *testing.T) {
	tests := []struct {
		model string
		want  domain.ErrorKind
	}{
		{"gpt-3.5-turbo", domain.ErrorKindUnsupportedModel},
		{"gpt-4o", domain.ErrorKindUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			_, err := New().BuildPayload(&domain.RequestSpec{Model: tt.model, Prompt: "p"})
			if err == nil {
				t.Fatalf("BuildPayload() error = nil, want %s", tt.want)
			}
			if got := domain.KindOf(err); got != tt.want {
				t.Errorf("BuildPayload() error kind = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAdapter_BuildPayload_AlwaysHasWebSearchTool(t *testing.T) {
	specs := []domain.RequestSpec{
		{Model: "gpt-5"},
		{Model: "gpt-5-mini", WebSearch: domain.WebSearchOptions{ContextSize: "bogus"}},
		{Model: "o4-mini", WebSearch: domain.WebSearchOptions{MaxResults: 0}},
		{Model: "o1", JSONMode: true, Sampling: domain.Sampling{MaxTokens: ptr(1)}},
		{Model: "o4-mini-deep-research", WebSearch: domain.WebSearchOptions{UserLocation: &domain.UserLocation{Country: "US"}}},
	}

	for _, spec := range specs {
		t.Run(spec.Model, func(t *testing.T) {
			payload, err := New().BuildPayload(&spec)
			if err != nil {
				t.Fatalf("BuildPayload() error = %v", err)
			}
			req := payload.Body.(*ResponsesRequest)
			if len(req.Tools) == 0 || req.Tools[0].Type != webSearchToolType {
				t.Errorf("tools = %+v, want web search tool", req.Tools)
			}
		})
	}
}

func TestAdapter_BuildPlainPayload(t *testing.T) {
	payload, err := New().BuildPlainPayload(&domain.RequestSpec{Model: "gpt-5-mini", Prompt: "p"})
	if err != nil {
		t.Fatalf("BuildPlainPayload() error = %v", err)
	}
	req := payload.Body.(*ResponsesRequest)
	if len(req.Tools) != 0 {
		t.Errorf("tools = %+v, want none", req.Tools)
	}
	if req.Reasoning == nil || req.Reasoning.Effort != defaultEffort {
		t.Errorf("reasoning = %+v, want effort %s", req.Reasoning, defaultEffort)
	}
}

func TestReasoningParam_UnknownFamily(t *testing.T) {
	if r, ok := reasoningParam("gpt-4o", domain.ReasoningOptions{Effort: "high"}); ok || r != nil {
		t.Errorf("reasoningParam(gpt-4o) = %+v, %v, want nil, false", r, ok)
	}
}

func TestAdapter_ParseResponse(t *testing.T) {
	a := New()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "output_text wins",
			raw:  `{"output_text": "It is sunny.", "output": [{"type": "message", "content": [{"type": "output_text", "text": "other"}]}]}`,
			want: "It is sunny.",
		},
		{
			name: "output content parts joined",
			raw: `{"output": [
				{"type": "web_search_call", "id": "ws_1"},
				{"type": "reasoning", "summary": [{"type": "summary_text", "text": "thinking"}]},
				{"type": "message", "content": [{"type": "output_text", "text": "first"}, {"type": "output_text", "text": "second"}]}
			]}`,
			want: "first\n\nsecond",
		},
		{
			name: "legacy chat shape",
			raw:  `{"choices": [{"message": {"role": "assistant", "content": "chat answer"}}]}`,
			want: "chat answer",
		},
		{
			name: "raw fallback",
			raw:  `{"id": "resp_1"}`,
			want: "{\n  \"id\": \"resp_1\"\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.ParseResponse(rawjson.ParseString(tt.raw)); got != tt.want {
				t.Errorf("ParseResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdapter_ExtractReasoning(t *testing.T) {
	a := New()

	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{
			name:   "top-level string",
			raw:    `{"reasoning": "searched weather.example"}`,
			want:   "searched weather.example",
			wantOK: true,
		},
		{
			name:   "blank string",
			raw:    `{"reasoning": "   "}`,
			wantOK: false,
		},
		{
			name:   "request echo only",
			raw:    `{"reasoning": {"effort": "high", "summary": "auto"}}`,
			wantOK: false,
		},
		{
			name:   "object with text",
			raw:    `{"reasoning": {"effort": "high", "text": "compared sources"}}`,
			want:   "compared sources",
			wantOK: true,
		},
		{
			name:   "reasoning output item",
			raw:    `{"reasoning": {"effort": "high", "summary": null}, "output": [{"type": "reasoning", "summary": [{"type": "summary_text", "text": "step one"}, {"type": "summary_text", "text": "step two"}]}]}`,
			want:   "step one\n\nstep two",
			wantOK: true,
		},
		{
			name:   "explanation block",
			raw:    `{"output": [{"type": "message", "content": [{"type": "explanation", "text": "because"}]}]}`,
			want:   "because",
			wantOK: true,
		},
		{
			name:   "deep research hints",
			raw:    `{"queries": ["q1", "q2"]}`,
			want:   "q1\nq2",
			wantOK: true,
		},
		{
			name:   "absent",
			raw:    `{"output_text": "answer"}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := a.ExtractReasoning(rawjson.ParseString(tt.raw))
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ExtractReasoning() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAdapter_Authorize(t *testing.T) {
	h := http.Header{}
	New().Authorize(h, "sk-test")
	if got := h.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", got)
	}
}
