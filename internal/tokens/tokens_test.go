package tokens

import (
	"testing"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/rawjson"
)

func TestEstimator_CountText(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"Hello, how are you?", 4},
		{string(make([]byte, 400)), 100},
	}

	for _, tt := range tests {
		got, err := e.CountText("any", tt.text)
		if err != nil {
			t.Fatalf("CountText() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("CountText(len %d) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestOpenAICounter_SupportsModel(t *testing.T) {
	c := NewOpenAICounter()

	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-5", true},
		{"gpt-4.1-mini", true},
		{"o3-deep-research", true},
		{"o4-mini", true},
		{"openai/gpt-5:online", true},
		{"gemini-2.5-pro", false},
		{"anthropic/claude-sonnet-4", false},
		{"gpt5", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := c.SupportsModel(tt.model); got != tt.want {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestOpenAICounter_CountText(t *testing.T) {
	c := NewOpenAICounter()

	for _, model := range []string{"gpt-5", "gpt-4o", "o3", "openai/gpt-5-mini", "gpt-5-2025-08-07"} {
		t.Run(model, func(t *testing.T) {
			got, err := c.CountText(model, "Hello, world!")
			if err != nil {
				t.Fatalf("CountText() error = %v", err)
			}
			if got < 2 || got > 6 {
				t.Errorf("CountText() = %d, want between 2 and 6", got)
			}
		})
	}
}

func TestRegistry_GetCounter(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.GetCounter("gpt-5").(*OpenAICounter); !ok {
		t.Error("GetCounter(gpt-5) is not the tiktoken counter")
	}
	if _, ok := r.GetCounter("gemini-2.5-flash").(*Estimator); !ok {
		t.Error("GetCounter(gemini-2.5-flash) is not the estimator")
	}
}

func TestFromResponse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   domain.Usage
		wantOK bool
	}{
		{
			name:   "responses api",
			raw:    `{"usage": {"input_tokens": 10, "output_tokens": 5, "total_tokens": 15}}`,
			want:   domain.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
			wantOK: true,
		},
		{
			name:   "chat completions without total",
			raw:    `{"usage": {"prompt_tokens": 7, "completion_tokens": 3}}`,
			want:   domain.Usage{InputTokens: 7, OutputTokens: 3, TotalTokens: 10},
			wantOK: true,
		},
		{
			name:   "gemini",
			raw:    `{"usageMetadata": {"promptTokenCount": 20, "candidatesTokenCount": 8, "totalTokenCount": 40}}`,
			want:   domain.Usage{InputTokens: 20, OutputTokens: 8, TotalTokens: 40},
			wantOK: true,
		},
		{
			name:   "absent",
			raw:    `{"output_text": "x"}`,
			wantOK: false,
		},
		{
			name:   "non-numeric",
			raw:    `{"usage": {"input_tokens": "ten"}}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromResponse(rawjson.ParseString(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("FromResponse() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("FromResponse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()

	reported := r.Resolve(rawjson.ParseString(`{"usage": {"input_tokens": 1, "output_tokens": 2}}`), "gpt-5", "prompt", "out")
	if reported.Estimated || reported.TotalTokens != 3 {
		t.Errorf("Resolve() = %+v, want reported usage", reported)
	}

	estimated := r.Resolve(rawjson.ParseString(`{}`), "gemini-2.5-pro", "12345678", "1234")
	want := domain.Usage{InputTokens: 2, OutputTokens: 1, TotalTokens: 3, Estimated: true}
	if estimated != want {
		t.Errorf("Resolve() = %+v, want %+v", estimated, want)
	}
}
