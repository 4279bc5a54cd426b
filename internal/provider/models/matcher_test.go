package models

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"gpt-5", "gpt-5"},
		{" GPT-5 ", "gpt-5"},
		{"openai/gpt-4o-mini:online", "openai/gpt-4o-mini"},
		{"gemini-2.5-pro:latest", "gemini-2.5-pro"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMatcher_Matches(t *testing.T) {
	m := NewMatcher([]string{"gpt-5", "o3"}, []string{"o1"})

	tests := []struct {
		model string
		want  bool
	}{
		{"gpt-5", true},
		{"gpt-5-mini", true},
		{"gpt-5-2025-08-07", true},
		{"gpt-5.1", true},
		{"GPT-5:online", true},
		{"o3-deep-research", true},
		{"o1", true},
		{"o1-preview", false},
		{"gpt-5o", false},
		{"gtp-5", false},
		{"gpt5", false},
		{"gpt-3.5-turbo", false},
		{"o33", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := m.Matches(tt.model); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestMatcher_Entries(t *testing.T) {
	m := NewMatcher([]string{"b", "a"}, []string{"c"})
	got := m.Entries()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Entries() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entries()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
