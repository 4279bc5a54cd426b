package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestRunError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *RunError
		expected string
	}{
		{
			name:     "kind and message",
			err:      &RunError{Kind: ErrorKindNoReasoning, Message: "empty trace"},
			expected: "NoReasoning: empty trace",
		},
		{
			name:     "with status code",
			err:      &RunError{Kind: ErrorKindTransportFailure, Message: "upstream error", StatusCode: 502},
			expected: "TransportFailure (status 502): upstream error",
		},
		{
			name:     "with cause",
			err:      NewRunError(ErrorKindOutputWriteFailure, "failed to write out.txt").WithCause(errors.New("disk full")),
			expected: "OutputWriteFailure: failed to write out.txt: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorKind_ExitCode(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		expected int
	}{
		{ErrorKindMissingCredential, ExitInputOrConfig},
		{ErrorKindInputNotFound, ExitInputOrConfig},
		{ErrorKindUnsupportedModel, ExitInputOrConfig},
		{ErrorKindUnsupportedReasoningMapping, ExitInputOrConfig},
		{ErrorKindTransportFailure, ExitProviderFailed},
		{ErrorKindNoWebSearchEvidence, ExitProviderFailed},
		{ErrorKindNoReasoning, ExitProviderFailed},
		{ErrorKindGroundingUnavailable, ExitProviderFailed},
		{ErrorKindOutputWriteFailure, ExitPersistFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.ExitCode(); got != tt.expected {
				t.Errorf("ExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("building payload: %w", ErrUnsupportedModel(ProviderOpenAI, "gpt-3.5-turbo"))
	if got := KindOf(wrapped); got != ErrorKindUnsupportedModel {
		t.Errorf("KindOf() = %q, want %q", got, ErrorKindUnsupportedModel)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestRunError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrTransport("POST failed", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is() = false, want true for wrapped cause")
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input   string
		want    Provider
		wantErr bool
	}{
		{"openai", ProviderOpenAI, false},
		{" Google ", ProviderGoogle, false},
		{"OPENROUTER", ProviderOpenRouter, false},
		{"anthropic", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProvider(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseProvider() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProvider_CredentialKey(t *testing.T) {
	if got := ProviderOpenRouter.CredentialKey(); got != "OPENROUTER_API_KEY" {
		t.Errorf("CredentialKey() = %q, want OPENROUTER_API_KEY", got)
	}
}

func TestRunOutcome_ExitCode(t *testing.T) {
	ok := &RunOutcome{Result: &CanonicalResult{Text: "x"}}
	if got := ok.ExitCode(); got != ExitOK {
		t.Errorf("ExitCode() = %d, want %d", got, ExitOK)
	}

	failed := &RunOutcome{Failure: &ErrorRecord{Error: ErrorInfo{Type: ErrorKindOutputWriteFailure}}}
	if got := failed.ExitCode(); got != ExitPersistFailed {
		t.Errorf("ExitCode() = %d, want %d", got, ExitPersistFailed)
	}
}
