// Package domain provides the run data model and error taxonomy shared by the pipeline.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a run failure.
type ErrorKind string

const (
	// ErrorKindMissingCredential indicates the provider API key is absent or empty.
	ErrorKindMissingCredential ErrorKind = "MissingCredential"

	// ErrorKindInputNotFound indicates a prompt input file could not be read.
	ErrorKindInputNotFound ErrorKind = "InputNotFound"

	// ErrorKindUnsupportedModel indicates the model is not on the adapter allow-list.
	ErrorKindUnsupportedModel ErrorKind = "UnsupportedModel"

	// ErrorKindUnsupportedReasoningMapping indicates no reasoning parameter is known for the model.
	ErrorKindUnsupportedReasoningMapping ErrorKind = "UnsupportedReasoningMapping"

	// ErrorKindTransportFailure indicates a network or HTTP-level failure.
	ErrorKindTransportFailure ErrorKind = "TransportFailure"

	// ErrorKindNoWebSearchEvidence indicates the response carries no sign of web search.
	ErrorKindNoWebSearchEvidence ErrorKind = "NoWebSearchEvidence"

	// ErrorKindNoReasoning indicates the response carries no reasoning trace.
	ErrorKindNoReasoning ErrorKind = "NoReasoning"

	// ErrorKindOutputWriteFailure indicates an output artifact could not be persisted.
	ErrorKindOutputWriteFailure ErrorKind = "OutputWriteFailure"

	// ErrorKindGroundingUnavailable indicates the grounding policy refused the model
	// and no ungrounded fallback was allowed.
	ErrorKindGroundingUnavailable ErrorKind = "GroundingUnavailable"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitInputOrConfig  = 2
	ExitProviderFailed = 3
	ExitPersistFailed  = 4
)

// ExitCode maps the kind onto the process exit code.
func (k ErrorKind) ExitCode() int {
	switch k {
	case ErrorKindMissingCredential, ErrorKindInputNotFound,
		ErrorKindUnsupportedModel, ErrorKindUnsupportedReasoningMapping:
		return ExitInputOrConfig
	case ErrorKindTransportFailure, ErrorKindNoWebSearchEvidence,
		ErrorKindNoReasoning, ErrorKindGroundingUnavailable:
		return ExitProviderFailed
	case ErrorKindOutputWriteFailure:
		return ExitPersistFailed
	default:
		return ExitProviderFailed
	}
}

// RunError is a terminal failure raised by one stage of a run.
type RunError struct {
	// Kind is the category of failure
	Kind ErrorKind `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// StatusCode is the upstream HTTP status, if any
	StatusCode int `json:"-"`

	// Err is the underlying cause (if any)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Detail())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail())
}

// Detail returns the message followed by the underlying cause, if any.
func (e *RunError) Detail() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a new run error.
func NewRunError(kind ErrorKind, message string) *RunError {
	return &RunError{
		Kind:    kind,
		Message: message,
	}
}

// WithStatusCode records the upstream HTTP status.
func (e *RunError) WithStatusCode(code int) *RunError {
	e.StatusCode = code
	return e
}

// WithCause attaches the underlying error.
func (e *RunError) WithCause(err error) *RunError {
	e.Err = err
	return e
}

// KindOf returns the kind of a RunError anywhere in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// Convenience constructors

// ErrMissingCredential creates a missing credential error.
func ErrMissingCredential(key, path string) *RunError {
	return NewRunError(ErrorKindMissingCredential,
		fmt.Sprintf("%s not found or empty in secrets file %s", key, path))
}

// ErrInputNotFound creates an input not found error.
func ErrInputNotFound(path string, err error) *RunError {
	return NewRunError(ErrorKindInputNotFound,
		fmt.Sprintf("input file %s could not be read", path)).WithCause(err)
}

// ErrUnsupportedModel creates an unsupported model error.
func ErrUnsupportedModel(provider Provider, model string) *RunError {
	return NewRunError(ErrorKindUnsupportedModel,
		fmt.Sprintf("model %q is not allowed for provider %s", model, provider))
}

// ErrUnsupportedReasoningMapping creates an unsupported reasoning mapping error.
func ErrUnsupportedReasoningMapping(provider Provider, model string) *RunError {
	return NewRunError(ErrorKindUnsupportedReasoningMapping,
		fmt.Sprintf("no reasoning parameter mapping for model %q on provider %s", model, provider))
}

// ErrTransport creates a transport failure error.
func ErrTransport(message string, err error) *RunError {
	return NewRunError(ErrorKindTransportFailure, message).WithCause(err)
}

// ErrNoWebSearchEvidence creates a missing web search evidence error.
func ErrNoWebSearchEvidence(provider Provider, model string) *RunError {
	return NewRunError(ErrorKindNoWebSearchEvidence,
		fmt.Sprintf("%s/%s response shows no evidence of web search", provider, model))
}

// ErrNoReasoning creates a missing reasoning error.
func ErrNoReasoning(provider Provider, model string) *RunError {
	return NewRunError(ErrorKindNoReasoning,
		fmt.Sprintf("%s/%s response contains no reasoning", provider, model))
}

// ErrOutputWrite creates an output write failure error.
func ErrOutputWrite(path string, err error) *RunError {
	return NewRunError(ErrorKindOutputWriteFailure,
		fmt.Sprintf("failed to write %s", path)).WithCause(err)
}

// ErrGroundingUnavailable creates a grounding unavailable error.
func ErrGroundingUnavailable(provider Provider, model string) *RunError {
	return NewRunError(ErrorKindGroundingUnavailable,
		fmt.Sprintf("grounding is not available for %s/%s and ungrounded fallback is disabled", provider, model))
}
