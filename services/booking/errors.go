package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrWizardClosed     = errors.New("wizard is no longer editable")
	ErrStepNotReachable = errors.New("step is beyond the last validated step")
	ErrUnknownStep      = errors.New("step is not part of the current path")
	ErrSessionNotFound  = errors.New("wizard session not found or expired")
	ErrNotSessionOwner  = errors.New("wizard session belongs to another owner")
)

// ValidationError carries per-field messages; it blocks a step advance or a submit.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type SubmissionErrorKind string

const (
	SubmissionValidation SubmissionErrorKind = "validation"
	SubmissionConflict   SubmissionErrorKind = "conflict"
	SubmissionTransient  SubmissionErrorKind = "transient"
)

// SubmissionError is returned when a frozen draft could not become a booking request.
// Only transient errors are worth retrying as-is.
type SubmissionError struct {
	Kind    SubmissionErrorKind
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same draft may be submitted again unchanged.
func (e *SubmissionError) Retryable() bool {
	return e.Kind == SubmissionTransient
}

func newSubmissionError(kind SubmissionErrorKind, msg string, err error) *SubmissionError {
	return &SubmissionError{Kind: kind, Message: msg, Err: err}
}
