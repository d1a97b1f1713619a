package domain

import (
	"errors"
	"fmt"
)

// Taxonomy codes surfaced to callers. Every error leaving the engine maps to
// one of these; raw adapter or SDK error text never crosses the boundary.
const (
	CodePlanEmpty        = "plan-empty"
	CodeInvalidField     = "invalid-field"
	CodeRetrievalTimeout = "retrieval-timeout"
	CodeStaleIndexEntry  = "stale-index-entry"
	CodeNoEvidence       = "no-evidence"
	CodeModelUnavailable = "model-unavailable"
	CodeNotGrounded      = "insufficient-grounded-evidence"
	CodeInternal         = "internal"
)

// Sentinel errors for the engine taxonomy.
var (
	ErrPlanEmpty        = errors.New("question yields no usable query")
	ErrInvalidField     = errors.New("unknown attribute")
	ErrRetrievalTimeout = errors.New("retrieval deadline exceeded")
	ErrNoEvidence       = errors.New("no evidence retrieved")
	ErrModelUnavailable = errors.New("language model unavailable")
	ErrNotGrounded      = errors.New("answer not grounded in evidence")
)

// Startup configuration errors. These are surfaced once, before serving,
// never per request.
var (
	ErrMetricMismatch    = errors.New("similarity metric does not match index")
	ErrDimensionMismatch = errors.New("embedding dimension does not match index")
)

// FieldError wraps ErrInvalidField with the offending attribute name.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidField, e.Field)
}

func (e *FieldError) Unwrap() error { return ErrInvalidField }

// NewFieldError creates a FieldError for the given attribute reference.
func NewFieldError(field string) *FieldError {
	return &FieldError{Field: field}
}

// Code maps an error to its taxonomy code. Unknown errors map to
// CodeInternal so nothing unclassified leaks to callers.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPlanEmpty):
		return CodePlanEmpty
	case errors.Is(err, ErrInvalidField):
		return CodeInvalidField
	case errors.Is(err, ErrRetrievalTimeout):
		return CodeRetrievalTimeout
	case errors.Is(err, ErrNoEvidence):
		return CodeNoEvidence
	case errors.Is(err, ErrModelUnavailable):
		return CodeModelUnavailable
	case errors.Is(err, ErrNotGrounded):
		return CodeNotGrounded
	default:
		return CodeInternal
	}
}
