package domain

import "errors"

// Sentinel errors surfaced by the guardrail and pipeline layers. Callers
// use errors.Is against these; GuardrailViolation additionally carries a
// human-readable reason for the error event payload.
var (
	ErrEmptyQuery    = errors.New("query cannot be empty")
	ErrQueryTooLong  = errors.New("query exceeds maximum length")
	ErrNotFound      = errors.New("not found")
	ErrRetriesBound  = errors.New("retries must not exceed the configured bound")
)

// GuardrailViolation is raised by the input or output guardrail checks.
// It is non-retryable: the turn terminates and the reason is surfaced to
// the caller as a structured error event.
type GuardrailViolation struct {
	Reason string
	Err    error
}

func (g *GuardrailViolation) Error() string {
	if g.Err != nil {
		return g.Reason + ": " + g.Err.Error()
	}
	return g.Reason
}

func (g *GuardrailViolation) Unwrap() error {
	return g.Err
}

func NewGuardrailViolation(reason string) error {
	return &GuardrailViolation{Reason: reason}
}

func WrapGuardrailViolation(reason string, err error) error {
	return &GuardrailViolation{Reason: reason, Err: err}
}
