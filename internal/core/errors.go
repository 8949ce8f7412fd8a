package core

import (
	"errors"
	"fmt"
)

// ErrEmptyEventSet is returned by analysis entry points when the request
// carries no events at all. Callers treat it as a signal to produce a
// minimal low-risk result rather than as a failure.
var ErrEmptyEventSet = errors.New("event set is empty")

// MalformedEventError describes a single input record that could not be
// normalized. Ingestion skips the record and keeps a count; it never
// aborts the batch.
type MalformedEventError struct {
	Line   int
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event at line %d: %s", e.Line, e.Reason)
}

// PatternConfigError describes an invalid pattern definition detected at
// load time. Pattern loading is all-or-nothing: one bad definition fails
// the whole load.
type PatternConfigError struct {
	Pattern string
	Reason  string
}

func (e *PatternConfigError) Error() string {
	if e.Pattern == "" {
		return fmt.Sprintf("invalid pattern configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid pattern %q: %s", e.Pattern, e.Reason)
}

// ExternalCallError wraps a failed or timed-out call to an external
// collaborator (retrieval index, generation backend). Orchestration marks
// the owning stage degraded and continues; it never aborts the request.
type ExternalCallError struct {
	Collaborator string
	Timeout      bool
	Err          error
}

func (e *ExternalCallError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s call timed out: %v", e.Collaborator, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Collaborator, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }
