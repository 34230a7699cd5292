package pkg

import "fmt"

// ValidationError reports malformed or out-of-range input.  Inputs are
// never silently coerced into range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced entity missing from the store.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// RemoteServiceError wraps a failure from an external collaborator (graph
// store, memory store, or model API).
type RemoteServiceError struct {
	Service string
	Err     error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// SafetyBlockError signals that an action was disallowed by the safety
// evaluator.  It is an expected, recoverable outcome carrying the verdict
// for the caller, not an internal failure.
type SafetyBlockError struct {
	Verdict SafetyVerdict
}

func (e *SafetyBlockError) Error() string {
	if len(e.Verdict.Conflicts) > 0 {
		return "action blocked by safety check: " + e.Verdict.Conflicts[0].Description
	}
	return "action blocked by safety check"
}
