// Package calyxerr defines the error taxonomy shared across Station Calyx
// components, per the propagation policy: only InvariantViolation is fatal
// to its component, and even then the supervisor restarts the component
// rather than the process group.
package calyxerr

import "fmt"

// ConfigError marks a missing or invalid configuration. Never retried.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError for the named field.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// TransientIOError marks a disk-full, rename-race, or similar condition
// that the caller should retry up to 3 times with 50-200ms backoff.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient io error (%s): %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// NewTransientIOError wraps err as a TransientIOError for the named op.
func NewTransientIOError(op string, err error) *TransientIOError {
	return &TransientIOError{Op: op, Err: err}
}

// PolicyDenied is reported with a reason; callers decide what to do next.
// It is a value, never raised past a component boundary as a panic.
type PolicyDenied struct {
	Reason string
}

func (e *PolicyDenied) Error() string {
	return fmt.Sprintf("policy denied: %s", e.Reason)
}

// ReviewerFailure marks a reviewer crash or timeout, treated as verdict=FAIL.
// The triage pipeline continues rather than treating this as fatal.
type ReviewerFailure struct {
	Reviewer string
	Err      error
}

func (e *ReviewerFailure) Error() string {
	return fmt.Sprintf("reviewer %q failed: %v", e.Reviewer, e.Err)
}

func (e *ReviewerFailure) Unwrap() error { return e.Err }

// ResourceExhausted marks capacity below the minimum required to dispatch.
// The scheduler defers; it never kills anything in response.
type ResourceExhausted struct {
	Resource string
	Have     float64
	Need     float64
}

func (e *ResourceExhausted) Error() string {
	return fmt.Sprintf("resource exhausted: %s have=%.3f need=%.3f", e.Resource, e.Have, e.Need)
}

// InvariantViolation marks unexpected internal state. The component that
// raises it enters status=error; its own heartbeat carries a stack-context
// message, and it is the supervisor's job to restart the component.
type InvariantViolation struct {
	Component string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Component, e.Detail)
}
