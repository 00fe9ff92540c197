package types

import (
	"fmt"
	"strings"
)

// PrerequisiteError means the run cannot start: no credentials, or the
// identity store is unreachable.
type PrerequisiteError struct {
	Check string
	Err   error
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("prerequisite check %q failed: %v", e.Check, e.Err)
}

func (e *PrerequisiteError) Unwrap() error { return e.Err }

// FormatError means the input file is structurally unusable.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid CSV %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid CSV %s: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// RowValidationError rejects a single row before any remote call.
type RowValidationError struct {
	Line    int
	Missing []string
	Reason  string
}

func (e *RowValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("row %d: missing fields: [%s]", e.Line, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// RemoteCallError wraps a failure returned by the directory or entitlement
// service. Raw is the unmodified error text surfaced to the operator.
type RemoteCallError struct {
	Service   string
	Operation string
	Code      string
	Message   string
	Raw       string
	Err       error
}

func (e *RemoteCallError) Error() string {
	return e.Raw
}

func (e *RemoteCallError) Unwrap() error { return e.Err }
