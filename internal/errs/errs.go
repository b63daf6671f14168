// Package errs defines the closed set of error kinds the core reports.
// Every subsystem boundary wraps underlying failures into one of these
// kinds with fmt.Errorf("...: %w", err) so callers can errors.As into the
// kind they care about without depending on subsystem internals.
package errs

import "fmt"

// MalformedFileError is a parse failure for a single note file. The
// scanner absorbs this into a warning and continues; it never aborts a scan.
type MalformedFileError struct {
	Path   string
	Detail string
}

func (e *MalformedFileError) Error() string {
	return fmt.Sprintf("malformed file %s: %s", e.Path, e.Detail)
}

// IoError wraps a filesystem failure. The writer's backup-then-write
// contract means this always surfaces before the original file is touched.
type IoError struct {
	Path   string
	Detail string
	Err    error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error %s: %s", e.Path, e.Detail)
}

func (e *IoError) Unwrap() error { return e.Err }

// ServiceUnavailableError means a transport-level failure talking to an
// external collaborator (semantic search, chat).
type ServiceUnavailableError struct {
	Service string
	Err     error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("service %s unavailable: %v", e.Service, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// ServiceTimeoutError means a call to an external collaborator exceeded its
// configured deadline.
type ServiceTimeoutError struct {
	Service string
}

func (e *ServiceTimeoutError) Error() string {
	return fmt.Sprintf("service %s timed out", e.Service)
}

// ServiceError means the external collaborator replied with an explicit
// error (non-2xx HTTP status, or a JSON-RPC error object).
type ServiceError struct {
	Service string
	Code    int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s error %d: %s", e.Service, e.Code, e.Message)
}

// StaleProposalError means the stored diff's pre-image context no longer
// matches the current file content unambiguously.
type StaleProposalError struct {
	ProposalID string
}

func (e *StaleProposalError) Error() string {
	return fmt.Sprintf("proposal %s is stale", e.ProposalID)
}

// DuplicateProposalError means a proposal-class action attempted to create
// a second Pending proposal for the same (note_id, action_name) pair.
type DuplicateProposalError struct {
	NoteID string
	Action string
}

func (e *DuplicateProposalError) Error() string {
	return fmt.Sprintf("duplicate proposal for note %s action %s", e.NoteID, e.Action)
}

// PlanDepthExhaustedError is a planner-internal signal, never surfaced to a
// caller as a failure: it downgrades to "no plan for this goal".
type PlanDepthExhaustedError struct {
	Goal string
}

func (e *PlanDepthExhaustedError) Error() string {
	return fmt.Sprintf("plan depth exhausted for goal %s", e.Goal)
}

// PreconditionFailedError is recorded per-action by the executor; it never
// halts plan execution.
type PreconditionFailedError struct {
	Action    string
	Predicate string
}

func (e *PreconditionFailedError) Error() string {
	return fmt.Sprintf("action %s precondition failed: %s", e.Action, e.Predicate)
}
