// Package qcore is the server-resident execution core of a distributed job
// queue: atomic job lifecycle transitions, priority dispatch, lease-based
// worker fencing, delayed/recurring scheduling, dependency chains, failure
// grouping, and per-queue statistics.
//
// The core never reads the clock itself — every operation takes `now` as a
// parameter — and never talks to a transport: callers (a command facade, an
// HTTP handler, a test) invoke the typed operations in the queue package
// directly.
package qcore

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories the core signals, per spec §7.
type Kind string

const (
	// InvalidArguments means a required argument was missing or ill-typed.
	InvalidArguments Kind = "InvalidArguments"
	// UnknownCommand means the command facade was given an unregistered name.
	UnknownCommand Kind = "UnknownCommand"
	// UnknownSchedule means a recurring job named a schedule type other
	// than "interval".
	UnknownSchedule Kind = "UnknownSchedule"
	// JobNotFound means the operation requires an existing job record.
	JobNotFound Kind = "JobNotFound"
	// JobNotRunning means a fencing operation (complete, heartbeat, fail,
	// retry) was attempted against a job not in the running state.
	JobNotRunning Kind = "JobNotRunning"
	// WorkerMismatch means the caller's worker does not hold the lease.
	WorkerMismatch Kind = "WorkerMismatch"
	// QueueMismatch means the caller's queue does not match the job's.
	QueueMismatch Kind = "QueueMismatch"
	// InvalidTransition means the requested state change is not legal from
	// the job's current state (e.g. cancel of a running job).
	InvalidTransition Kind = "InvalidTransition"
	// RecurInvalidInterval means a recurring job's interval was not > 0.
	RecurInvalidInterval Kind = "RecurInvalidInterval"
	// Conflict means mutually exclusive arguments were supplied together
	// (e.g. delay > 0 with non-empty depends).
	Conflict Kind = "Conflict"
)

// Error is the typed error every core operation returns on failure. It
// carries the offending parameter name so callers can surface a precise,
// human-readable message, per spec §7.
type Error struct {
	Kind    Kind
	Param   string
	Message string
}

func (e *Error) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("qcore: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("qcore: %s: %s (%s)", e.Kind, e.Message, e.Param)
}

// Is supports errors.Is comparisons against the Kind-only Err* sentinels
// declared below, so call sites can write errors.Is(err, qcore.ErrJobNotFound).
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

func newErr(kind Kind, param, message string) error {
	return &Error{Kind: kind, Param: param, Message: message}
}

// NewError builds a *qcore.Error. Exported so sibling packages (queue,
// command, recur, depend) can raise errors with the same shape without
// importing a duplicate type.
func NewError(kind Kind, param, message string) error {
	return newErr(kind, param, message)
}

// KindOf extracts the Kind from err, if any, along with ok=true.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Sentinels for errors.Is against a bare Kind, independent of message/param.
var (
	ErrJobNotFound       = &Error{Kind: JobNotFound}
	ErrJobNotRunning     = &Error{Kind: JobNotRunning}
	ErrWorkerMismatch    = &Error{Kind: WorkerMismatch}
	ErrQueueMismatch     = &Error{Kind: QueueMismatch}
	ErrInvalidArguments  = &Error{Kind: InvalidArguments}
	ErrUnknownCommand    = &Error{Kind: UnknownCommand}
	ErrUnknownSchedule   = &Error{Kind: UnknownSchedule}
	ErrInvalidTransition = &Error{Kind: InvalidTransition}
	ErrConflict          = &Error{Kind: Conflict}
)
