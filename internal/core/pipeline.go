package core

import (
	"errors"
	"fmt"
)

// Stage names a step of the patch pipeline. A run moves strictly forward
// through these stages; any stage may transition to a terminal failure.
type Stage string

const (
	StageReceived   Stage = "received"
	StageAuthorized Stage = "authorized"
	StageResolved   Stage = "resolved"
	StageValidated  Stage = "validated"
	StageApplied    Stage = "applied"
	StageReported   Stage = "reported"
)

// FailureKind classifies terminal pipeline failures. Each kind maps to a
// distinct process exit code so CI callers can tell them apart.
type FailureKind string

const (
	FailureAuthDenied   FailureKind = "auth_denied"
	FailureResolution   FailureKind = "resolution_failed"
	FailureValidation   FailureKind = "validation_failed"
	FailureApply        FailureKind = "apply_failed"
	FailurePushConflict FailureKind = "push_conflict"
	FailureReport       FailureKind = "report_failed"
)

// ExitCode returns the process exit code for this failure kind.
func (k FailureKind) ExitCode() int {
	switch k {
	case FailureAuthDenied:
		return 2
	case FailureResolution:
		return 3
	case FailureValidation:
		return 4
	case FailureApply:
		return 5
	case FailurePushConflict:
		return 6
	case FailureReport:
		// Report failures are non-fatal; the commit, if any, already landed.
		return 0
	default:
		return 1
	}
}

// PipelineError is a terminal, typed pipeline failure. It records the stage
// that failed and a human-readable reason suitable for posting back to the
// triggering conversation.
type PipelineError struct {
	Kind   FailureKind
	Stage  Stage
	Reason string
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at stage %s: %s: %v", e.Kind, e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s at stage %s: %s", e.Kind, e.Stage, e.Reason)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError builds a typed failure for the given stage.
func NewPipelineError(kind FailureKind, stage Stage, reason string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Reason: reason, Err: err}
}

// AsPipelineError extracts a PipelineError from an error chain, if present.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ExitCodeFor maps any pipeline error to its process exit code. A nil error
// is success, an untyped error maps to the generic failure code 1.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if pe, ok := AsPipelineError(err); ok {
		return pe.Kind.ExitCode()
	}
	return 1
}
