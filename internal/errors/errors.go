package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Artifact errors (ARTIFACT-001 to ARTIFACT-099)
	ErrCodeArtifactNotFound ErrorCode = "ARTIFACT-001"
	ErrCodeArtifactRead     ErrorCode = "ARTIFACT-002"
	ErrCodeArtifactWrite    ErrorCode = "ARTIFACT-003"
	ErrCodeArtifactParse    ErrorCode = "ARTIFACT-004"

	// Graph errors (GRAPH-001 to GRAPH-099)
	ErrCodeGraphCycle       ErrorCode = "GRAPH-001"
	ErrCodeGraphUnknownTask ErrorCode = "GRAPH-002"

	// Scheduling errors (SCHED-001 to SCHED-099)
	ErrCodeSchedDuplicateAssignment ErrorCode = "SCHED-001"
	ErrCodeSchedIndexConflict       ErrorCode = "SCHED-002"
	ErrCodeSchedNoEligibleTasks     ErrorCode = "SCHED-003"

	// Lifecycle errors (LIFECYCLE-001 to LIFECYCLE-099)
	ErrCodeLifecycleTransition   ErrorCode = "LIFECYCLE-001"
	ErrCodeLifecycleVerification ErrorCode = "LIFECYCLE-002"
	ErrCodeLifecycleTimeout      ErrorCode = "LIFECYCLE-003"
	ErrCodeLifecycleBusy         ErrorCode = "LIFECYCLE-004"

	// Validation errors (VALIDATE-001 to VALIDATE-099)
	ErrCodeValidationFailed ErrorCode = "VALIDATE-001"

	// Lock errors (LOCK-001 to LOCK-099)
	ErrCodeLockContention ErrorCode = "LOCK-001"

	// Index errors (INDEX-001 to INDEX-099)
	ErrCodeIndexOpen  ErrorCode = "INDEX-001"
	ErrCodeIndexQuery ErrorCode = "INDEX-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
)

// PipelineError represents an enhanced error with code, suggestions, and cause
type PipelineError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// New creates a new PipelineError
func New(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new PipelineError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *PipelineError) WithSuggestion(suggestion string) *PipelineError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *PipelineError) WithSuggestions(suggestions ...string) *PipelineError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// Code returns the error code of err if it is a PipelineError
func Code(err error) (ErrorCode, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

func hasCode(err error, codes ...ErrorCode) bool {
	code, ok := Code(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a missing required upstream artifact
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeArtifactNotFound, ErrCodeFileNotFound)
}

// IsParse reports whether err is a malformed structured block
func IsParse(err error) bool {
	return hasCode(err, ErrCodeArtifactParse)
}

// IsCycle reports whether err is an unschedulable dependency cycle
func IsCycle(err error) bool {
	return hasCode(err, ErrCodeGraphCycle)
}

// IsDuplicateAssignment reports whether err is a task already assigned to a work package
func IsDuplicateAssignment(err error) bool {
	return hasCode(err, ErrCodeSchedDuplicateAssignment)
}

// IsVerification reports whether err is a failed external verification
func IsVerification(err error) bool {
	return hasCode(err, ErrCodeLifecycleVerification)
}

// IsTimeout reports whether err is a verification timeout
func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeLifecycleTimeout)
}

// IsLocked reports whether err is advisory lock contention
func IsLocked(err error) bool {
	return hasCode(err, ErrCodeLockContention)
}

// IsValidationFailed reports whether err is a validation gate FAIL verdict
func IsValidationFailed(err error) bool {
	return hasCode(err, ErrCodeValidationFailed)
}

// Common error constructors for frequently used errors

// NewArtifactNotFoundError creates a missing upstream artifact error.
// Every stage stops on this rather than guessing at content.
func NewArtifactNotFoundError(ideaID, artifactType, expectedPath string) *PipelineError {
	return New(ErrCodeArtifactNotFound,
		fmt.Sprintf("required %s artifact for idea %q not found", artifactType, ideaID)).
		WithSuggestion(fmt.Sprintf("Expected latest snapshot at: %s", expectedPath)).
		WithSuggestion(fmt.Sprintf("Run the upstream stage that produces the %s artifact first", artifactType))
}

// NewParseError creates a malformed structured block error
func NewParseError(path string, cause error) *PipelineError {
	return Wrap(ErrCodeArtifactParse, fmt.Sprintf("malformed front-matter block in %s", path), cause).
		WithSuggestion("Check the YAML front matter between the --- delimiters").
		WithSuggestion("The rendered body is derived; only the front matter is parsed")
}

// NewCycleError creates an unschedulable dependency error
func NewCycleError(cyclePath []string) *PipelineError {
	return New(ErrCodeGraphCycle,
		fmt.Sprintf("circular dependency detected: %s", strings.Join(cyclePath, " -> "))).
		WithSuggestion("Remove or reverse one dependency edge in the cycle").
		WithSuggestion("Tasks in the cycle are skipped; unaffected tasks remain schedulable")
}

// NewDuplicateAssignmentError creates a task double-assignment error
func NewDuplicateAssignmentError(taskID, wpID string) *PipelineError {
	return New(ErrCodeSchedDuplicateAssignment,
		fmt.Sprintf("task %s is already assigned to work package %s", taskID, wpID)).
		WithSuggestion("A task may belong to at most one work package across all statuses")
}

// NewVerificationError creates a failed verification error
func NewVerificationError(wpID, command string, cause error) *PipelineError {
	return Wrap(ErrCodeLifecycleVerification,
		fmt.Sprintf("verification command failed for %s: %s", wpID, command), cause).
		WithSuggestion("Fix the failures reported by the command, then resume the work package").
		WithSuggestion("The work package stays Blocked until verification passes")
}

// NewTimeoutError creates a verification timeout error
func NewTimeoutError(wpID, command string, timeout string) *PipelineError {
	return New(ErrCodeLifecycleTimeout,
		fmt.Sprintf("verification command for %s exceeded %s: %s", wpID, timeout, command)).
		WithSuggestion("Increase verify_timeout in .planforge/config.yaml if the check legitimately needs longer").
		WithSuggestion("Resume the work package once the underlying slowness is addressed")
}

// NewLockContentionError creates an advisory lock contention error
func NewLockContentionError(ideaID string) *PipelineError {
	return New(ErrCodeLockContention,
		fmt.Sprintf("idea %q is locked by another operation", ideaID)).
		WithSuggestion("Wait for the in-flight operation to finish and retry").
		WithSuggestion("If the holder crashed, remove the stale .lock file under the idea directory")
}

// NewTransitionError creates an invalid state transition error
func NewTransitionError(wpID, from, to string) *PipelineError {
	return New(ErrCodeLifecycleTransition,
		fmt.Sprintf("work package %s cannot transition %s -> %s", wpID, from, to)).
		WithSuggestion("Every path to Done or Blocked passes through InProgress")
}
