package exitcode

import (
	"os"

	"github.com/planforge/planforge/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// MissingArtifact indicates a required upstream artifact was absent,
	// or a general error condition
	MissingArtifact = 1

	// ValidationFailed indicates a validation gate returned a FAIL verdict
	ValidationFailed = 2

	// LockContention indicates the per-idea lock could not be acquired after retry
	LockContention = 3
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to its exit code via the error taxonomy
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch {
	case errors.IsLocked(err):
		return LockContention
	case errors.IsValidationFailed(err):
		return ValidationFailed
	default:
		return MissingArtifact
	}
}

// Description returns a human-readable description of an exit code
func Description(code int) string {
	switch code {
	case Success:
		return "Success"
	case MissingArtifact:
		return "Missing required upstream artifact or general error"
	case ValidationFailed:
		return "Validation gate returned FAIL"
	case LockContention:
		return "Lock contention after retry"
	default:
		return "Unknown error"
	}
}
