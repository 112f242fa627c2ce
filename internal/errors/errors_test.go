package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPipelineError_Error(t *testing.T) {
	err := New(ErrCodeArtifactNotFound, "epics artifact missing").
		WithSuggestion("run extract-epics first")

	msg := err.Error()
	if !strings.Contains(msg, "[ARTIFACT-001]") {
		t.Errorf("error message should contain code, got %q", msg)
	}
	if !strings.Contains(msg, "epics artifact missing") {
		t.Errorf("error message should contain message, got %q", msg)
	}
	if !strings.Contains(msg, "run extract-epics first") {
		t.Errorf("error message should contain suggestion, got %q", msg)
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(ErrCodeArtifactParse, "bad front matter", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "underlying") {
		t.Errorf("error message should include cause, got %q", err.Error())
	}
}

func TestCodePredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{name: "not found", err: NewArtifactNotFoundError("auth", "epics", "/tmp/x"), pred: IsNotFound, want: true},
		{name: "parse", err: NewParseError("tasks.md", fmt.Errorf("yaml")), pred: IsParse, want: true},
		{name: "cycle", err: NewCycleError([]string{"TASK-001", "TASK-002", "TASK-001"}), pred: IsCycle, want: true},
		{name: "duplicate", err: NewDuplicateAssignmentError("TASK-001", "WP-0001"), pred: IsDuplicateAssignment, want: true},
		{name: "verification", err: NewVerificationError("WP-0001", "go test", fmt.Errorf("exit 1")), pred: IsVerification, want: true},
		{name: "timeout", err: NewTimeoutError("WP-0001", "go test", "5m"), pred: IsTimeout, want: true},
		{name: "locked", err: NewLockContentionError("auth"), pred: IsLocked, want: true},
		{name: "wrapped once", err: fmt.Errorf("queue-work: %w", NewLockContentionError("auth")), pred: IsLocked, want: true},
		{name: "plain error", err: fmt.Errorf("boom"), pred: IsNotFound, want: false},
		{name: "wrong code", err: NewLockContentionError("auth"), pred: IsCycle, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v (err: %v)", got, tt.want, tt.err)
			}
		})
	}
}

func TestCode(t *testing.T) {
	code, ok := Code(NewCycleError([]string{"TASK-001"}))
	if !ok || code != ErrCodeGraphCycle {
		t.Errorf("Code() = %v, %v", code, ok)
	}
	if _, ok := Code(fmt.Errorf("plain")); ok {
		t.Error("Code() should not match plain errors")
	}
}
