package exitcode

import (
	"fmt"
	"testing"

	"github.com/planforge/planforge/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "lock contention", err: errors.NewLockContentionError("auth"), want: LockContention},
		{
			name: "validation failed",
			err:  errors.New(errors.ErrCodeValidationFailed, "2 critical findings"),
			want: ValidationFailed,
		},
		{name: "missing artifact", err: errors.NewArtifactNotFoundError("auth", "epics", "/x"), want: MissingArtifact},
		{name: "plain error", err: fmt.Errorf("boom"), want: MissingArtifact},
		{
			name: "wrapped lock contention",
			err:  fmt.Errorf("queue-work: %w", errors.NewLockContentionError("auth")),
			want: LockContention,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.want {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDescription(t *testing.T) {
	for code := Success; code <= LockContention; code++ {
		if Description(code) == "Unknown error" {
			t.Errorf("Description(%d) should be known", code)
		}
	}
	if Description(42) != "Unknown error" {
		t.Error("Description(42) should be unknown")
	}
}
