package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/errors"
)

// DefaultVerifyTimeout bounds a single verification command.
const DefaultVerifyTimeout = 10 * time.Minute

// Verifier runs a work package's verification commands. Completion is
// gated on it: a package is never Done unless its verifier passed.
type Verifier interface {
	Verify(ctx context.Context, wp *artifact.WorkPackage) error
}

// CommandVerifier executes each verify command through the shell in
// Dir, one at a time, each under Timeout. The first failure stops the
// run.
type CommandVerifier struct {
	// Dir is the working directory for the commands. Empty means the
	// current directory.
	Dir string
	// Timeout per command. Zero means DefaultVerifyTimeout.
	Timeout time.Duration
}

// Verify implements Verifier.
func (v *CommandVerifier) Verify(ctx context.Context, wp *artifact.WorkPackage) error {
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}

	for _, command := range wp.VerifyCommands {
		if err := v.runOne(ctx, wp, command, timeout); err != nil {
			return err
		}
	}
	return nil
}

func (v *CommandVerifier) runOne(ctx context.Context, wp *artifact.WorkPackage, command string, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = v.Dir

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	// Killing the shell is not enough: a child holding the output pipe
	// keeps Run blocked past the deadline. WaitDelay forces the pipes
	// closed shortly after cancellation so a wedged child cannot hang
	// the run.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return errors.NewTimeoutError(wp.ID.String(), command, timeout.String())
	}
	return errors.NewVerificationError(wp.ID.String(), command,
		fmt.Errorf("%w: %s", err, tail(output.String(), 512)))
}

// tail returns the last n bytes of s, trimmed, so blocker records stay
// readable.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
