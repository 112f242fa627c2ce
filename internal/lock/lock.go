// Package lock provides the per-idea advisory lock that serializes
// mutating operations. Readers never take it; the scheduler and the
// lifecycle controller hold it for the duration of one mutating call.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/planforge/planforge/internal/errors"
)

// Lock is a held advisory lock backed by a lockfile. Creation is
// exclusive: a second Acquire on the same path fails until Release.
type Lock struct {
	path string
}

// Acquire takes the idea's lock, retrying once after a short pause
// before reporting contention. The lockfile records the holder's PID
// and acquisition time for diagnostics.
func Acquire(ideaDir, ideaID string) (*Lock, error) {
	path := filepath.Join(ideaDir, ".lock")
	if err := os.MkdirAll(ideaDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDirectoryFailed,
			fmt.Sprintf("cannot create idea directory %s", ideaDir), err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "pid=%d\nacquired=%s\n",
				os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileWriteFailed,
				fmt.Sprintf("cannot create lockfile %s", path), err)
		}
		if attempt == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}

	lockErr := errors.NewLockContentionError(ideaID).
		WithSuggestion(fmt.Sprintf("if no other process is running, remove the stale lockfile %s", path))
	if pid, ok := holderPID(path); ok {
		lockErr = lockErr.WithSuggestion(fmt.Sprintf("lock is held by pid %d", pid))
	}
	return nil, lockErr
}

// Release removes the lockfile. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("cannot remove lockfile %s", l.path), err)
	}
	return nil
}

// Path returns the lockfile path.
func (l *Lock) Path() string { return l.path }

func holderPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "pid="); ok {
			pid, err := strconv.Atoi(rest)
			return pid, err == nil
		}
	}
	return 0, false
}
