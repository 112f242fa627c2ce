package lock

import (
	"os"
	"testing"

	"github.com/planforge/planforge/internal/errors"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir, "meal-planner")
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if _, err := os.Stat(l.Path()); err != nil {
		t.Fatalf("lockfile missing: %v", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() error: %v", err)
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Error("lockfile still present after release")
	}
	// Releasing twice is harmless.
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error: %v", err)
	}
}

func TestAcquire_ContentionAfterRetry(t *testing.T) {
	dir := t.TempDir()

	held, err := Acquire(dir, "meal-planner")
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer held.Release()

	_, err = Acquire(dir, "meal-planner")
	if !errors.IsLocked(err) {
		t.Fatalf("second Acquire() = %v, want lock contention", err)
	}
}

func TestAcquire_FreeAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(dir, "meal-planner")
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release() error: %v", err)
	}

	second, err := Acquire(dir, "meal-planner")
	if err != nil {
		t.Fatalf("re-Acquire() error: %v", err)
	}
	second.Release()
}
