package artifact

import (
	"testing"
	"time"

	"github.com/planforge/planforge/internal/domain"
	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/provenance"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(t.TempDir(), nil)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_GetLatestMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetLatest("auth-service", TypeEpics)
	if err == nil {
		t.Fatal("GetLatest() expected error for missing artifact")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestStore_ReadYourWrites(t *testing.T) {
	store := newTestStore(t)
	doc := sampleTasksDoc()

	if err := store.PutLatest("auth-service", TypeTasks, doc); err != nil {
		t.Fatalf("PutLatest() error: %v", err)
	}

	got, err := store.GetLatest("auth-service", TypeTasks)
	if err != nil {
		t.Fatalf("GetLatest() after PutLatest() error: %v", err)
	}
	if len(got.Tasks) != len(doc.Tasks) {
		t.Errorf("read-your-writes violated: got %d tasks, want %d", len(got.Tasks), len(doc.Tasks))
	}

	// Overwrite and read again.
	doc.Tasks = doc.Tasks[:1]
	if err := store.PutLatest("auth-service", TypeTasks, doc); err != nil {
		t.Fatalf("second PutLatest() error: %v", err)
	}
	got, err = store.GetLatest("auth-service", TypeTasks)
	if err != nil {
		t.Fatalf("GetLatest() error: %v", err)
	}
	if len(got.Tasks) != 1 {
		t.Errorf("latest pointer not overwritten: got %d tasks", len(got.Tasks))
	}
}

func TestStore_RunHistoryImmutable(t *testing.T) {
	store := newTestStore(t)
	doc := sampleTasksDoc()

	if err := store.PutRun("auth-service", TypeTasks, "run-1", doc); err != nil {
		t.Fatalf("PutRun() error: %v", err)
	}
	if err := store.PutRun("auth-service", TypeTasks, "run-1", doc); err == nil {
		t.Error("PutRun() should refuse to rewrite an existing run")
	}
	if err := store.PutRun("auth-service", TypeTasks, "run-2", doc); err != nil {
		t.Errorf("PutRun() with a new run ID should succeed: %v", err)
	}

	runs, err := store.ListRuns("auth-service")
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("len(runs) = %d, want 2", len(runs))
	}
}

func TestStore_PutEmitsProvenance(t *testing.T) {
	store := newTestStore(t)
	doc := sampleTasksDoc()

	if err := store.PutLatest("auth-service", TypeTasks, doc); err != nil {
		t.Fatalf("PutLatest() error: %v", err)
	}
	if err := store.PutRun("auth-service", TypeTasks, "run-1", doc); err != nil {
		t.Fatalf("PutRun() error: %v", err)
	}

	eventLog, err := store.EventLog("auth-service")
	if err != nil {
		t.Fatalf("EventLog() error: %v", err)
	}
	events, err := eventLog.Events()
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	ops := map[string]bool{}
	for _, ev := range events {
		if ev.Actor != "artifact-store" {
			t.Errorf("actor = %s", ev.Actor)
		}
		if ev.Status != provenance.StatusSuccess {
			t.Errorf("status = %s", ev.Status)
		}
		ops[ev.Operation] = true
	}
	if !ops["put-latest"] || !ops["put-run"] {
		t.Errorf("operations recorded: %v", ops)
	}
}

func TestStore_RejectsInvalidDocument(t *testing.T) {
	store := newTestStore(t)
	doc := sampleTasksDoc()
	doc.Tasks[0].Estimate = domain.Estimate("XL")

	if err := store.PutLatest("auth-service", TypeTasks, doc); err == nil {
		t.Error("PutLatest() should reject an invalid document")
	}
}

func TestStore_PutRunFileImmutable(t *testing.T) {
	store := newTestStore(t)

	if err := store.PutRunFile("auth-service", "r1", "validation-epics.md", []byte("# report")); err != nil {
		t.Fatalf("PutRunFile() error: %v", err)
	}
	err := store.PutRunFile("auth-service", "r1", "validation-epics.md", []byte("# rewritten"))
	if err == nil {
		t.Fatal("PutRunFile() rewrote an existing run file")
	}

	events, err := store.EventLog("auth-service")
	if err != nil {
		t.Fatalf("EventLog() error: %v", err)
	}
	all, err := events.Events()
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	found := false
	for _, e := range all {
		if e.Operation == "put-run-file" {
			found = true
		}
	}
	if !found {
		t.Error("no put-run-file event recorded")
	}
}

func TestStore_HashLatest(t *testing.T) {
	store := newTestStore(t)
	doc := sampleTasksDoc()

	if err := store.PutLatest("auth-service", TypeTasks, doc); err != nil {
		t.Fatalf("PutLatest() error: %v", err)
	}
	h1, err := store.HashLatest("auth-service", TypeTasks)
	if err != nil {
		t.Fatalf("HashLatest() error: %v", err)
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}

	doc.GeneratedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := store.PutLatest("auth-service", TypeTasks, doc); err != nil {
		t.Fatalf("PutLatest() error: %v", err)
	}
	h2, err := store.HashLatest("auth-service", TypeTasks)
	if err != nil {
		t.Fatalf("HashLatest() error: %v", err)
	}
	if h1 == h2 {
		t.Error("hash should change when content changes")
	}
}
