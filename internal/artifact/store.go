package artifact

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/planforge/planforge/internal/errors"
	"github.com/planforge/planforge/internal/log"
	"github.com/planforge/planforge/internal/provenance"
)

// Store persists versioned artifacts per idea: an overwritable latest
// snapshot per type, an immutable append-only run history, an event
// log, and a rolling manifest. GetLatest after PutLatest always returns
// the just-written document.
type Store struct {
	root   string
	logger *log.Logger

	mu   sync.Mutex
	logs map[string]*provenance.Log
}

// NewStore creates a store rooted at the given directory.
func NewStore(root string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Store{
		root:   root,
		logger: logger,
		logs:   make(map[string]*provenance.Log),
	}
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// IdeaDir returns the namespace directory for an idea.
func (s *Store) IdeaDir(ideaID string) string {
	return filepath.Join(s.root, "ideas", ideaID)
}

// LatestPath returns the path of the latest snapshot for an artifact type.
func (s *Store) LatestPath(ideaID string, t Type) string {
	return filepath.Join(s.IdeaDir(ideaID), "latest", string(t)+".md")
}

// RunPath returns the path of one run's snapshot for an artifact type.
func (s *Store) RunPath(ideaID string, runID string, t Type) string {
	return filepath.Join(s.IdeaDir(ideaID), "runs", runID, string(t)+".md")
}

// EventLog returns the idea's append-only provenance log, opening it on
// first use.
func (s *Store) EventLog(ideaID string) (*provenance.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.logs[ideaID]; ok {
		return l, nil
	}
	l, err := provenance.Open(filepath.Join(s.IdeaDir(ideaID), "events.jsonl"))
	if err != nil {
		return nil, err
	}
	s.logs[ideaID] = l
	return l, nil
}

// Manifest returns the idea's rolling manifest writer.
func (s *Store) Manifest(ideaID string) *provenance.Manifest {
	return provenance.NewManifest(filepath.Join(s.IdeaDir(ideaID), "manifest.md"))
}

// GetLatest loads the latest snapshot of an artifact type. It fails
// with a not-found error when the type has never been put; callers stop
// rather than guess at upstream content.
func (s *Store) GetLatest(ideaID string, t Type) (*Document, error) {
	path := s.LatestPath(ideaID, t)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewArtifactNotFoundError(ideaID, string(t), path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read %s artifact", t), err)
	}
	return Decode(data, path)
}

// PutRun appends one run snapshot to the immutable history. A run file
// is never rewritten once present.
func (s *Store) PutRun(ideaID string, t Type, runID string, doc *Document) error {
	path := s.RunPath(ideaID, runID, t)
	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.ErrCodeArtifactWrite,
			fmt.Sprintf("run %s already holds a %s artifact; run history is immutable", runID, t))
	}

	doc.RunID = runID
	hash, size, err := s.write(path, doc)
	if err != nil {
		return err
	}

	s.appendEvent(ideaID, provenance.NewEvent("artifact-store", "put-run").
		WithInputs(ideaID, string(t)).
		WithOutputs(s.rel(path), "blake3:"+hash).
		WithCount("bytes", size))
	return nil
}

// PutRunFile adds an auxiliary file, such as a validation report, to a
// run's immutable history. An existing file is never rewritten.
func (s *Store) PutRunFile(ideaID, runID, name string, data []byte) error {
	path := filepath.Join(s.IdeaDir(ideaID), "runs", runID, name)
	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.ErrCodeArtifactWrite,
			fmt.Sprintf("run %s already holds %s; run history is immutable", runID, name))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "create run directory", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write run file", err)
	}
	s.appendEvent(ideaID, provenance.NewEvent("artifact-store", "put-run-file").
		WithInputs(ideaID, name).
		WithOutputs(s.rel(path), "blake3:"+hashBytes(data)).
		WithCount("bytes", len(data)))
	return nil
}

// PutLatest overwrites the latest snapshot pointer. Prior runs are
// untouched.
func (s *Store) PutLatest(ideaID string, t Type, doc *Document) error {
	path := s.LatestPath(ideaID, t)
	hash, size, err := s.write(path, doc)
	if err != nil {
		return err
	}

	s.appendEvent(ideaID, provenance.NewEvent("artifact-store", "put-latest").
		WithInputs(ideaID, string(t)).
		WithOutputs(s.rel(path), "blake3:"+hash).
		WithCount("bytes", size))
	return nil
}

// HashLatest returns the blake3 content hash of the latest snapshot.
// Used for drift detection between a work package's plan_doc_ref and
// the tasks document it was cut from.
func (s *Store) HashLatest(ideaID string, t Type) (string, error) {
	data, err := os.ReadFile(s.LatestPath(ideaID, t))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewArtifactNotFoundError(ideaID, string(t), s.LatestPath(ideaID, t))
		}
		return "", errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("hash %s artifact", t), err)
	}
	return hashBytes(data), nil
}

// ListRuns returns the idea's run IDs in lexical order.
func (s *Store) ListRuns(ideaID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.IdeaDir(ideaID), "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "list runs", err)
	}
	var runs []string
	for _, e := range entries {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	return runs, nil
}

// Close closes all opened event logs.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for idea, l := range s.logs {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.logs, idea)
	}
	return firstErr
}

func (s *Store) write(path string, doc *Document) (hash string, size int, err error) {
	if err := doc.Validate(); err != nil {
		return "", 0, errors.Wrap(errors.ErrCodeArtifactWrite, "refusing to persist invalid document", err)
	}

	data, err := Encode(doc)
	if err != nil {
		return "", 0, errors.Wrap(errors.ErrCodeArtifactWrite, "encode document", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", 0, errors.Wrap(errors.ErrCodeDirectoryFailed, "create artifact directory", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", 0, errors.Wrap(errors.ErrCodeFileWriteFailed, "write artifact", err)
	}
	return hashBytes(data), len(data), nil
}

func (s *Store) appendEvent(ideaID string, event *provenance.Event) {
	eventLog, err := s.EventLog(ideaID)
	if err != nil {
		s.logger.WithError(err).Warn("provenance log unavailable", "idea", ideaID)
		return
	}
	if err := eventLog.Append(event); err != nil {
		s.logger.WithError(err).Warn("provenance append failed", "idea", ideaID)
	}
}

func (s *Store) rel(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return rel
}

func hashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
