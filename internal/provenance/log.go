package provenance

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Recorder is the minimal contract other components need to emit
// provenance events.
type Recorder interface {
	Append(event *Event) error
}

// Log is an append-only event log backed by a JSONL file. Written events
// are never rewritten; the file only grows.
type Log struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// Open opens (or creates) the event log at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	return &Log{path: path, file: file}, nil
}

// Append writes one event as a JSON line. O(1), never rewrites prior
// entries.
func (l *Log) Append(event *Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := fmt.Fprintf(l.file, "%s\n", data); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Events reads back the full event sequence from disk, oldest first.
func (l *Log) Events() ([]*Event, error) {
	l.mu.Lock()
	if err := l.file.Sync(); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("sync event log: %w", err)
	}
	l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	defer f.Close()

	var events []*Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event, err := FromJSON(line)
		if err != nil {
			return nil, fmt.Errorf("corrupt event log entry: %w", err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return events, nil
}

// Len returns the number of events currently persisted.
func (l *Log) Len() (int, error) {
	events, err := l.Events()
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Close syncs and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}

// Discard is a Recorder that drops events. Used where provenance is not
// wired, such as table tests.
type Discard struct{}

// Append implements Recorder.
func (Discard) Append(*Event) error { return nil }
