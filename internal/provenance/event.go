package provenance

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventStatus represents the outcome of a pipeline operation
type EventStatus string

const (
	// StatusSuccess indicates the operation completed cleanly
	StatusSuccess EventStatus = "SUCCESS"

	// StatusSuccessWithWarnings indicates completion with recoverable findings
	StatusSuccessWithWarnings EventStatus = "SUCCESS_WITH_WARNINGS"

	// StatusFailed indicates the operation aborted
	StatusFailed EventStatus = "FAILED"
)

// Event records one pipeline operation. Events are append-only: once
// written they are never edited or deleted.
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Timestamp is when the operation ran
	Timestamp time.Time `json:"timestamp"`

	// Actor names the component that performed the operation
	// (artifact-store, batch-scheduler, lifecycle-controller, ...)
	Actor string `json:"actor"`

	// Operation names the pipeline operation (put-latest, queue-work, ...)
	Operation string `json:"operation"`

	// Inputs lists the artifacts or IDs the operation consumed
	Inputs []string `json:"inputs,omitempty"`

	// Outputs lists the artifacts or IDs the operation produced
	Outputs []string `json:"outputs,omitempty"`

	// Counts carries operation-specific tallies (tasks scheduled, findings, ...)
	Counts map[string]int `json:"counts,omitempty"`

	// Warnings carries recoverable findings surfaced during the operation
	Warnings []string `json:"warnings,omitempty"`

	// Status is the operation outcome
	Status EventStatus `json:"status"`
}

// NewEvent creates an event with ID, timestamp, and status populated.
// Status defaults to SUCCESS and flips to SUCCESS_WITH_WARNINGS when
// warnings are added.
func NewEvent(actor, operation string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Operation: operation,
		Status:    StatusSuccess,
	}
}

// WithInputs appends input identifiers
func (e *Event) WithInputs(inputs ...string) *Event {
	e.Inputs = append(e.Inputs, inputs...)
	return e
}

// WithOutputs appends output identifiers
func (e *Event) WithOutputs(outputs ...string) *Event {
	e.Outputs = append(e.Outputs, outputs...)
	return e
}

// WithCount sets a named tally
func (e *Event) WithCount(key string, n int) *Event {
	if e.Counts == nil {
		e.Counts = make(map[string]int)
	}
	e.Counts[key] = n
	return e
}

// WithWarning appends a warning and downgrades the status unless the
// event already failed
func (e *Event) WithWarning(warning string) *Event {
	e.Warnings = append(e.Warnings, warning)
	if e.Status == StatusSuccess {
		e.Status = StatusSuccessWithWarnings
	}
	return e
}

// Failed marks the event as failed
func (e *Event) Failed() *Event {
	e.Status = StatusFailed
	return e
}

// ToJSON serializes the event as a single JSON line
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
