package domain

import "fmt"

// WPStatus represents a work package lifecycle state.
type WPStatus string

// Valid work package states
const (
	StatusQueued     WPStatus = "Queued"
	StatusInProgress WPStatus = "InProgress"
	StatusBlocked    WPStatus = "Blocked"
	StatusDone       WPStatus = "Done"
)

// NewWPStatus creates a new WPStatus value object with validation
func NewWPStatus(value string) (WPStatus, error) {
	s := WPStatus(value)
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// Validate checks if the status is valid
func (s WPStatus) Validate() error {
	switch s {
	case StatusQueued, StatusInProgress, StatusBlocked, StatusDone:
		return nil
	default:
		return fmt.Errorf("invalid work package status %q: must be Queued, InProgress, Blocked, or Done", string(s))
	}
}

// String returns the string representation
func (s WPStatus) String() string { return string(s) }

// CanTransitionTo reports whether a transition to the target state is
// allowed. Every path to Done or Blocked passes through InProgress, and a
// Blocked package resumes only to InProgress.
func (s WPStatus) CanTransitionTo(target WPStatus) bool {
	switch s {
	case StatusQueued:
		return target == StatusInProgress
	case StatusInProgress:
		return target == StatusDone || target == StatusBlocked
	case StatusBlocked:
		return target == StatusInProgress
	default:
		return false
	}
}

// IsTerminal reports whether the state is terminal
func (s WPStatus) IsTerminal() bool { return s == StatusDone }
