package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// ID value objects for the planning layers. Epic, feature, and task IDs are
// 3-digit, zero-padded, and sequential within one idea. Work package IDs are
// 4-digit and global across all ideas. IDs are never reused or renumbered
// once assigned.

// EpicID identifies an epic (EPIC-NNN).
type EpicID string

// FeatureID identifies a feature (FEAT-NNN).
type FeatureID string

// TaskID identifies a task (TASK-NNN).
type TaskID string

// WorkPackageID identifies a work package (WP-NNNN).
type WorkPackageID string

var (
	epicIDPattern    = regexp.MustCompile(`^EPIC-\d{3}$`)
	featureIDPattern = regexp.MustCompile(`^FEAT-\d{3}$`)
	taskIDPattern    = regexp.MustCompile(`^TASK-\d{3}$`)
	wpIDPattern      = regexp.MustCompile(`^WP-\d{4}$`)
)

// NewEpicID creates a new EpicID value object with validation
func NewEpicID(value string) (EpicID, error) {
	id := EpicID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the epic ID is valid
func (e EpicID) Validate() error {
	if e == "" {
		return fmt.Errorf("epic ID cannot be empty")
	}
	if !epicIDPattern.MatchString(string(e)) {
		return fmt.Errorf("epic ID %q must match EPIC-NNN (three digits, zero-padded)", string(e))
	}
	return nil
}

// String returns the string representation
func (e EpicID) String() string { return string(e) }

// NewFeatureID creates a new FeatureID value object with validation
func NewFeatureID(value string) (FeatureID, error) {
	id := FeatureID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the feature ID is valid
func (f FeatureID) Validate() error {
	if f == "" {
		return fmt.Errorf("feature ID cannot be empty")
	}
	if !featureIDPattern.MatchString(string(f)) {
		return fmt.Errorf("feature ID %q must match FEAT-NNN (three digits, zero-padded)", string(f))
	}
	return nil
}

// String returns the string representation
func (f FeatureID) String() string { return string(f) }

// NewTaskID creates a new TaskID value object with validation
func NewTaskID(value string) (TaskID, error) {
	id := TaskID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the task ID is valid
func (t TaskID) Validate() error {
	if t == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if !taskIDPattern.MatchString(string(t)) {
		return fmt.Errorf("task ID %q must match TASK-NNN (three digits, zero-padded)", string(t))
	}
	return nil
}

// String returns the string representation
func (t TaskID) String() string { return string(t) }

// NewWorkPackageID creates a new WorkPackageID value object with validation
func NewWorkPackageID(value string) (WorkPackageID, error) {
	id := WorkPackageID(value)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks if the work package ID is valid
func (w WorkPackageID) Validate() error {
	if w == "" {
		return fmt.Errorf("work package ID cannot be empty")
	}
	if !wpIDPattern.MatchString(string(w)) {
		return fmt.Errorf("work package ID %q must match WP-NNNN (four digits, zero-padded)", string(w))
	}
	return nil
}

// String returns the string representation
func (w WorkPackageID) String() string { return string(w) }

// FormatEpicID renders a sequence number as an epic ID
func FormatEpicID(n int) EpicID { return EpicID(fmt.Sprintf("EPIC-%03d", n)) }

// FormatFeatureID renders a sequence number as a feature ID
func FormatFeatureID(n int) FeatureID { return FeatureID(fmt.Sprintf("FEAT-%03d", n)) }

// FormatTaskID renders a sequence number as a task ID
func FormatTaskID(n int) TaskID { return TaskID(fmt.Sprintf("TASK-%03d", n)) }

// FormatWorkPackageID renders a sequence number as a work package ID
func FormatWorkPackageID(n int) WorkPackageID { return WorkPackageID(fmt.Sprintf("WP-%04d", n)) }

// Sequence returns the numeric component of a work package ID.
// Used to compute the next global ID from the index.
func (w WorkPackageID) Sequence() int {
	if err := w.Validate(); err != nil {
		return 0
	}
	n, _ := strconv.Atoi(string(w)[3:])
	return n
}

// Sequence returns the numeric component of a task ID
func (t TaskID) Sequence() int {
	if err := t.Validate(); err != nil {
		return 0
	}
	n, _ := strconv.Atoi(string(t)[5:])
	return n
}
