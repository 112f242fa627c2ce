package domain

import "fmt"

// ReleaseTarget represents the release an item is planned for.
// This is a value object that enforces valid release values.
type ReleaseTarget string

// Valid release targets, in scheduling order
const (
	ReleaseMVP   ReleaseTarget = "MVP"
	ReleaseV1    ReleaseTarget = "V1"
	ReleaseFull  ReleaseTarget = "Full"
	ReleaseLater ReleaseTarget = "Later"
)

// NewReleaseTarget creates a new ReleaseTarget value object with validation
func NewReleaseTarget(value string) (ReleaseTarget, error) {
	r := ReleaseTarget(value)
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

// Validate checks if the release target is valid
func (r ReleaseTarget) Validate() error {
	switch r {
	case ReleaseMVP, ReleaseV1, ReleaseFull, ReleaseLater:
		return nil
	default:
		return fmt.Errorf("invalid release target %q: must be MVP, V1, Full, or Later", string(r))
	}
}

// String returns the string representation
func (r ReleaseTarget) String() string { return string(r) }

// Rank returns the scheduling rank of the release target (lower = scheduled first)
func (r ReleaseTarget) Rank() int {
	switch r {
	case ReleaseMVP:
		return 0
	case ReleaseV1:
		return 1
	case ReleaseFull:
		return 2
	case ReleaseLater:
		return 3
	default:
		return 4
	}
}
