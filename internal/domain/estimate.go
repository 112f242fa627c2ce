package domain

import "fmt"

// Estimate represents a task size estimate.
// This is a value object that enforces valid estimate values.
type Estimate string

// Valid estimate values
const (
	EstimateS Estimate = "S" // Small - about half a day
	EstimateM Estimate = "M" // Medium - about one day
	EstimateL Estimate = "L" // Large - one to two days
)

// NewEstimate creates a new Estimate value object with validation
func NewEstimate(value string) (Estimate, error) {
	e := Estimate(value)
	if err := e.Validate(); err != nil {
		return "", err
	}
	return e, nil
}

// Validate checks if the estimate is valid
func (e Estimate) Validate() error {
	switch e {
	case EstimateS, EstimateM, EstimateL:
		return nil
	default:
		return fmt.Errorf("invalid estimate %q: must be S, M, or L", string(e))
	}
}

// String returns the string representation
func (e Estimate) String() string { return string(e) }

// Points returns the scheduling weight of the estimate
func (e Estimate) Points() int {
	switch e {
	case EstimateS:
		return 1
	case EstimateM:
		return 2
	case EstimateL:
		return 4
	default:
		return 0
	}
}

// Rank returns the ordering rank of the estimate (smaller first)
func (e Estimate) Rank() int {
	switch e {
	case EstimateS:
		return 0
	case EstimateM:
		return 1
	case EstimateL:
		return 2
	default:
		return 3
	}
}
