package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMissingInput marks a unit (year, file, reference entry) that is absent.
	// Batch runners skip the unit and continue.
	ErrMissingInput = errors.New("missing input")

	// ErrInsufficientSamples marks a baseline month computed from too few samples.
	ErrInsufficientSamples = errors.New("insufficient baseline samples")

	// ErrSpatialMismatch marks grids that cannot be aligned within tolerance.
	ErrSpatialMismatch = errors.New("spatial mismatch")

	// ErrNoValidData marks an aggregate with nothing finite to average.
	ErrNoValidData = errors.New("no valid data")

	// ErrInvalidSeries marks a malformed series shape.
	ErrInvalidSeries = errors.New("invalid series")
)

// SparseMonth identifies a baseline entry below the sample threshold.
type SparseMonth struct {
	Cell  Cell       `json:"cell"`
	Month time.Month `json:"month"`
	N     int        `json:"n"`
}

// InsufficientSamplesError lists the baseline entries that fell below the
// minimum sample count.
type InsufficientSamplesError struct {
	Variable   string
	MinSamples int
	Months     []SparseMonth
}

func (e *InsufficientSamplesError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %d cell-months below %d samples", ErrInsufficientSamples, e.Variable, len(e.Months), e.MinSamples)
	for i, m := range e.Months {
		if i == 3 {
			fmt.Fprintf(&b, ", ...")
			break
		}
		fmt.Fprintf(&b, "; %s month %d n=%d", m.Cell, int(m.Month), m.N)
	}
	return b.String()
}

func (e *InsufficientSamplesError) Unwrap() error { return ErrInsufficientSamples }

// SpatialMismatchError reports a cell with no reference cell within tolerance.
type SpatialMismatchError struct {
	Cell      Cell
	Nearest   Cell
	Distance  float64
	Tolerance float64
}

func (e *SpatialMismatchError) Error() string {
	return fmt.Sprintf("%s: cell %s nearest reference %s at %.4f deg exceeds tolerance %.4f deg",
		ErrSpatialMismatch, e.Cell, e.Nearest, e.Distance, e.Tolerance)
}

func (e *SpatialMismatchError) Unwrap() error { return ErrSpatialMismatch }
