package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a ranking or fitting operation receives no records.
	ErrEmptyInput = errors.New("empty input")

	// ErrInsufficientData is returned when a distribution fit has too few distinct maxima.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrLookupMiss is returned when a requested value has no precomputed row.
	ErrLookupMiss = errors.New("lookup miss")

	// ErrInvalidReturnPeriod is returned for return periods that are not finite and > 1.
	ErrInvalidReturnPeriod = errors.New("invalid return period")

	// ErrMissingValue is returned when a value to rank is NaN.
	ErrMissingValue = errors.New("missing value")

	// ErrDuplicatePeak is returned when two annual peaks share a unit and year.
	ErrDuplicatePeak = errors.New("duplicate annual peak")

	// ErrNoMonitoringData is returned when no forecast rows exist for a monitoring date.
	ErrNoMonitoringData = errors.New("no monitoring data")

	// ErrMixedMonitoringDates is returned when forecast rows span several monitoring dates.
	ErrMixedMonitoringDates = errors.New("mixed monitoring dates")
)

// LookupError reports a lookup against a precomputed table that found no row.
type LookupError struct {
	Kind  string // e.g. "return period", "combined return period"
	Value float64
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %g not found", e.Kind, e.Value)
}

// Unwrap lets errors.Is match ErrLookupMiss.
func (e *LookupError) Unwrap() error { return ErrLookupMiss }
