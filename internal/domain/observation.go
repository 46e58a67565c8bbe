package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Observation is one value of a metric for one spatial unit at one time step.
// A NaN value marks a missing observation.
type Observation struct {
	Time  time.Time `json:"time"`
	Unit  string    `json:"unit"`
	Value float64   `json:"value"`
}

// Missing reports whether the observation has no usable value.
func (o Observation) Missing() bool {
	return math.IsNaN(o.Value) || math.IsInf(o.Value, 0)
}

// AnnualPeak is the largest valid value observed for a unit within one calendar year.
type AnnualPeak struct {
	Unit     string    `json:"unit"`
	Year     int       `json:"year"`
	Value    float64   `json:"value"`
	PeakTime time.Time `json:"peak_time"`
}

// RankedPeak is an annual peak annotated with its rank and empirical return
// period within its unit's history.
type RankedPeak struct {
	AnnualPeak
	Rank         float64 `json:"rank"`
	ReturnPeriod float64 `json:"return_period"`
}

// Direction selects which end of the value range is severe.
type Direction int

const (
	// Descending ranks the largest value first (floods, exposure).
	Descending Direction = iota
	// Ascending ranks the smallest value first (drought).
	Ascending
)

func (d Direction) String() string {
	if d == Ascending {
		return "ascending"
	}
	return "descending"
}

// ParseDirection accepts "ascending"/"asc" and "descending"/"desc".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "descending", "desc", "":
		return Descending, nil
	case "ascending", "asc":
		return Ascending, nil
	default:
		return Descending, fmt.Errorf("unknown ranking direction %q", s)
	}
}

// moreExtreme reports whether a is strictly more severe than b under d.
func (d Direction) moreExtreme(a, b float64) bool {
	if d == Ascending {
		return a < b
	}
	return a > b
}
