package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// readObservations parses a timestamp,unit,value CSV with a header row. An
// empty or "nan" value is kept as a missing observation.
func readObservations(r io.Reader) ([]domain.Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: %w", domain.ErrEmptyInput)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.ToLower(strings.TrimSpace(header[0])) != "timestamp" {
		return nil, fmt.Errorf("unexpected header %v: want timestamp,unit,value", header)
	}

	var out []domain.Observation
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		unit := strings.TrimSpace(rec[1])
		if unit == "" {
			return nil, fmt.Errorf("line %d: empty unit", line)
		}
		value, err := parseValue(rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, domain.Observation{Time: ts, Unit: unit, Value: value})
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

func parseFloatList(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func filterUnits(obs []domain.Observation, units []string) []domain.Observation {
	if len(units) == 0 {
		return obs
	}
	keep := make(map[string]bool, len(units))
	for _, u := range units {
		keep[u] = true
	}
	out := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		if keep[o.Unit] {
			out = append(out, o)
		}
	}
	return out
}
