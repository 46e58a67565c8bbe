package domain

import (
	"fmt"
	"slices"
	"time"
)

// DefaultRollingWindow is the number of daily exposure values averaged per LGA.
const DefaultRollingWindow = 3

// LGAThreshold is the flood-exposed population an LGA's rolling mean must
// exceed for the flash-flood trigger.
type LGAThreshold struct {
	Name      string  `json:"name" yaml:"name"`
	PCode     string  `json:"pcode" yaml:"pcode" validate:"required"`
	Threshold float64 `json:"threshold" yaml:"threshold" validate:"gt=0"`
}

// DefaultLGAThresholds are the 2025 flash-flood thresholds.
func DefaultLGAThresholds() []LGAThreshold {
	return []LGAThreshold{
		{Name: "Bade", PCode: "NG036001", Threshold: 32124},
		{Name: "Bama", PCode: "NG008003", Threshold: 12334},
		{Name: "Karasuwa", PCode: "NG036010", Threshold: 4296},
		{Name: "Madagali", PCode: "NG002010", Threshold: 6856},
		{Name: "Maiduguri", PCode: "NG008021", Threshold: 27424},
		{Name: "Ngala", PCode: "NG008025", Threshold: 126086},
	}
}

// LGAExposure is one LGA's flash-flood evaluation. RollingMean is nil when
// the LGA has no value on the monitoring date or fewer values than the window.
type LGAExposure struct {
	Name        string   `json:"name"`
	PCode       string   `json:"pcode"`
	Threshold   float64  `json:"threshold"`
	RollingMean *float64 `json:"rolling_mean,omitempty"`
	Exceeds     bool     `json:"exceeds"`
}

// ExposureTrigger is the flash-flood trigger outcome for one monitoring date.
type ExposureTrigger struct {
	MonitoringDate time.Time     `json:"monitoring_date"`
	Window         int           `json:"window"`
	LGAs           []LGAExposure `json:"lgas"`
	Triggered      bool          `json:"triggered"`
}

// ExceedingLGAs returns the names of the LGAs above their threshold.
func (e ExposureTrigger) ExceedingLGAs() []string {
	var out []string
	for _, l := range e.LGAs {
		if l.Exceeds {
			out = append(out, l.Name)
		}
	}
	return out
}

// EvaluateExposureTrigger averages each LGA's last window daily exposure
// values ending on date and compares the mean with the LGA's threshold
// (strictly greater). Observations are keyed by pcode in Unit; a day with
// several observations keeps the latest. Values after date are ignored. It
// fails with ErrNoMonitoringData when no LGA has a value dated date.
func EvaluateExposureTrigger(obs []Observation, lgas []LGAThreshold, window int, date time.Time) (ExposureTrigger, error) {
	if window < 1 {
		return ExposureTrigger{}, fmt.Errorf("evaluate exposure trigger: rolling window must be at least 1, got %d", window)
	}
	if len(lgas) == 0 {
		return ExposureTrigger{}, fmt.Errorf("evaluate exposure trigger: no LGA thresholds: %w", ErrEmptyInput)
	}
	day := DateOnly(date)

	type daily struct {
		value float64
		at    time.Time
	}
	series := make(map[string]map[time.Time]daily, len(lgas))
	for _, l := range lgas {
		series[l.PCode] = make(map[time.Time]daily)
	}
	hasToday := false
	for _, o := range obs {
		days, ok := series[o.Unit]
		if !ok || o.Missing() {
			continue
		}
		d := DateOnly(o.Time)
		if d.After(day) {
			continue
		}
		if cur, seen := days[d]; !seen || !o.Time.Before(cur.at) {
			days[d] = daily{value: o.Value, at: o.Time}
		}
		hasToday = hasToday || d.Equal(day)
	}
	if !hasToday {
		return ExposureTrigger{}, fmt.Errorf("evaluate exposure trigger %s: %w", FormatDate(day), ErrNoMonitoringData)
	}

	out := ExposureTrigger{MonitoringDate: day, Window: window, LGAs: make([]LGAExposure, 0, len(lgas))}
	for _, l := range lgas {
		res := LGAExposure{Name: l.Name, PCode: l.PCode, Threshold: l.Threshold}
		days := series[l.PCode]
		if _, ok := days[day]; ok && len(days) >= window {
			dates := make([]time.Time, 0, len(days))
			for d := range days {
				dates = append(dates, d)
			}
			slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

			var sum float64
			for _, d := range dates[len(dates)-window:] {
				sum += days[d].value
			}
			mean := sum / float64(window)
			res.RollingMean = &mean
			res.Exceeds = mean > l.Threshold
		}
		out.Triggered = out.Triggered || res.Exceeds
		out.LGAs = append(out.LGAs, res)
	}
	return out, nil
}
