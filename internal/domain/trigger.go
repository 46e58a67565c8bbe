package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ForecastSource identifies where a monitoring row came from.
type ForecastSource string

const (
	SourceGloFASForecast   ForecastSource = "glofas_forecast"
	SourceGloFASReanalysis ForecastSource = "glofas_reanalysis"
	SourceGoogle           ForecastSource = "google"
)

const dateLayout = "2006-01-02"

// GloFAS reports whether the source is one of the GloFAS products.
func (s ForecastSource) GloFAS() bool {
	return s == SourceGloFASForecast || s == SourceGloFASReanalysis
}

// ForecastRow is one discharge value from a monitoring source.
type ForecastRow struct {
	MonitoringDate time.Time      `json:"monitoring_date"`
	Source         ForecastSource `json:"source"`
	Station        string         `json:"station"`
	IssuedTime     time.Time      `json:"issued_time"`
	ValidTime      time.Time      `json:"valid_time"`
	Value          float64        `json:"value"`
}

// TriggerLevel selects which threshold pair a run is evaluated against.
type TriggerLevel string

const (
	LevelActivation TriggerLevel = "activation"
	LevelWarning    TriggerLevel = "warning"
)

// ParseTriggerLevel accepts "activation" or "warning"; empty means activation.
func ParseTriggerLevel(s string) (TriggerLevel, error) {
	switch TriggerLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelActivation, "":
		return LevelActivation, nil
	case LevelWarning:
		return LevelWarning, nil
	default:
		return "", fmt.Errorf("unknown trigger level %q", s)
	}
}

// TriggerThresholds are the discharge values (m3/s) above which each source
// counts as exceeding.
type TriggerThresholds struct {
	GloFAS float64 `json:"glofas" yaml:"glofas" validate:"gt=0"`
	Google float64 `json:"google" yaml:"google" validate:"gt=0"`
}

// DefaultActivationThresholds are the Wuroboki activation thresholds.
func DefaultActivationThresholds() TriggerThresholds {
	return TriggerThresholds{GloFAS: 3130, Google: 1212}
}

// TriggerRecord is the outcome of evaluating one monitoring date.
type TriggerRecord struct {
	RunID          string            `json:"run_id"`
	MonitoringDate time.Time         `json:"monitoring_date"`
	Level          TriggerLevel      `json:"level"`
	GloFASExceeds  bool              `json:"glofas_exceeds"`
	GoogleExceeds  bool              `json:"google_exceeds"`
	Triggered      bool              `json:"triggered"`
	GloFASMax      *float64          `json:"glofas_max,omitempty"`
	GoogleMax      *float64          `json:"google_max,omitempty"`
	Thresholds     TriggerThresholds `json:"thresholds"`
	RowCount       int               `json:"row_count"`
	EvaluatedAt    time.Time         `json:"evaluated_at"`
	// FlashFlood is set when the exposure trigger had data for the date.
	FlashFlood *ExposureTrigger `json:"flash_flood,omitempty"`
}

// Status renders the trigger outcome the way bulletins report it.
func (r TriggerRecord) Status() string {
	if r.Triggered {
		return "ACTIVATED"
	}
	return "NOT ACTIVATED"
}

// DateOnly truncates t to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a monitoring date as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

// ParseDate parses a YYYY-MM-DD monitoring date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse monitoring date %q: %w", s, err)
	}
	return t, nil
}

// EvaluateTrigger decides whether monitoring data for date crosses the
// thresholds. GloFAS exceeds when any forecast or reanalysis value is
// strictly above th.GloFAS; Google exceeds when any of its values is
// strictly above th.Google. The trigger fires when either source exceeds.
// Every row must carry date as its monitoring date.
func EvaluateTrigger(date time.Time, rows []ForecastRow, th TriggerThresholds, level TriggerLevel) (TriggerRecord, error) {
	if len(rows) == 0 {
		return TriggerRecord{}, fmt.Errorf("evaluate trigger %s: %w", FormatDate(date), ErrNoMonitoringData)
	}
	day := DateOnly(date)
	rec := TriggerRecord{
		MonitoringDate: day,
		Level:          level,
		Thresholds:     th,
		EvaluatedAt:    clock.Now().UTC(),
	}

	gloMax, gooMax := math.Inf(-1), math.Inf(-1)
	for _, r := range rows {
		if !DateOnly(r.MonitoringDate).Equal(day) {
			return TriggerRecord{}, fmt.Errorf("evaluate trigger %s: row dated %s: %w",
				FormatDate(day), FormatDate(r.MonitoringDate), ErrMixedMonitoringDates)
		}
		if math.IsNaN(r.Value) {
			continue
		}
		rec.RowCount++
		switch {
		case r.Source.GloFAS():
			gloMax = math.Max(gloMax, r.Value)
		case r.Source == SourceGoogle:
			gooMax = math.Max(gooMax, r.Value)
		}
	}

	if !math.IsInf(gloMax, -1) {
		rec.GloFASMax = &gloMax
		rec.GloFASExceeds = gloMax > th.GloFAS
	}
	if !math.IsInf(gooMax, -1) {
		rec.GoogleMax = &gooMax
		rec.GoogleExceeds = gooMax > th.Google
	}
	rec.Triggered = rec.GloFASExceeds || rec.GoogleExceeds
	return rec, nil
}

// LatestIssued keeps, per source and station, only the rows of the most
// recent issued time. Input order is preserved.
func LatestIssued(rows []ForecastRow) []ForecastRow {
	type key struct {
		source  ForecastSource
		station string
	}
	latest := make(map[key]time.Time)
	for _, r := range rows {
		k := key{r.Source, r.Station}
		if cur, ok := latest[k]; !ok || r.IssuedTime.After(cur) {
			latest[k] = r.IssuedTime
		}
	}
	out := make([]ForecastRow, 0, len(rows))
	for _, r := range rows {
		if r.IssuedTime.Equal(latest[key{r.Source, r.Station}]) {
			out = append(out, r)
		}
	}
	return out
}
