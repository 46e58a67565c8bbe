package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monitoringDay = time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)

func row(src ForecastSource, value float64) ForecastRow {
	return ForecastRow{
		MonitoringDate: monitoringDay,
		Source:         src,
		Station:        "G1067",
		IssuedTime:     monitoringDay,
		ValidTime:      monitoringDay.Add(24 * time.Hour),
		Value:          value,
	}
}

func TestEvaluateTrigger(t *testing.T) {
	fixed := time.Date(2024, 9, 10, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	defer SetClock(nil)

	th := DefaultActivationThresholds()

	tests := []struct {
		name          string
		rows          []ForecastRow
		wantGloFAS    bool
		wantGoogle    bool
		wantTriggered bool
	}{
		{
			name:          "all below",
			rows:          []ForecastRow{row(SourceGloFASForecast, 2000), row(SourceGoogle, 900)},
			wantTriggered: false,
		},
		{
			name:          "glofas forecast above",
			rows:          []ForecastRow{row(SourceGloFASForecast, 3131), row(SourceGoogle, 900)},
			wantGloFAS:    true,
			wantTriggered: true,
		},
		{
			name:          "glofas reanalysis above",
			rows:          []ForecastRow{row(SourceGloFASReanalysis, 4000)},
			wantGloFAS:    true,
			wantTriggered: true,
		},
		{
			name:          "google above",
			rows:          []ForecastRow{row(SourceGloFASForecast, 100), row(SourceGoogle, 1212.5)},
			wantGoogle:    true,
			wantTriggered: true,
		},
		{
			name:          "equal to threshold does not exceed",
			rows:          []ForecastRow{row(SourceGloFASForecast, 3130), row(SourceGoogle, 1212)},
			wantTriggered: false,
		},
		{
			name:          "both above",
			rows:          []ForecastRow{row(SourceGloFASForecast, 5000), row(SourceGoogle, 5000)},
			wantGloFAS:    true,
			wantGoogle:    true,
			wantTriggered: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := EvaluateTrigger(monitoringDay.Add(3*time.Hour), tt.rows, th, LevelActivation)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGloFAS, rec.GloFASExceeds)
			assert.Equal(t, tt.wantGoogle, rec.GoogleExceeds)
			assert.Equal(t, tt.wantTriggered, rec.Triggered)
			assert.Equal(t, monitoringDay, rec.MonitoringDate)
			assert.Equal(t, fixed, rec.EvaluatedAt)
			assert.Equal(t, LevelActivation, rec.Level)
			assert.Equal(t, th, rec.Thresholds)
			assert.Equal(t, len(tt.rows), rec.RowCount)
		})
	}
}

func TestEvaluateTrigger_Maxima(t *testing.T) {
	rows := []ForecastRow{
		row(SourceGloFASForecast, 1500),
		row(SourceGloFASReanalysis, 2900),
		row(SourceGloFASForecast, math.NaN()),
	}
	rec, err := EvaluateTrigger(monitoringDay, rows, DefaultActivationThresholds(), LevelWarning)
	require.NoError(t, err)

	require.NotNil(t, rec.GloFASMax)
	assert.Equal(t, 2900.0, *rec.GloFASMax)
	assert.Nil(t, rec.GoogleMax)
	assert.False(t, rec.GoogleExceeds)
	assert.Equal(t, 2, rec.RowCount)
	assert.Equal(t, "NOT ACTIVATED", rec.Status())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "google_max")
	assert.Contains(t, string(data), `"glofas_max":2900`)
	assert.Contains(t, string(data), `"level":"warning"`)
}

func TestEvaluateTrigger_WarningThresholds(t *testing.T) {
	warning := TriggerThresholds{GloFAS: 2500, Google: 1000}
	rows := []ForecastRow{row(SourceGloFASForecast, 2600)}

	rec, err := EvaluateTrigger(monitoringDay, rows, warning, LevelWarning)
	require.NoError(t, err)
	assert.True(t, rec.Triggered)
	assert.Equal(t, "ACTIVATED", rec.Status())

	rec, err = EvaluateTrigger(monitoringDay, rows, DefaultActivationThresholds(), LevelActivation)
	require.NoError(t, err)
	assert.False(t, rec.Triggered)
}

func TestEvaluateTrigger_Errors(t *testing.T) {
	_, err := EvaluateTrigger(monitoringDay, nil, DefaultActivationThresholds(), LevelActivation)
	require.ErrorIs(t, err, ErrNoMonitoringData)

	stale := row(SourceGoogle, 10)
	stale.MonitoringDate = monitoringDay.AddDate(0, 0, -1)
	_, err = EvaluateTrigger(monitoringDay, []ForecastRow{row(SourceGoogle, 10), stale}, DefaultActivationThresholds(), LevelActivation)
	require.ErrorIs(t, err, ErrMixedMonitoringDates)
}

func TestLatestIssued(t *testing.T) {
	older := row(SourceGoogle, 1)
	older.IssuedTime = monitoringDay.Add(-12 * time.Hour)
	newer := row(SourceGoogle, 2)
	newerSecondStep := row(SourceGoogle, 3)
	newerSecondStep.ValidTime = monitoringDay.Add(48 * time.Hour)
	glofas := row(SourceGloFASForecast, 4)
	glofas.IssuedTime = monitoringDay.Add(-24 * time.Hour)

	got := LatestIssued([]ForecastRow{older, newer, glofas, newerSecondStep})
	assert.Equal(t, []ForecastRow{newer, glofas, newerSecondStep}, got)
}

func TestParseTriggerLevel(t *testing.T) {
	lvl, err := ParseTriggerLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelActivation, lvl)

	lvl, err = ParseTriggerLevel("Warning")
	require.NoError(t, err)
	assert.Equal(t, LevelWarning, lvl)

	_, err = ParseTriggerLevel("panic")
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-09-10")
	require.NoError(t, err)
	assert.Equal(t, monitoringDay, d)
	assert.Equal(t, "2024-09-10", FormatDate(d))
	assert.Equal(t, monitoringDay, DateOnly(monitoringDay.Add(23*time.Hour)))

	_, err = ParseDate("10/09/2024")
	require.Error(t, err)
}
