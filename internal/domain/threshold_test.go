package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantileThresholds(t *testing.T) {
	peaks := []AnnualPeak{
		{Unit: "Numan", Year: 2001, Value: 3},
		{Unit: "Numan", Year: 2002, Value: 1},
		{Unit: "Numan", Year: 2003, Value: 5},
		{Unit: "Numan", Year: 2004, Value: 2},
		{Unit: "Numan", Year: 2005, Value: 4},
		{Unit: "Lamurde", Year: 2001, Value: 7},
	}

	got, err := QuantileThresholds(peaks, []float64{4, 2, 10}, Descending)
	require.NoError(t, err)
	assert.Equal(t, []UnitThreshold{
		{Unit: "Lamurde", ReturnPeriod: 2, Value: 7},
		{Unit: "Numan", ReturnPeriod: 2, Value: 3},
		{Unit: "Lamurde", ReturnPeriod: 4, Value: 7},
		{Unit: "Numan", ReturnPeriod: 4, Value: 4},
	}, got[:4])

	v10, err := ThresholdFor(got, "Numan", 10)
	require.NoError(t, err)
	assert.InDelta(t, 4.6, v10, 1e-12)

	asc, err := QuantileThresholds(peaks, []float64{4}, Ascending)
	require.NoError(t, err)
	v, err := ThresholdFor(asc, "Numan", 4)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
}

func TestQuantileThresholds_InvalidReturnPeriod(t *testing.T) {
	_, err := QuantileThresholds([]AnnualPeak{{Unit: "x", Year: 2000, Value: 1}}, []float64{0.9}, Descending)
	require.ErrorIs(t, err, ErrInvalidReturnPeriod)
}

func TestExceedanceYears(t *testing.T) {
	peaks := []AnnualPeak{
		{Unit: "Numan", Year: 2001, Value: 1},
		{Unit: "Numan", Year: 2002, Value: 2},
		{Unit: "Numan", Year: 2003, Value: 3},
		{Unit: "Numan", Year: 2004, Value: 4},
		{Unit: "Numan", Year: 2005, Value: 5},
	}

	thr, err := QuantileThresholds(peaks, []float64{4}, Descending)
	require.NoError(t, err)
	got, err := ExceedanceYears(peaks, thr, 4, Descending)
	require.NoError(t, err)
	assert.Equal(t, peaks[3:], got)

	thr, err = QuantileThresholds(peaks, []float64{4}, Ascending)
	require.NoError(t, err)
	got, err = ExceedanceYears(peaks, thr, 4, Ascending)
	require.NoError(t, err)
	assert.Equal(t, peaks[:2], got)

	_, err = ExceedanceYears(peaks, thr, 5, Ascending)
	require.ErrorIs(t, err, ErrLookupMiss)
}

func TestBuildThresholdTable(t *testing.T) {
	peaks := threeUnitPeaks()
	rows, err := CalculateGroupsRP(peaks, Descending)
	require.NoError(t, err)
	combined := CombineReturnPeriods(rows)

	table, err := BuildThresholdTable(peaks, combined, 11, Descending)
	require.NoError(t, err)
	assert.Equal(t, 11.0, table.TargetCombinedRP)
	assert.Equal(t, 11.0, table.IndividualRP)
	require.Len(t, table.Thresholds, 3)
	assert.Equal(t, "Fufore", table.Thresholds[0].Unit)
	assert.Equal(t, "Girei", table.Thresholds[1].Unit)
	assert.Equal(t, "Yola South", table.Thresholds[2].Unit)

	h := 9 * (1 - 1/11.0)
	assert.InDelta(t, 9+(h-8)*91, table.Thresholds[2].Value, 1e-9)

	// Tied maxima sit at the interpolated quantile, so both of their years count.
	exceed, err := ExceedanceYears(peaks, table.Thresholds, 11, Descending)
	require.NoError(t, err)
	years := make(map[int]int)
	for _, p := range exceed {
		years[p.Year]++
	}
	assert.Equal(t, map[int]int{2003: 2, 2007: 3}, years)

	_, err = BuildThresholdTable(peaks, combined, 4, Descending)
	require.ErrorIs(t, err, ErrLookupMiss)
}
