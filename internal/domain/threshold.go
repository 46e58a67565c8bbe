package domain

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// UnitThreshold is the value a unit's annual peak must reach to count as a
// ReturnPeriod-year event for that unit.
type UnitThreshold struct {
	Unit         string  `json:"unit"`
	ReturnPeriod float64 `json:"return_period"`
	Value        float64 `json:"value"`
}

// QuantileThresholds computes, for each unit and return period, the sample
// quantile of the unit's annual peaks at non-exceedance 1 - 1/rp (or 1/rp
// when low values are severe). Quantiles interpolate linearly between order
// statistics (Hyndman-Fan type 7). Output is sorted by return period, then unit.
func QuantileThresholds(peaks []AnnualPeak, rps []float64, dir Direction) ([]UnitThreshold, error) {
	if err := validateReturnPeriods(rps); err != nil {
		return nil, err
	}
	units, groups, err := partitionByUnit(peaks)
	if err != nil {
		return nil, err
	}

	out := make([]UnitThreshold, 0, len(units)*len(rps))
	for _, unit := range units {
		values := make([]float64, len(groups[unit]))
		for i, p := range groups[unit] {
			values[i] = p.Value
		}
		slices.Sort(values)
		for _, rp := range rps {
			p := 1 - 1/rp
			if dir == Ascending {
				p = 1 / rp
			}
			out = append(out, UnitThreshold{Unit: unit, ReturnPeriod: rp, Value: quantileSorted(values, p)})
		}
	}
	slices.SortFunc(out, func(a, b UnitThreshold) int {
		if c := cmp.Compare(a.ReturnPeriod, b.ReturnPeriod); c != 0 {
			return c
		}
		return cmp.Compare(a.Unit, b.Unit)
	})
	return out, nil
}

// quantileSorted is the type 7 sample quantile of ascending-sorted values.
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// ThresholdFor returns the threshold of unit at rp.
func ThresholdFor(thresholds []UnitThreshold, unit string, rp float64) (float64, error) {
	for _, t := range thresholds {
		if t.Unit == unit && t.ReturnPeriod == rp {
			return t.Value, nil
		}
	}
	return 0, fmt.Errorf("unit %s: %w", unit, &LookupError{Kind: "threshold return period", Value: rp})
}

// ExceedanceYears returns the peaks that reach their unit's rp threshold:
// value >= threshold when high values are severe, <= when low values are.
func ExceedanceYears(peaks []AnnualPeak, thresholds []UnitThreshold, rp float64, dir Direction) ([]AnnualPeak, error) {
	var out []AnnualPeak
	for _, p := range peaks {
		thr, err := ThresholdFor(thresholds, p.Unit, rp)
		if err != nil {
			return nil, err
		}
		if p.Value == thr || dir.moreExtreme(p.Value, thr) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ThresholdTable is the per-unit threshold set that realises a target
// combined return period.
type ThresholdTable struct {
	TargetCombinedRP float64         `json:"target_combined_rp"`
	IndividualRP     float64         `json:"individual_rp"`
	Thresholds       []UnitThreshold `json:"thresholds"`
}

// BuildThresholdTable inverts targetCombinedRP to an individual return period
// via combined, then computes every unit's quantile threshold at it.
func BuildThresholdTable(peaks []AnnualPeak, combined []CombinedRP, targetCombinedRP float64, dir Direction) (ThresholdTable, error) {
	rpInd, err := IndividualRPFor(combined, targetCombinedRP)
	if err != nil {
		return ThresholdTable{}, fmt.Errorf("build threshold table: %w", err)
	}
	thresholds, err := QuantileThresholds(peaks, []float64{rpInd}, dir)
	if err != nil {
		return ThresholdTable{}, fmt.Errorf("build threshold table: %w", err)
	}
	return ThresholdTable{
		TargetCombinedRP: targetCombinedRP,
		IndividualRP:     rpInd,
		Thresholds:       thresholds,
	}, nil
}
