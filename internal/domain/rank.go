package domain

import (
	"fmt"
	"math"
	"slices"
)

// RankResult is the rank and empirical return period assigned to one value.
type RankResult struct {
	Rank         float64 `json:"rank"`
	ReturnPeriod float64 `json:"return_period"`
}

// RankValues assigns every value its fractional rank (1 = most extreme under
// dir, ties share the average of the ranks they span) and its return period
// (N+1)/rank. Results are in input order.
func RankValues(values []float64, dir Direction) ([]RankResult, error) {
	n := len(values)
	if n == 0 {
		return nil, fmt.Errorf("rank values: %w", ErrEmptyInput)
	}
	for i, v := range values {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("rank values: index %d: %w", i, ErrMissingValue)
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case dir.moreExtreme(values[a], values[b]):
			return -1
		case dir.moreExtreme(values[b], values[a]):
			return 1
		default:
			return 0
		}
	})

	out := make([]RankResult, n)
	total := float64(n + 1)
	for start := 0; start < n; {
		end := start
		for end+1 < n && values[order[end+1]] == values[order[start]] {
			end++
		}
		// positions start..end hold ranks start+1..end+1
		rank := float64(start+end+2) / 2
		for _, idx := range order[start : end+1] {
			out[idx] = RankResult{Rank: rank, ReturnPeriod: total / rank}
		}
		start = end + 1
	}
	return out, nil
}

// RankPeaks ranks one unit's annual peaks and returns them annotated, in
// input order. The peaks are assumed to belong to a single unit.
func RankPeaks(peaks []AnnualPeak, dir Direction) ([]RankedPeak, error) {
	values := make([]float64, len(peaks))
	for i, p := range peaks {
		values[i] = p.Value
	}
	ranks, err := RankValues(values, dir)
	if err != nil {
		return nil, err
	}
	out := make([]RankedPeak, len(peaks))
	for i, p := range peaks {
		out[i] = RankedPeak{AnnualPeak: p, Rank: ranks[i].Rank, ReturnPeriod: ranks[i].ReturnPeriod}
	}
	return out, nil
}
