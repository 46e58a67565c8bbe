package domain

import (
	"math"
	"slices"
	"sort"
)

// CombinedRP is the system-wide return period implied by applying one
// individual return period to every unit.
type CombinedRP struct {
	IndividualRP    float64 `json:"rp_ind"`
	CombinedRP      float64 `json:"rp_combined"`
	QualifyingYears int     `json:"qualifying_years"`
}

// Infinite reports whether no year in the record qualifies.
func (c CombinedRP) Infinite() bool { return math.IsInf(c.CombinedRP, 1) }

// yearMaxima holds, per year, the largest unit return period, sorted ascending.
type yearMaxima struct {
	totalYears int
	maxRP      []float64
}

func newYearMaxima(rows []RankedPeak) yearMaxima {
	byYear := make(map[int]float64)
	for _, r := range rows {
		if cur, ok := byYear[r.Year]; !ok || r.ReturnPeriod > cur {
			byYear[r.Year] = r.ReturnPeriod
		}
	}
	maxRP := make([]float64, 0, len(byYear))
	for _, v := range byYear {
		maxRP = append(maxRP, v)
	}
	slices.Sort(maxRP)
	return yearMaxima{totalYears: len(byYear), maxRP: maxRP}
}

// qualifying counts the years in which some unit reached rp.
func (y yearMaxima) qualifying(rp float64) int {
	return len(y.maxRP) - sort.SearchFloat64s(y.maxRP, rp)
}

func (y yearMaxima) combined(rp float64) CombinedRP {
	q := y.qualifying(rp)
	out := CombinedRP{IndividualRP: rp, QualifyingYears: q, CombinedRP: math.Inf(1)}
	if q > 0 {
		out.CombinedRP = float64(y.totalYears+1) / float64(q)
	}
	return out
}

// CombineReturnPeriods computes the combined return period for every distinct
// individual return period in rows. A year qualifies for rp when at least one
// unit's return period that year is >= rp. Output is sorted by IndividualRP.
func CombineReturnPeriods(rows []RankedPeak) []CombinedRP {
	ym := newYearMaxima(rows)

	candidates := make([]float64, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, r.ReturnPeriod)
	}
	slices.Sort(candidates)
	candidates = slices.Compact(candidates)

	out := make([]CombinedRP, len(candidates))
	for i, rp := range candidates {
		out[i] = ym.combined(rp)
	}
	return out
}

// CombinedRPAt computes the combined return period for an arbitrary
// individual return period. It is +Inf when no year reaches rp.
func CombinedRPAt(rows []RankedPeak, rp float64) CombinedRP {
	return newYearMaxima(rows).combined(rp)
}

// IndividualRPFor inverts a combined table: it returns the individual return
// period whose combined value equals target after rounding both to four
// decimals. When several individual return periods share that combined value
// the largest one (last in ascending order) wins.
func IndividualRPFor(table []CombinedRP, target float64) (float64, error) {
	want := RoundRP(target)
	found := false
	var best float64
	for _, row := range table {
		if RoundRP(row.CombinedRP) != want {
			continue
		}
		if !found || row.IndividualRP > best {
			best = row.IndividualRP
			found = true
		}
	}
	if !found {
		return 0, &LookupError{Kind: "combined return period", Value: target}
	}
	return best, nil
}

// RoundRP rounds a return period to four decimals for presentation.
// Infinite and NaN values pass through unchanged.
func RoundRP(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return math.Round(v*1e4) / 1e4
}
