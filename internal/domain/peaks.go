package domain

import (
	"cmp"
	"slices"
)

type unitYear struct {
	unit string
	year int
}

// ExtractAnnualPeaks reduces an observation series to one peak per (unit,
// calendar year) that has at least one valid value. Years are taken in UTC.
// When the maximum occurs more than once, the earliest timestamp is kept.
// The result is sorted by unit, then year.
func ExtractAnnualPeaks(observations []Observation) []AnnualPeak {
	peaks := make(map[unitYear]AnnualPeak)
	for _, o := range observations {
		if o.Missing() {
			continue
		}
		t := o.Time.UTC()
		key := unitYear{unit: o.Unit, year: t.Year()}
		cur, ok := peaks[key]
		switch {
		case !ok, o.Value > cur.Value:
			peaks[key] = AnnualPeak{Unit: o.Unit, Year: key.year, Value: o.Value, PeakTime: t}
		case o.Value == cur.Value && t.Before(cur.PeakTime):
			cur.PeakTime = t
			peaks[key] = cur
		}
	}

	out := make([]AnnualPeak, 0, len(peaks))
	for _, p := range peaks {
		out = append(out, p)
	}
	slices.SortFunc(out, comparePeaks)
	return out
}

// AnnualMaxima returns the yearly maxima of a single series in year order,
// ignoring the unit column.
func AnnualMaxima(observations []Observation) []float64 {
	byYear := make(map[int]float64)
	for _, o := range observations {
		if o.Missing() {
			continue
		}
		y := o.Time.UTC().Year()
		if cur, ok := byYear[y]; !ok || o.Value > cur {
			byYear[y] = o.Value
		}
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.Sort(years)

	out := make([]float64, len(years))
	for i, y := range years {
		out[i] = byYear[y]
	}
	return out
}

func comparePeaks(a, b AnnualPeak) int {
	if c := cmp.Compare(a.Unit, b.Unit); c != 0 {
		return c
	}
	return cmp.Compare(a.Year, b.Year)
}
