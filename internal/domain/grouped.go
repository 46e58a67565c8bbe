package domain

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

// CalculateGroupsRP ranks annual peaks independently within each unit and
// returns one row per (unit, year), sorted by unit then year. Ranks never mix
// units. An empty input yields an empty table.
func CalculateGroupsRP(peaks []AnnualPeak, dir Direction) ([]RankedPeak, error) {
	units, groups, err := partitionByUnit(peaks)
	if err != nil {
		return nil, err
	}
	out := make([]RankedPeak, 0, len(peaks))
	for _, unit := range units {
		ranked, err := RankPeaks(groups[unit], dir)
		if err != nil {
			return nil, fmt.Errorf("unit %s: %w", unit, err)
		}
		out = append(out, ranked...)
	}
	sortRanked(out)
	return out, nil
}

// CalculateGroupsRPConcurrent is CalculateGroupsRP with units ranked on up to
// workers goroutines. Output is identical to the sequential version.
func CalculateGroupsRPConcurrent(ctx context.Context, peaks []AnnualPeak, dir Direction, workers int) ([]RankedPeak, error) {
	units, groups, err := partitionByUnit(peaks)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}

	results := make([][]RankedPeak, len(units))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, unit := range units {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ranked, err := RankPeaks(groups[unit], dir)
			if err != nil {
				return fmt.Errorf("unit %s: %w", unit, err)
			}
			results[i] = ranked
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]RankedPeak, 0, len(peaks))
	for _, r := range results {
		out = append(out, r...)
	}
	sortRanked(out)
	return out, nil
}

// partitionByUnit groups peaks by unit and returns the sorted unit keys.
func partitionByUnit(peaks []AnnualPeak) ([]string, map[string][]AnnualPeak, error) {
	groups := make(map[string][]AnnualPeak)
	seen := make(map[unitYear]struct{}, len(peaks))
	for _, p := range peaks {
		key := unitYear{unit: p.Unit, year: p.Year}
		if _, dup := seen[key]; dup {
			return nil, nil, fmt.Errorf("unit %s year %d: %w", p.Unit, p.Year, ErrDuplicatePeak)
		}
		seen[key] = struct{}{}
		groups[p.Unit] = append(groups[p.Unit], p)
	}
	units := make([]string, 0, len(groups))
	for u := range groups {
		units = append(units, u)
	}
	slices.Sort(units)
	return units, groups, nil
}

func sortRanked(rows []RankedPeak) {
	slices.SortFunc(rows, func(a, b RankedPeak) int {
		return comparePeaks(a.AnnualPeak, b.AnnualPeak)
	})
}
