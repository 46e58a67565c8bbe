package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	gumbelMaxIter = 200
	gumbelTol     = 1e-12
)

// eulerGamma is the Euler-Mascheroni constant, the mean of the standard Gumbel.
const eulerGamma = 0.5772156649015329

// DefaultTargetReturnPeriods returns the return periods evaluated when the
// caller does not ask for specific ones.
func DefaultTargetReturnPeriods() []float64 {
	return []float64{2, 3, 5, 7, 10}
}

// GumbelFit holds the location and scale of a right-skewed Gumbel distribution.
type GumbelFit struct {
	Loc   float64 `json:"loc"`
	Scale float64 `json:"scale"`
}

// Quantile returns the value with non-exceedance probability p.
func (f GumbelFit) Quantile(p float64) float64 {
	return distuv.GumbelRight{Mu: f.Loc, Beta: f.Scale}.Quantile(p)
}

// ValueAt returns the rp-year value, the quantile at 1 - 1/rp.
func (f GumbelFit) ValueAt(rp float64) float64 {
	return f.Quantile(1 - 1/rp)
}

// FitGumbel estimates Gumbel location and scale by maximum likelihood.
//
// The scale is the root of the profile score
//
//	g(b) = b - mean(x) + sum(x e^{-x/b}) / sum(e^{-x/b})
//
// which is strictly increasing in b, so Newton steps are safeguarded by a
// bisection bracket. The method-of-moments scale seeds the search.
func FitGumbel(maxima []float64) (GumbelFit, error) {
	if len(maxima) == 0 {
		return GumbelFit{}, fmt.Errorf("fit gumbel: %w", ErrEmptyInput)
	}
	if len(maxima) < 2 {
		return GumbelFit{}, fmt.Errorf("fit gumbel: %d annual maxima, need at least 2: %w", len(maxima), ErrInsufficientData)
	}
	for i, v := range maxima {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return GumbelFit{}, fmt.Errorf("fit gumbel: index %d: %w", i, ErrMissingValue)
		}
	}
	sd := stat.StdDev(maxima, nil)
	if sd == 0 {
		return GumbelFit{}, fmt.Errorf("fit gumbel: all maxima equal: %w", ErrInsufficientData)
	}

	// Shift so every weight e^{-x'/b} lies in (0, 1].
	lo := floats.Min(maxima)
	shifted := make([]float64, len(maxima))
	for i, v := range maxima {
		shifted[i] = v - lo
	}
	mean := stat.Mean(shifted, nil)

	score := func(b float64) (g, dg float64) {
		var s0, s1, s2 float64
		for _, x := range shifted {
			w := math.Exp(-x / b)
			s0 += w
			s1 += x * w
			s2 += x * x * w
		}
		m1 := s1 / s0
		return b - mean + m1, 1 + (s2/s0-m1*m1)/(b*b)
	}

	// Bracket the root: g -> -mean < 0 as b -> 0, g ~ b > 0 for large b.
	left, right := sd*1e-6, sd
	for g, _ := score(right); g <= 0; g, _ = score(right) {
		right *= 2
	}
	for g, _ := score(left); g >= 0 && left > 1e-300; g, _ = score(left) {
		left /= 2
	}

	b := sd * math.Sqrt(6) / math.Pi
	if b <= left || b >= right {
		b = (left + right) / 2
	}
	for range gumbelMaxIter {
		g, dg := score(b)
		if g > 0 {
			right = b
		} else {
			left = b
		}
		next := b - g/dg
		if next <= left || next >= right {
			next = (left + right) / 2
		}
		if math.Abs(next-b) <= gumbelTol*b {
			b = next
			break
		}
		b = next
	}

	var s0 float64
	for _, x := range shifted {
		s0 += math.Exp(-x / b)
	}
	loc := lo - b*math.Log(s0/float64(len(shifted)))
	return GumbelFit{Loc: loc, Scale: b}, nil
}

// MomentsGumbel estimates Gumbel parameters by the method of moments.
func MomentsGumbel(maxima []float64) (GumbelFit, error) {
	if len(maxima) < 2 {
		return GumbelFit{}, fmt.Errorf("moments gumbel: %w", ErrInsufficientData)
	}
	mean, sd := stat.MeanStdDev(maxima, nil)
	if sd == 0 {
		return GumbelFit{}, fmt.Errorf("moments gumbel: all maxima equal: %w", ErrInsufficientData)
	}
	scale := sd * math.Sqrt(6) / math.Pi
	return GumbelFit{Loc: mean - eulerGamma*scale, Scale: scale}, nil
}

// ReturnPeriodValue is the estimated value of one return period.
type ReturnPeriodValue struct {
	ReturnPeriod float64 `json:"return_period"`
	Value        float64 `json:"value"`
}

// ReturnPeriodTable maps requested return periods to estimated values, in
// request order.
type ReturnPeriodTable []ReturnPeriodValue

// ValueFor returns the value estimated for rp. It fails with a *LookupError
// when rp was not among the requested return periods.
func (t ReturnPeriodTable) ValueFor(rp float64) (float64, error) {
	for _, row := range t {
		if row.ReturnPeriod == rp {
			return row.Value, nil
		}
	}
	return 0, &LookupError{Kind: "return period", Value: rp}
}

// EstimateReturnPeriods extracts the annual maxima of a single series, fits a
// Gumbel distribution by maximum likelihood and evaluates it at each target
// return period. A nil targetRPs uses DefaultTargetReturnPeriods.
func EstimateReturnPeriods(observations []Observation, targetRPs []float64) (ReturnPeriodTable, error) {
	table, _, err := EstimateReturnPeriodsWithFit(observations, targetRPs)
	return table, err
}

// EstimateReturnPeriodsWithFit is EstimateReturnPeriods that also returns the fit.
func EstimateReturnPeriodsWithFit(observations []Observation, targetRPs []float64) (ReturnPeriodTable, GumbelFit, error) {
	return EstimateReturnPeriodsWith(observations, targetRPs, FitGumbel)
}

// Fitter estimates Gumbel parameters from annual maxima. FitGumbel and
// MomentsGumbel are Fitters.
type Fitter func(maxima []float64) (GumbelFit, error)

// EstimateReturnPeriodsWith is EstimateReturnPeriodsWithFit using fit to
// estimate the distribution.
func EstimateReturnPeriodsWith(observations []Observation, targetRPs []float64, fit Fitter) (ReturnPeriodTable, GumbelFit, error) {
	if targetRPs == nil {
		targetRPs = DefaultTargetReturnPeriods()
	}
	if err := validateReturnPeriods(targetRPs); err != nil {
		return nil, GumbelFit{}, err
	}
	maxima := AnnualMaxima(observations)
	if len(maxima) == 0 {
		return nil, GumbelFit{}, fmt.Errorf("estimate return periods: %w", ErrEmptyInput)
	}
	params, err := fit(maxima)
	if err != nil {
		return nil, GumbelFit{}, fmt.Errorf("estimate return periods: %w", err)
	}

	table := make(ReturnPeriodTable, len(targetRPs))
	for i, rp := range targetRPs {
		table[i] = ReturnPeriodValue{ReturnPeriod: rp, Value: params.ValueAt(rp)}
	}
	return table, params, nil
}

func validateReturnPeriods(rps []float64) error {
	if len(rps) == 0 {
		return fmt.Errorf("target return periods: %w", ErrEmptyInput)
	}
	for _, rp := range rps {
		if math.IsNaN(rp) || math.IsInf(rp, 0) || rp <= 1 {
			return fmt.Errorf("%w: %g (must be finite and > 1)", ErrInvalidReturnPeriod, rp)
		}
	}
	return nil
}
