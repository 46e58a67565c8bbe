// Package domain holds the return-period engine and trigger evaluation for the
// Nigeria flood anticipatory-action workflow.
//
// # Data Sources
//
// Two kinds of series reach this package, both already cleaned by the upstream
// ETL jobs:
//
//   - River discharge at the Wuroboki station on the Benue, from the GloFAS
//     reanalysis/forecast and from the Google Flood Forecasting gauge
//     hybas_1120842550. These feed the riverine trigger ([EvaluateTrigger]).
//   - Daily flood-exposed population per LGA (admin level 2), derived from
//     FloodScan extents and WorldPop. These feed the observational trigger
//     analysis ([ExtractAnnualPeaks] through [BuildThresholdTable]) and the
//     flash-flood trigger ([EvaluateExposureTrigger]), which compares a
//     rolling mean of recent days with a per-LGA threshold.
//
// # Return Periods
//
// Empirical return periods use the Weibull plotting position:
//
//	RP = (N + 1) / rank
//
// where N is the number of annual peaks for one unit and rank 1 is the most
// extreme peak. Ties take the average of the ranks they span (fractional
// ranking), so two peaks sharing ranks 2 and 3 both get rank 2.5. A unit with
// a single peak always gets RP 2.
//
// Parametric return periods fit a right-skewed Gumbel distribution to the
// annual maxima by maximum likelihood and read the quantile at 1 - 1/RP.
//
// # Combined Return Periods
//
// For a multi-LGA trigger that fires when any LGA exceeds its own RP-year
// threshold, the system-wide return period is
//
//	combined(rp) = (years + 1) / |{year : some unit has RP >= rp that year}|
//
// and is +Inf when no year qualifies. combined is non-decreasing in rp.
// [IndividualRPFor] inverts the mapping; when several individual RPs map to
// the same combined RP it returns the largest of them.
//
// Values are carried at full precision. [RoundRP] rounds to four decimals and
// is only applied when tables are exported.
package domain
