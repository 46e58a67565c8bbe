// Command rpcalc computes empirical and combined return periods, per-unit
// thresholds and optional Gumbel estimates from an observation series.
//
// Usage:
//
//	go run ./cmd/rpcalc \
//	  -in data/flood_exposure.csv \
//	  -target-combined 5 \
//	  -out-dir out \
//	  -xlsx out/return_periods.xlsx
//
// Observations can be read from the store instead of a CSV with -driver and
// -dsn; with both -in and -dsn the CSV is saved to the store first.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"syscall"

	"github.com/couchcryptid/nga-flood-trigger/internal/adapter/store"
	"github.com/couchcryptid/nga-flood-trigger/internal/config"
	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
	"github.com/couchcryptid/nga-flood-trigger/internal/export"
	"github.com/couchcryptid/nga-flood-trigger/internal/observability"
)

type options struct {
	in             string
	driver         string
	dsn            string
	units          []string
	direction      domain.Direction
	targetCombined float64
	rps            []float64
	outDir         string
	xlsx           string
	gumbel         bool
	gumbelMethod   string
	workers        int
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := observability.NewLogger(os.Getenv("LOG_LEVEL"), "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("rpcalc failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("rpcalc", flag.ContinueOnError)
	in := fs.String("in", "", "observation CSV with timestamp,unit,value columns")
	driver := fs.String("driver", "sqlite", "store driver: sqlite or postgres")
	dsn := fs.String("dsn", "", "store DSN; read observations from the store when -in is empty")
	units := fs.String("units", "", "comma-separated units to analyse (default all)")
	direction := fs.String("direction", "descending", "severity direction: descending or ascending")
	target := fs.Float64("target-combined", 0, "target combined return period for the threshold table (0 skips)")
	rps := fs.String("rps", "", "comma-separated return periods for Gumbel estimates (default 2,3,5,7,10)")
	outDir := fs.String("out-dir", "out", "directory for CSV output")
	xlsx := fs.String("xlsx", "", "optional xlsx workbook path")
	gumbel := fs.Bool("gumbel", false, "fit a Gumbel distribution per unit")
	gumbelMethod := fs.String("gumbel-method", "mle", "Gumbel estimator: mle or moments")
	workers := fs.Int("workers", runtime.NumCPU(), "units ranked concurrently")
	thresholds := fs.String("thresholds", "", "thresholds YAML supplying defaults for -rps and -target-combined")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *in == "" && *dsn == "" {
		fs.Usage()
		return options{}, fmt.Errorf("one of -in or -dsn is required")
	}
	dir, err := domain.ParseDirection(*direction)
	if err != nil {
		return options{}, err
	}
	targets, err := parseFloatList(*rps)
	if err != nil {
		return options{}, fmt.Errorf("-rps: %w", err)
	}
	if *thresholds != "" {
		th, err := config.LoadThresholds(*thresholds)
		if err != nil {
			return options{}, err
		}
		if !set["rps"] {
			targets = th.ReturnPeriods
		}
		if !set["target-combined"] {
			*target = th.TargetCombinedRP
		}
	}
	if *gumbelMethod != "mle" && *gumbelMethod != "moments" {
		return options{}, fmt.Errorf("-gumbel-method must be mle or moments, got %q", *gumbelMethod)
	}
	if *target != 0 && *target <= 1 {
		return options{}, fmt.Errorf("-target-combined must be > 1, got %g", *target)
	}

	return options{
		in:             *in,
		driver:         *driver,
		dsn:            *dsn,
		units:          parseList(*units),
		direction:      dir,
		targetCombined: *target,
		rps:            targets,
		outDir:         *outDir,
		xlsx:           *xlsx,
		gumbel:         *gumbel,
		gumbelMethod:   *gumbelMethod,
		workers:        *workers,
	}, nil
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	obs, err := loadObservations(ctx, opts, logger)
	if err != nil {
		return err
	}
	obs = filterUnits(obs, opts.units)

	report, err := analyse(ctx, obs, opts, logger)
	if err != nil {
		return err
	}

	paths, err := export.WriteCSVDir(opts.outDir, report)
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.Info("wrote csv", "path", p)
	}

	if opts.xlsx != "" {
		if err := writeWorkbook(opts.xlsx, report); err != nil {
			return err
		}
		logger.Info("wrote workbook", "path", opts.xlsx)
	}
	return nil
}

func loadObservations(ctx context.Context, opts options, logger *slog.Logger) ([]domain.Observation, error) {
	var st store.Store
	if opts.dsn != "" {
		s, err := store.New(opts.driver, opts.dsn)
		if err != nil {
			return nil, err
		}
		defer func() { _ = s.Close() }()
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		st = s
	}

	if opts.in == "" {
		obs, err := st.LoadObservations(ctx, opts.units)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded observations from store", "rows", len(obs))
		return obs, nil
	}

	f, err := os.Open(opts.in)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	obs, err := readObservations(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opts.in, err)
	}
	logger.Info("loaded observations from csv", "path", opts.in, "rows", len(obs))

	if st != nil {
		if err := st.SaveObservations(ctx, obs); err != nil {
			return nil, err
		}
		logger.Info("saved observations to store", "driver", opts.driver)
	}
	return obs, nil
}

func analyse(ctx context.Context, obs []domain.Observation, opts options, logger *slog.Logger) (export.Report, error) {
	peaks := domain.ExtractAnnualPeaks(obs)
	if len(peaks) == 0 {
		return export.Report{}, fmt.Errorf("no valid observations: %w", domain.ErrEmptyInput)
	}

	ranked, err := domain.CalculateGroupsRPConcurrent(ctx, peaks, opts.direction, opts.workers)
	if err != nil {
		return export.Report{}, err
	}
	combined := domain.CombineReturnPeriods(ranked)
	report := export.Report{Ranked: ranked, Combined: combined}
	logger.Info("ranked annual peaks", "peaks", len(ranked), "combined_rows", len(combined))

	if opts.targetCombined > 0 {
		table, err := domain.BuildThresholdTable(peaks, combined, opts.targetCombined, opts.direction)
		if err != nil {
			return export.Report{}, err
		}
		report.Thresholds = &table

		exceed, err := domain.ExceedanceYears(peaks, table.Thresholds, table.IndividualRP, opts.direction)
		if err != nil {
			return export.Report{}, err
		}
		report.Exceedances = exceed

		at := domain.CombinedRPAt(ranked, table.IndividualRP)
		logger.Info("threshold table built",
			"target_combined_rp", table.TargetCombinedRP,
			"rp_ind", table.IndividualRP,
			"qualifying_years", at.QualifyingYears,
			"exceedances", len(exceed),
		)
	}

	if opts.gumbel {
		fit := domain.FitGumbel
		if opts.gumbelMethod == "moments" {
			fit = domain.MomentsGumbel
		}
		report.Gumbel = gumbelRows(obs, opts.rps, fit, logger)
	}
	return report, nil
}

// gumbelRows fits each unit separately. Units that cannot be fitted are logged
// and skipped.
func gumbelRows(obs []domain.Observation, rps []float64, fit domain.Fitter, logger *slog.Logger) []export.GumbelRow {
	byUnit := make(map[string][]domain.Observation)
	for _, o := range obs {
		byUnit[o.Unit] = append(byUnit[o.Unit], o)
	}
	units := make([]string, 0, len(byUnit))
	for u := range byUnit {
		units = append(units, u)
	}
	slices.Sort(units)

	var out []export.GumbelRow
	for _, u := range units {
		table, params, err := domain.EstimateReturnPeriodsWith(byUnit[u], rps, fit)
		if err != nil {
			logger.Warn("gumbel fit skipped", "unit", u, "error", err)
			continue
		}
		logger.Debug("gumbel fit", "unit", u, "loc", params.Loc, "scale", params.Scale)
		for _, row := range table {
			out = append(out, export.GumbelRow{Unit: u, ReturnPeriod: row.ReturnPeriod, Value: row.Value})
		}
	}
	return out
}

func writeWorkbook(path string, report export.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return export.WriteWorkbook(f, report)
}
