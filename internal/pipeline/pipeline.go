package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
	"github.com/couchcryptid/nga-flood-trigger/internal/observability"
)

// ForecastFetcher retrieves the forecast rows a source issued for a monitoring date.
type ForecastFetcher interface {
	Name() string
	FetchForecasts(ctx context.Context, monitoringDate time.Time) ([]domain.ForecastRow, error)
}

// Repository persists forecast rows and trigger records and serves the
// exposure observations behind the flash-flood trigger.
type Repository interface {
	SaveForecasts(ctx context.Context, rows []domain.ForecastRow) error
	LoadForecasts(ctx context.Context, monitoringDate time.Time) ([]domain.ForecastRow, error)
	SaveTrigger(ctx context.Context, rec domain.TriggerRecord) error
	LoadObservations(ctx context.Context, units []string) ([]domain.Observation, error)
}

// TriggerPublisher announces trigger records downstream.
type TriggerPublisher interface {
	Publish(ctx context.Context, rec domain.TriggerRecord) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	maxAttempts    = 4
)

// Options configures a Pipeline.
type Options struct {
	Level      domain.TriggerLevel
	Thresholds domain.TriggerThresholds
	Interval   time.Duration
	// LGAs enables the flash-flood trigger when non-empty.
	LGAs          []domain.LGAThreshold
	RollingWindow int
	// Clock drives the run schedule and backoff; nil means real time.
	Clock clockwork.Clock
}

// Pipeline orchestrates the collect-evaluate-publish monitoring cycle.
type Pipeline struct {
	fetchers  []ForecastFetcher
	repo      Repository
	publisher TriggerPublisher
	opts      Options
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline. publisher may be nil when records are only stored.
func New(fetchers []ForecastFetcher, repo Repository, publisher TriggerPublisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.Level == "" {
		opts.Level = domain.LevelActivation
	}
	if opts.RollingWindow <= 0 {
		opts.RollingWindow = domain.DefaultRollingWindow
	}
	return &Pipeline{
		fetchers:  fetchers,
		repo:      repo,
		publisher: publisher,
		opts:      opts,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the pipeline has completed a run,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a monitoring run yet")
	}
	return nil
}

// Ready reports whether a run has completed.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// Run evaluates the current date immediately and then once per interval until
// the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.opts.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", p.opts.Interval)
	}
	p.logger.Info("pipeline started",
		"interval", p.opts.Interval,
		"level", p.opts.Level,
		"fetchers", len(p.fetchers),
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.runWithRetry(ctx, p.clock.Now())

	ticker := p.clock.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case now := <-ticker.Chan():
			p.runWithRetry(ctx, now)
		}
	}
}

// runWithRetry retries failed runs with exponential backoff. A date with no
// monitoring data is not retried; the next tick tries again.
func (p *Pipeline) runWithRetry(ctx context.Context, now time.Time) {
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := p.RunOnce(ctx, now)
		if err == nil || ctx.Err() != nil {
			return
		}
		if errors.Is(err, domain.ErrNoMonitoringData) {
			p.logger.Warn("no monitoring data, waiting for next run", "monitoring_date", domain.FormatDate(now))
			return
		}
		p.logger.Error("monitoring run failed", "error", err, "attempt", attempt)
		if attempt == maxAttempts || !p.sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// RunOnce collects forecasts for monitoringDate, evaluates the trigger, stores
// the record and publishes it.
func (p *Pipeline) RunOnce(ctx context.Context, monitoringDate time.Time) (domain.TriggerRecord, error) {
	start := p.clock.Now()
	day := domain.DateOnly(monitoringDate)

	p.Collect(ctx, day)

	rec, err := p.Check(ctx, day)
	if err != nil {
		p.metrics.MonitoringRuns.WithLabelValues("error").Inc()
		return domain.TriggerRecord{}, err
	}

	p.metrics.MonitoringRuns.WithLabelValues("success").Inc()
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	return rec, nil
}

// Collect fetches every source for day and stores what it gets. A failing
// source is logged and skipped so the others still land.
func (p *Pipeline) Collect(ctx context.Context, day time.Time) {
	for _, f := range p.fetchers {
		rows, err := f.FetchForecasts(ctx, day)
		if err != nil {
			p.metrics.ExtractErrors.Inc()
			p.logger.Warn("fetch forecasts failed", "source", f.Name(), "monitoring_date", domain.FormatDate(day), "error", err)
			continue
		}
		if len(rows) == 0 {
			p.logger.Info("no forecasts issued", "source", f.Name(), "monitoring_date", domain.FormatDate(day))
			continue
		}
		if err := p.repo.SaveForecasts(ctx, rows); err != nil {
			p.metrics.ExtractErrors.Inc()
			p.logger.Error("save forecasts failed", "source", f.Name(), "error", err)
			continue
		}
		for _, r := range rows {
			p.metrics.ForecastRows.WithLabelValues(string(r.Source)).Inc()
		}
		p.logger.Debug("forecasts stored", "source", f.Name(), "rows", len(rows))
	}
}

// Check evaluates the latest issue of every stored source for day, adds the
// flash-flood result when configured, then saves and publishes the record.
func (p *Pipeline) Check(ctx context.Context, day time.Time) (domain.TriggerRecord, error) {
	rows, err := p.repo.LoadForecasts(ctx, day)
	if err != nil {
		return domain.TriggerRecord{}, fmt.Errorf("load forecasts: %w", err)
	}

	rec, err := domain.EvaluateTrigger(day, domain.LatestIssued(rows), p.opts.Thresholds, p.opts.Level)
	if err != nil {
		return domain.TriggerRecord{}, err
	}
	rec.RunID = uuid.NewString()

	if len(p.opts.LGAs) > 0 {
		ff, err := p.checkFlashFlood(ctx, day)
		switch {
		case err == nil:
			rec.FlashFlood = &ff
		case errors.Is(err, domain.ErrNoMonitoringData):
			// Exposure estimates lag by a day.
			p.logger.Warn("no exposure data for flash-flood trigger", "monitoring_date", domain.FormatDate(day))
		default:
			return domain.TriggerRecord{}, err
		}
	}

	if err := p.repo.SaveTrigger(ctx, rec); err != nil {
		return domain.TriggerRecord{}, fmt.Errorf("save trigger: %w", err)
	}
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, rec); err != nil {
			return domain.TriggerRecord{}, fmt.Errorf("publish trigger: %w", err)
		}
		p.metrics.TriggersPublished.Inc()
	}

	status := "not_activated"
	last := 0.0
	if rec.Triggered {
		status = "activated"
		last = 1
	}
	p.metrics.TriggerEvaluations.WithLabelValues(string(rec.Level), status).Inc()
	p.metrics.LastTriggered.Set(last)

	if ff := rec.FlashFlood; ff != nil {
		ffStatus := "not_activated"
		if ff.Triggered {
			ffStatus = "activated"
		}
		p.metrics.TriggerEvaluations.WithLabelValues("flash_flood", ffStatus).Inc()
		p.logger.Info("flash-flood trigger evaluated",
			"run_id", rec.RunID,
			"monitoring_date", domain.FormatDate(day),
			"triggered", ff.Triggered,
			"exceeding_lgas", ff.ExceedingLGAs(),
		)
	}

	p.logger.Info("trigger evaluated",
		"run_id", rec.RunID,
		"monitoring_date", domain.FormatDate(day),
		"level", rec.Level,
		"status", rec.Status(),
		"glofas_exceeds", rec.GloFASExceeds,
		"google_exceeds", rec.GoogleExceeds,
		"rows", rec.RowCount,
	)
	return rec, nil
}

func (p *Pipeline) checkFlashFlood(ctx context.Context, day time.Time) (domain.ExposureTrigger, error) {
	pcodes := make([]string, len(p.opts.LGAs))
	for i, l := range p.opts.LGAs {
		pcodes[i] = l.PCode
	}
	obs, err := p.repo.LoadObservations(ctx, pcodes)
	if err != nil {
		return domain.ExposureTrigger{}, fmt.Errorf("load exposure: %w", err)
	}
	return domain.EvaluateExposureTrigger(obs, p.opts.LGAs, p.opts.RollingWindow, day)
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
