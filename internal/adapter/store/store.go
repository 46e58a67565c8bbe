// Package store persists monitoring forecasts, trigger records and historical
// flood-exposure observations in PostgreSQL or SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface used by the pipeline and the rpcalc command.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	SaveForecasts(ctx context.Context, rows []domain.ForecastRow) error
	LoadForecasts(ctx context.Context, monitoringDate time.Time) ([]domain.ForecastRow, error)

	SaveTrigger(ctx context.Context, rec domain.TriggerRecord) error
	LatestTrigger(ctx context.Context) (domain.TriggerRecord, error)

	SaveObservations(ctx context.Context, obs []domain.Observation) error
	LoadObservations(ctx context.Context, units []string) ([]domain.Observation, error)
}

// New opens a store for driver ("postgres" or "sqlite").
func New(driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
}

// dialect captures what differs between the two SQL engines.
type dialect struct {
	schema     []string
	rebind     func(query string) string
	encodeTime func(t time.Time) any
	encodeDate func(t time.Time) any
}

// sqlStore implements Store over database/sql for any dialect.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStore) Init(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const upsertForecast = `INSERT INTO forecasts (monitoring_date, source, station, issued_time, valid_time, value)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (monitoring_date, source, station, issued_time, valid_time)
	DO UPDATE SET value = excluded.value`

// SaveForecasts upserts forecast rows in one transaction.
func (s *sqlStore) SaveForecasts(ctx context.Context, rows []domain.ForecastRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, upsertForecast, func(stmt *sql.Stmt) error {
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				s.d.encodeDate(r.MonitoringDate),
				string(r.Source),
				r.Station,
				s.d.encodeTime(r.IssuedTime),
				s.d.encodeTime(r.ValidTime),
				r.Value,
			); err != nil {
				return fmt.Errorf("save forecast %s/%s: %w", r.Source, r.Station, err)
			}
		}
		return nil
	})
}

// LoadForecasts returns every forecast row stored for monitoringDate,
// ordered by valid time then source.
func (s *sqlStore) LoadForecasts(ctx context.Context, monitoringDate time.Time) ([]domain.ForecastRow, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		`SELECT monitoring_date, source, station, issued_time, valid_time, value
		FROM forecasts WHERE monitoring_date = ?
		ORDER BY valid_time, source, station, issued_time`),
		s.d.encodeDate(domain.DateOnly(monitoringDate)))
	if err != nil {
		return nil, fmt.Errorf("load forecasts: %w", err)
	}
	defer rows.Close()

	var out []domain.ForecastRow
	for rows.Next() {
		var r domain.ForecastRow
		var src string
		if err := rows.Scan(
			timeScanner{&r.MonitoringDate},
			&src,
			&r.Station,
			timeScanner{&r.IssuedTime},
			timeScanner{&r.ValidTime},
			&r.Value,
		); err != nil {
			return nil, fmt.Errorf("scan forecast: %w", err)
		}
		r.Source = domain.ForecastSource(src)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveTrigger stores a trigger record, replacing any record with the same run ID.
func (s *sqlStore) SaveTrigger(ctx context.Context, rec domain.TriggerRecord) error {
	flashFlood, err := encodeFlashFlood(rec.FlashFlood)
	if err != nil {
		return fmt.Errorf("save trigger %s: %w", rec.RunID, err)
	}
	_, err = s.db.ExecContext(ctx, s.d.rebind(
		`INSERT INTO triggers (run_id, monitoring_date, level, glofas_exceeds, google_exceeds, triggered,
			glofas_max, google_max, glofas_threshold, google_threshold, row_count, flash_flood, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			triggered = excluded.triggered,
			glofas_exceeds = excluded.glofas_exceeds,
			google_exceeds = excluded.google_exceeds,
			glofas_max = excluded.glofas_max,
			google_max = excluded.google_max,
			row_count = excluded.row_count,
			flash_flood = excluded.flash_flood,
			evaluated_at = excluded.evaluated_at`),
		rec.RunID,
		s.d.encodeDate(rec.MonitoringDate),
		string(rec.Level),
		rec.GloFASExceeds,
		rec.GoogleExceeds,
		rec.Triggered,
		nullFloat(rec.GloFASMax),
		nullFloat(rec.GoogleMax),
		rec.Thresholds.GloFAS,
		rec.Thresholds.Google,
		rec.RowCount,
		flashFlood,
		s.d.encodeTime(rec.EvaluatedAt),
	)
	if err != nil {
		return fmt.Errorf("save trigger %s: %w", rec.RunID, err)
	}
	return nil
}

// LatestTrigger returns the most recently evaluated trigger record, or
// ErrNotFound when none has been saved.
func (s *sqlStore) LatestTrigger(ctx context.Context) (domain.TriggerRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, monitoring_date, level, glofas_exceeds, google_exceeds, triggered,
			glofas_max, google_max, glofas_threshold, google_threshold, row_count, flash_flood, evaluated_at
		FROM triggers ORDER BY evaluated_at DESC, run_id DESC LIMIT 1`)

	var (
		rec               domain.TriggerRecord
		level             string
		gloMax, googleMax sql.NullFloat64
		flashFlood        sql.NullString
	)
	err := row.Scan(
		&rec.RunID,
		timeScanner{&rec.MonitoringDate},
		&level,
		&rec.GloFASExceeds,
		&rec.GoogleExceeds,
		&rec.Triggered,
		&gloMax,
		&googleMax,
		&rec.Thresholds.GloFAS,
		&rec.Thresholds.Google,
		&rec.RowCount,
		&flashFlood,
		timeScanner{&rec.EvaluatedAt},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TriggerRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.TriggerRecord{}, fmt.Errorf("latest trigger: %w", err)
	}
	rec.Level = domain.TriggerLevel(level)
	rec.GloFASMax = floatPtr(gloMax)
	rec.GoogleMax = floatPtr(googleMax)
	if rec.FlashFlood, err = decodeFlashFlood(flashFlood); err != nil {
		return domain.TriggerRecord{}, fmt.Errorf("latest trigger %s: %w", rec.RunID, err)
	}
	return rec, nil
}

const upsertObservation = `INSERT INTO observations (unit, ts, value) VALUES (?, ?, ?)
	ON CONFLICT (unit, ts) DO UPDATE SET value = excluded.value`

// SaveObservations upserts observations. Missing values are not stored.
func (s *sqlStore) SaveObservations(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	return s.inTx(ctx, upsertObservation, func(stmt *sql.Stmt) error {
		for _, o := range obs {
			if o.Missing() {
				continue
			}
			if _, err := stmt.ExecContext(ctx, o.Unit, s.d.encodeTime(o.Time), o.Value); err != nil {
				return fmt.Errorf("save observation %s: %w", o.Unit, err)
			}
		}
		return nil
	})
}

// LoadObservations returns the stored observations for units (all units when
// empty), ordered by unit then time.
func (s *sqlStore) LoadObservations(ctx context.Context, units []string) ([]domain.Observation, error) {
	query := `SELECT unit, ts, value FROM observations`
	args := make([]any, 0, len(units))
	if len(units) > 0 {
		query += ` WHERE unit IN (?` + strings.Repeat(`, ?`, len(units)-1) + `)`
		for _, u := range units {
			args = append(args, u)
		}
	}
	query += ` ORDER BY unit, ts`

	rows, err := s.db.QueryContext(ctx, s.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		var o domain.Observation
		if err := rows.Scan(&o.Unit, timeScanner{&o.Time}, &o.Value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *sqlStore) inTx(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.d.rebind(query))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// encodeFlashFlood stores the flash-flood result as a JSON document.
func encodeFlashFlood(ff *domain.ExposureTrigger) (sql.NullString, error) {
	if ff == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(ff)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode flash flood: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeFlashFlood(v sql.NullString) (*domain.ExposureTrigger, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var ff domain.ExposureTrigger
	if err := json.Unmarshal([]byte(v.String), &ff); err != nil {
		return nil, fmt.Errorf("decode flash flood: %w", err)
	}
	return &ff, nil
}
