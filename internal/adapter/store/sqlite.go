package store

import (
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS forecasts (
		monitoring_date TEXT NOT NULL,
		source TEXT NOT NULL,
		station TEXT NOT NULL,
		issued_time TEXT NOT NULL,
		valid_time TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (monitoring_date, source, station, issued_time, valid_time)
	)`,
	`CREATE TABLE IF NOT EXISTS triggers (
		run_id TEXT PRIMARY KEY,
		monitoring_date TEXT NOT NULL,
		level TEXT NOT NULL,
		glofas_exceeds INTEGER NOT NULL,
		google_exceeds INTEGER NOT NULL,
		triggered INTEGER NOT NULL,
		glofas_max REAL,
		google_max REAL,
		glofas_threshold REAL NOT NULL,
		google_threshold REAL NOT NULL,
		row_count INTEGER NOT NULL,
		flash_flood TEXT,
		evaluated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_triggers_evaluated_at ON triggers(evaluated_at)`,
	`CREATE TABLE IF NOT EXISTS observations (
		unit TEXT NOT NULL,
		ts TEXT NOT NULL,
		value REAL NOT NULL,
		PRIMARY KEY (unit, ts)
	)`,
}

// NewSQLite opens a SQLite store with the pure-Go modernc driver.
func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:nga-flood.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers.
	db.SetMaxOpenConns(1)
	return &sqlStore{db: db, d: dialect{
		schema:     sqliteSchema,
		rebind:     func(q string) string { return q },
		encodeTime: func(t time.Time) any { return t.UTC().Format(textTimeLayout) },
		encodeDate: func(t time.Time) any { return domain.FormatDate(t) },
	}}, nil
}
