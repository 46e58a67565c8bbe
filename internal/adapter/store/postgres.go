package store

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS forecasts (
		monitoring_date DATE NOT NULL,
		source TEXT NOT NULL,
		station TEXT NOT NULL,
		issued_time TIMESTAMPTZ NOT NULL,
		valid_time TIMESTAMPTZ NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (monitoring_date, source, station, issued_time, valid_time)
	)`,
	`CREATE TABLE IF NOT EXISTS triggers (
		run_id TEXT PRIMARY KEY,
		monitoring_date DATE NOT NULL,
		level TEXT NOT NULL,
		glofas_exceeds BOOLEAN NOT NULL,
		google_exceeds BOOLEAN NOT NULL,
		triggered BOOLEAN NOT NULL,
		glofas_max DOUBLE PRECISION,
		google_max DOUBLE PRECISION,
		glofas_threshold DOUBLE PRECISION NOT NULL,
		google_threshold DOUBLE PRECISION NOT NULL,
		row_count INTEGER NOT NULL,
		flash_flood TEXT,
		evaluated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_triggers_evaluated_at ON triggers(evaluated_at)`,
	`CREATE TABLE IF NOT EXISTS observations (
		unit TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (unit, ts)
	)`,
}

// NewPostgres opens a PostgreSQL store through the pgx database/sql driver.
func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/nga_flood?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &sqlStore{db: db, d: dialect{
		schema:     postgresSchema,
		rebind:     rebindDollar,
		encodeTime: func(t time.Time) any { return t.UTC() },
		encodeDate: func(t time.Time) any { return domain.DateOnly(t) },
	}}, nil
}

// rebindDollar rewrites ? placeholders to $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
