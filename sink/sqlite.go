package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mklimuk/airmon/poll"
)

var (
	_ poll.Sink            = &SQLite{}
	_ poll.InvalidRecorder = &SQLite{}
)

const writeTimeout = 5 * time.Second

// SQLite stores every forwarded value as a row.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

type SQLiteOpt func(*SQLite)

func WithSQLiteLogger(logger *slog.Logger) SQLiteOpt {
	return func(s *SQLite) {
		s.log = logger
	}
}

func WithSQLiteClock(now func() time.Time) SQLiteOpt {
	return func(s *SQLite) {
		s.now = now
	}
}

// OpenSQLite opens (or creates) the database at path and creates the tables.
func OpenSQLite(path string, opts ...SQLiteOpt) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: error opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)
	if _, err = db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS readings (
            id INTEGER PRIMARY KEY,
            timestamp DATETIME NOT NULL,
            series TEXT NOT NULL,
            field TEXT NOT NULL,
            value REAL NOT NULL
        );
        CREATE INDEX IF NOT EXISTS readings_series_field ON readings (series, field, timestamp);
        CREATE TABLE IF NOT EXISTS invalid_readings (
            id INTEGER PRIMARY KEY,
            timestamp DATETIME NOT NULL,
            series TEXT NOT NULL,
            reason TEXT
        );
    `)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: error creating tables: %w", err)
	}
	s := &SQLite{db: db, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLite) Forward(ctx context.Context, series, field string, value float64) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (timestamp, series, field, value) VALUES (?, ?, ?, ?)
	`, s.now().UTC(), series, field, value)
	if err != nil {
		s.log.Error("could not store reading", "series", series, "field", field, "error", err)
	}
}

func (s *SQLite) RecordInvalid(ctx context.Context, series string, reason error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	var text sql.NullString
	if reason != nil {
		text = sql.NullString{String: reason.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invalid_readings (timestamp, series, reason) VALUES (?, ?, ?)
	`, s.now().UTC(), series, text)
	if err != nil {
		s.log.Error("could not store invalid reading", "series", series, "error", err)
	}
}

// Latest returns the most recent value stored for series and field.
func (s *SQLite) Latest(ctx context.Context, series, field string) (float64, time.Time, error) {
	var value float64
	var at time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT value, timestamp FROM readings
		WHERE series = ? AND field = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1
	`, series, field).Scan(&value, &at)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("sqlite: could not query %s/%s: %w", series, field, err)
	}
	return value, at, nil
}

// InvalidCount returns how many invalid cycles were stored for series.
func (s *SQLite) InvalidCount(ctx context.Context, series string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invalid_readings WHERE series = ?`, series).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: could not count invalid readings: %w", err)
	}
	return n, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
