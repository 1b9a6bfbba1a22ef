package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"kimai-deck/internal/ports"
)

// Client implements ports.Journal on a MySQL table.
type Client struct {
	db  *sql.DB
	log *slog.Logger
}

var _ ports.Journal = (*Client)(nil)

// NewClient opens a MySQL connection using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname
func NewClient(ctx context.Context, dsn string, log *slog.Logger) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	dsn, err := WithParseTime(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Client{db: db, log: log}, nil
}

// WithParseTime returns dsn with parseTime enabled, which Recent relies on
// to scan DATETIME columns.
func WithParseTime(dsn string) (string, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: parse DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Record appends one key transition to toggle_events.
func (c *Client) Record(ctx context.Context, ev ports.ToggleEvent) error {
	const q = `
INSERT INTO toggle_events
  (key_name, kind, entry_id, project_id, activity_id, begin_raw, recorded_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?);
`
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	var entry any
	if ev.EntryID > 0 {
		entry = ev.EntryID
	}
	if _, err := c.db.ExecContext(ctx, q,
		ev.Key,
		ev.Kind,
		entry,
		ev.ProjectID,
		ev.ActivityID,
		ev.Begin,
		at.UTC(),
	); err != nil {
		return fmt.Errorf("mysql: record %s event: %w", ev.Kind, err)
	}
	c.log.Debug("journal event recorded", slog.String("key", ev.Key), slog.String("kind", ev.Kind), slog.Int64("entry", ev.EntryID))
	return nil
}

// Recent returns up to limit events, newest first.
func (c *Client) Recent(ctx context.Context, limit int) ([]ports.ToggleEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT key_name, kind, entry_id, project_id, activity_id, begin_raw, recorded_at
FROM toggle_events
ORDER BY recorded_at DESC, id DESC
LIMIT ?;
`
	rows, err := c.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("mysql: query journal: %w", err)
	}
	defer rows.Close()

	var out []ports.ToggleEvent
	for rows.Next() {
		var (
			ev    ports.ToggleEvent
			entry sql.NullInt64
		)
		if err := rows.Scan(&ev.Key, &ev.Kind, &entry, &ev.ProjectID, &ev.ActivityID, &ev.Begin, &ev.At); err != nil {
			return nil, fmt.Errorf("mysql: scan journal row: %w", err)
		}
		ev.EntryID = entry.Int64
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close closes the underlying DB.
func (c *Client) Close() error { return c.db.Close() }
