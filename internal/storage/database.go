package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/tarottimer/internal/domain"
)

// KeyPrefix is prepended to the ISO date to form a record key.
const KeyPrefix = "daily_"

// Key returns the storage key for date, e.g. "daily_2025-10-21".
func Key(date domain.CalendarDate) string {
	return KeyPrefix + date.String()
}

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get retrieves the record stored under key. It returns nil, nil when no
// record exists.
func (db *DB) Get(ctx context.Context, key string) (*domain.DailyRecord, error) {
	var payload string
	row := db.conn.QueryRowContext(ctx, `
		SELECT payload FROM daily_records WHERE key = ?
	`, key)

	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Record not found
		}
		return nil, fmt.Errorf("failed to get record %s: %w", key, err)
	}

	var rec domain.DailyRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return &rec, nil
}

// Set inserts or replaces the record stored under key.
func (db *DB) Set(ctx context.Context, key string, rec *domain.DailyRecord) error {
	if rec == nil {
		return fmt.Errorf("failed to set record %s: nil record", key)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO daily_records (key, date, record_id, payload, deck_hash, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			date = excluded.date,
			record_id = excluded.record_id,
			payload = excluded.payload,
			deck_hash = excluded.deck_hash,
			saved_at = excluded.saved_at
	`,
		key,
		rec.Date.String(),
		rec.ID,
		string(payload),
		rec.DeckHash,
		rec.SavedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set record %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a record is stored under key.
func (db *DB) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, `
		SELECT 1 FROM daily_records WHERE key = ? LIMIT 1
	`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check record %s: %w", key, err)
	}
	return true, nil
}

// ListDates returns the dates of every stored daily record, newest first.
func (db *DB) ListDates(ctx context.Context) ([]domain.CalendarDate, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT key FROM daily_records
		WHERE key LIKE ?
		ORDER BY date DESC
	`, KeyPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var dates []domain.CalendarDate
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		d, err := domain.ParseDate(strings.TrimPrefix(key, KeyPrefix))
		if err != nil {
			continue // foreign key format; not a daily record
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return dates, nil
}

// Source represents a reference deck origin, either a local path or a Git URL.
type Source struct {
	ID         int64
	Source     string
	DeckHash   string
	CardCount  int
	LastLoaded sql.NullTime
}

// RecordSource upserts the fingerprint of a loaded deck and returns its ID.
func (db *DB) RecordSource(ctx context.Context, source, deckHash string, cardCount int) (int64, error) {
	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO deck_sources (source, deck_hash, card_count, last_loaded)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			deck_hash = excluded.deck_hash,
			card_count = excluded.card_count,
			last_loaded = excluded.last_loaded
		RETURNING id
	`, source, deckHash, cardCount, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record source %s: %w", source, err)
	}
	return id, nil
}

// GetAllSources retrieves all recorded deck sources.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, source, deck_hash, card_count, last_loaded
		FROM deck_sources
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Source, &s.DeckHash, &s.CardCount, &s.LastLoaded); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
