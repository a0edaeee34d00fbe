package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
)

const (
	KeyEvents   = "calendarEvents"
	KeySettings = "settings"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`

// Store is a small key-value store of JSON documents on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (and creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenSQLite opens a single-connection SQLite handle with a busy timeout.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetJSON decodes the value at key into v. found is false for a missing key.
func (s *Store) GetJSON(ctx context.Context, key string, v any) (found bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) PutJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
    `, key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// SaveEvents replaces the stored event list.
func (s *Store) SaveEvents(ctx context.Context, events []model.Event) error {
	if events == nil {
		events = []model.Event{}
	}
	if err := s.PutJSON(ctx, KeyEvents, events); err != nil {
		return err
	}
	appLog.Debug("events saved", "count", len(events))
	return nil
}

// LoadEvents returns the stored events. Entries without a PersistentUID get
// a fresh one, so older data keeps working with the layout cache.
func (s *Store) LoadEvents(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if _, err := s.GetJSON(ctx, KeyEvents, &events); err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].PersistentUID == "" {
			events[i].PersistentUID = model.NewPersistentUID()
		}
	}
	return events, nil
}
