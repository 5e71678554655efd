// Package store persists accounts and settings across restarts in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "modernc.org/sqlite"

	"github.com/tunez/knob/internal/registry"
)

// SettingFirmwareURL overrides the firmware update location.
const SettingFirmwareURL = "firmware_url"

// Store handles account and settings persistence to SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the store at dbPath. If dbPath is empty, uses the
// default location.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		var err error
		dbPath, err = DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve state db path: %w", err)
		}
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DefaultPath is the state database location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	name := "knob"
	if runtime.GOOS == "windows" {
		name = "Knob"
	}
	return filepath.Join(dir, name, "state", "knob.db"), nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) ensureSchema(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			position INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			token TEXT NOT NULL DEFAULT '',
			selected_device_id TEXT NOT NULL DEFAULT '',
			selected INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate state schema: %w", err)
		}
	}
	return nil
}

// SaveAccounts replaces the stored accounts with records, keeping their
// order.
func (s *Store) SaveAccounts(ctx context.Context, records []registry.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO accounts (position, id, name, token, selected_device_id, selected)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		selected := 0
		if rec.Selected {
			selected = 1
		}
		if _, err := stmt.ExecContext(ctx, i, rec.ID, rec.Name, rec.Token, rec.SelectedDeviceID, selected); err != nil {
			return fmt.Errorf("insert account %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadAccounts reads the stored accounts in login order.
func (s *Store) LoadAccounts(ctx context.Context) ([]registry.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, token, selected_device_id, selected FROM accounts ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()

	var out []registry.Record
	for rows.Next() {
		var rec registry.Record
		var selected int
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Token, &rec.SelectedDeviceID, &selected); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		rec.Selected = selected == 1
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

// Setting returns a stored setting, or "" when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load setting %s: %w", key, err)
	}
	return v, nil
}

// SetSetting stores value under key. An empty value removes the setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	}
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// Clear removes all persisted data.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
