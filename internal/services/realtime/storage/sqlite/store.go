// Package sqlite provides a SQLite-backed board snapshot store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/inkboard/inkboard/internal/platform/storage/sqlitemigrate"
	"github.com/inkboard/inkboard/internal/services/realtime/storage"
	"github.com/inkboard/inkboard/internal/services/realtime/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists board canvas snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite board store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetCanvas returns the latest snapshot for a board.
func (s *Store) GetCanvas(ctx context.Context, boardID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	if boardID <= 0 {
		return "", fmt.Errorf("board id must be positive")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT canvas FROM boards WHERE id = ?`,
		boardID,
	)

	var canvas string
	if err := row.Scan(&canvas); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get canvas: %w", err)
	}
	return canvas, nil
}

// SetCanvas replaces the snapshot for a board. The write is a full upsert:
// the most recent call wins and prior concurrent edits are discarded.
func (s *Store) SetCanvas(ctx context.Context, boardID int64, canvas string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if boardID <= 0 {
		return fmt.Errorf("board id must be positive")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO boards (id, canvas, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   canvas = excluded.canvas,
		   updated_at = excluded.updated_at`,
		boardID,
		canvas,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set canvas: %w", err)
	}
	return nil
}

var _ storage.BoardStore = (*Store)(nil)
