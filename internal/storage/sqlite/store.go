// Package sqlite implements the SQLite storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/studylit/internal/migration"
	"github.com/julianstephens/studylit/migrations"
)

type Store struct {
	path string
	db   *sql.DB
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
	}
}

func (s *Store) open() error {
	db, err := sql.Open("sqlite", s.path+"?_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Callers serialize writes; one connection is enough
	db.SetMaxOpenConns(1)
	s.db = db
	return nil
}

func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	if err := s.runMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'studylit init' first")
	}
	if err := s.open(); err != nil {
		return err
	}

	runner, err := s.runner()
	if err != nil {
		return err
	}
	if err := runner.ValidateVersion(ctx); err != nil {
		return err
	}
	// Pick up migrations added since the database was created
	if _, err := runner.Apply(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS), nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	runner, err := s.runner()
	if err != nil {
		return err
	}
	_, err = runner.Apply(ctx)
	return err
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// GetDB returns the underlying database connection, or nil before Init/Load.
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// SchemaVersion reports the current and latest known schema versions.
func (s *Store) SchemaVersion(ctx context.Context) (current, latest int, err error) {
	runner, err := s.runner()
	if err != nil {
		return 0, 0, err
	}
	if current, err = runner.CurrentVersion(ctx); err != nil {
		return 0, 0, err
	}
	if latest, err = runner.LatestVersion(); err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}

// nextSequence bumps and returns the named sequence inside tx.
func nextSequence(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, "UPDATE sequences SET value = value + 1 WHERE name = ?", name); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", name, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT value FROM sequences WHERE name = ?", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read %s sequence: %w", name, err)
	}
	return id, nil
}

// withTx runs fn in a transaction bound to ctx. If ctx is done before commit the
// transaction is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime coerces empty or NULL columns to the zero time.
func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s.String, err)
	}
	return t, nil
}
