package migration

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/studylit/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func migrationFS(files map[string]string) fstest.MapFS {
	m := fstest.MapFS{}
	for name, content := range files {
		m[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return m
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	return count == 1
}

func TestCurrentVersion(t *testing.T) {
	ctx := context.Background()
	runner := NewRunner(setupTestDB(t), migrationFS(map[string]string{
		"001_test.sql": "CREATE TABLE test (id INTEGER);",
	}))

	version, err := runner.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0, got %d", version)
	}

	if err := runner.SetVersion(ctx, 5); err != nil {
		t.Fatalf("SetVersion failed: %v", err)
	}
	if version, _ = runner.CurrentVersion(ctx); version != 5 {
		t.Errorf("expected version 5, got %d", version)
	}
}

func TestReadMigrationFiles(t *testing.T) {
	runner := NewRunner(setupTestDB(t), migrationFS(map[string]string{
		"003_another.sql": "CREATE TABLE test2 (id INTEGER);",
		"001_init.sql":    "CREATE TABLE test1 (id INTEGER);",
		"002_update.sql":  "ALTER TABLE test1 ADD COLUMN name TEXT;",
		"README.md":       "not a migration",
	}))

	migrations, err := runner.ReadMigrationFiles()
	if err != nil {
		t.Fatalf("ReadMigrationFiles failed: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	wantNames := []string{"init", "update", "another"}
	for i, m := range migrations {
		if m.Version != i+1 || m.Name != wantNames[i] {
			t.Errorf("migration %d: got version %d name %q", i, m.Version, m.Name)
		}
	}

	latest, err := runner.LatestVersion()
	if err != nil || latest != 3 {
		t.Errorf("LatestVersion() = %d, %v", latest, err)
	}
}

func TestReadMigrationFilesInvalid(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{name: "no underscore", files: map[string]string{"001init.sql": "SELECT 1;"}, wantErr: "invalid migration filename"},
		{name: "zero version", files: map[string]string{"000_init.sql": "SELECT 1;"}, wantErr: "version must be at least 1"},
		{name: "non numeric", files: map[string]string{"abc_init.sql": "SELECT 1;"}, wantErr: "invalid version number"},
		{name: "duplicate", files: map[string]string{"001_a.sql": "SELECT 1;", "001_b.sql": "SELECT 1;"}, wantErr: "duplicate migration version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(setupTestDB(t), migrationFS(tt.files))
			_, err := runner.ReadMigrationFiles()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyFromScratchAndIncremental(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	files := map[string]string{
		"001_init.sql": "CREATE TABLE notes (id INTEGER PRIMARY KEY, title TEXT);",
	}

	count, err := NewRunner(db, migrationFS(files)).Apply(ctx)
	if err != nil || count != 1 {
		t.Fatalf("first Apply() = %d, %v", count, err)
	}

	files["002_reminders.sql"] = "CREATE TABLE reminders (id INTEGER PRIMARY KEY);"
	runner := NewRunner(db, migrationFS(files))
	count, err = runner.Apply(ctx)
	if err != nil || count != 1 {
		t.Fatalf("second Apply() = %d, %v", count, err)
	}

	count, err = runner.Apply(ctx)
	if err != nil || count != 0 {
		t.Fatalf("no-op Apply() = %d, %v", count, err)
	}

	if version, _ := runner.CurrentVersion(ctx); version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
	if !tableExists(t, db, "notes") || !tableExists(t, db, "reminders") {
		t.Error("expected both tables to exist")
	}
}

func TestApplyRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, migrationFS(map[string]string{
		"001_init.sql": `
			CREATE TABLE notes (id INTEGER PRIMARY KEY);
			THIS IS INVALID SQL;
		`,
	}))

	if _, err := runner.Apply(ctx); err == nil {
		t.Fatal("Apply should have failed with invalid SQL")
	}
	if version, _ := runner.CurrentVersion(ctx); version != 0 {
		t.Errorf("expected version 0 after failed migration, got %d", version)
	}
	if tableExists(t, db, "notes") {
		t.Error("table should not exist after failed migration")
	}
}

func TestValidateVersionNewerDatabase(t *testing.T) {
	ctx := context.Background()
	runner := NewRunner(setupTestDB(t), migrationFS(map[string]string{
		"001_init.sql": "CREATE TABLE notes (id INTEGER PRIMARY KEY);",
	}))

	if err := runner.SetVersion(ctx, 10); err != nil {
		t.Fatalf("SetVersion failed: %v", err)
	}
	if err := runner.ValidateVersion(ctx); err == nil {
		t.Fatal("ValidateVersion should fail for a newer database")
	}
	if _, err := runner.Apply(ctx); err == nil {
		t.Fatal("Apply should fail for a newer database")
	}
}

func TestEmbeddedMigrationsApply(t *testing.T) {
	ctx := context.Background()
	sub, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		t.Fatal(err)
	}
	db := setupTestDB(t)
	runner := NewRunner(db, sub)

	if _, err := runner.Apply(ctx); err != nil {
		t.Fatalf("embedded migrations failed: %v", err)
	}
	for _, table := range []string{"notes", "reminders", "sessions", "quiz_results", "badge_unlocks", "sequences"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s missing", table)
		}
	}
	if err := runner.ValidateVersion(ctx); err != nil {
		t.Errorf("ValidateVersion failed: %v", err)
	}
}
