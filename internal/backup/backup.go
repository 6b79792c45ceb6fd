package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/utils"
)

const timestampFormat = "20060102-150405"

// BackupInfo contains information about a backup file
type BackupInfo struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Manager handles backup operations for one storage file
type Manager struct {
	backend   constants.Backend
	dataPath  string
	backupDir string
	keep      int
	now       func() time.Time
}

type Option func(*Manager)

// WithClock sets the clock used to name backups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRetention sets how many backups rotation keeps.
func WithRetention(keep int) Option {
	return func(m *Manager) {
		if keep > 0 {
			m.keep = keep
		}
	}
}

// NewManager creates a backup manager for the storage file at dataPath.
// Backups live in a directory next to it.
func NewManager(backend constants.Backend, dataPath string, opts ...Option) *Manager {
	m := &Manager{
		backend:   backend,
		dataPath:  dataPath,
		backupDir: filepath.Join(filepath.Dir(dataPath), constants.BackupDirName),
		keep:      constants.MaxBackups,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetBackupDir returns the backup directory path
func (m *Manager) GetBackupDir() string {
	return m.backupDir
}

func (m *Manager) suffix() string {
	if m.backend == constants.BackendJSON {
		return ".json"
	}
	return ".db"
}

// CreateBackup copies the storage file into the backup directory and rotates old backups.
func (m *Manager) CreateBackup(ctx context.Context) (string, error) {
	path, err := m.createBackup(ctx)
	if err != nil {
		return "", err
	}
	if err := m.rotateBackups(); err != nil {
		logger.Warn("Failed to rotate old backups", "err", err)
	}
	logger.Info("Backup created", "path", path)
	return path, nil
}

func (m *Manager) createBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.backupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	if _, err := os.Stat(m.dataPath); os.IsNotExist(err) {
		return "", fmt.Errorf("storage file does not exist: %s", m.dataPath)
	}

	path, err := m.uniquePath()
	if err != nil {
		return "", err
	}

	if m.backend == constants.BackendJSON {
		err = m.backupJSON(ctx, path)
	} else {
		err = m.backupSQLite(ctx, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", filepath.Base(m.dataPath), err)
	}
	return path, nil
}

func (m *Manager) uniquePath() (string, error) {
	stamp := m.now().Format(timestampFormat)
	name := constants.BackupFilePrefix + stamp + m.suffix()
	path := filepath.Join(m.backupDir, name)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		if counter > 100 {
			return "", errors.New("failed to generate unique backup filename")
		}
		name = fmt.Sprintf("%s%s-%d%s", constants.BackupFilePrefix, stamp, counter, m.suffix())
		path = filepath.Join(m.backupDir, name)
	}
}

// backupSQLite writes a consistent copy with VACUUM INTO, falling back to a file copy
func (m *Manager) backupSQLite(ctx context.Context, dest string) error {
	src, err := sql.Open("sqlite", m.dataPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer src.Close()

	var count int
	if err := src.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&count); err != nil {
		return fmt.Errorf("source database appears to be corrupted: %w", err)
	}

	if _, err := src.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		logger.Debug("VACUUM INTO failed, copying file", "err", err)
		src.Close()
		return copyFile(ctx, m.dataPath, dest)
	}
	return nil
}

func (m *Manager) backupJSON(ctx context.Context, dest string) error {
	data, err := os.ReadFile(m.dataPath)
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return errors.New("source document is not valid JSON")
	}
	return utils.WriteFileAtomic(ctx, dest, data, 0600)
}

// ListBackups returns all available backups, newest first
func (m *Manager) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(m.backupDir)
	if os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stamp, ok := strings.CutPrefix(name, constants.BackupFilePrefix)
		if !ok {
			continue
		}
		stamp, ok = strings.CutSuffix(stamp, m.suffix())
		if !ok {
			continue
		}
		// Drop a "-N" collision counter
		if len(stamp) > len(timestampFormat) {
			stamp = stamp[:len(timestampFormat)]
		}
		ts, err := time.ParseInLocation(timestampFormat, stamp, time.Local)
		if err != nil {
			continue
		}

		path := filepath.Join(m.backupDir, name)
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{Path: path, Timestamp: ts, Size: info.Size()})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if !backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].Timestamp.After(backups[j].Timestamp)
		}
		return backups[i].Path > backups[j].Path
	})
	return backups, nil
}

// rotateBackups removes the oldest backups beyond the retention limit
func (m *Manager) rotateBackups() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}
	for i := m.keep; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// RestoreBackup replaces the storage file with backupPath. The current file is backed
// up first and that backup's path is returned. The store must not be open.
func (m *Manager) RestoreBackup(ctx context.Context, backupPath string) (string, error) {
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return "", fmt.Errorf("backup file does not exist: %s", backupPath)
	}
	if err := m.verifyBackup(ctx, backupPath); err != nil {
		return "", fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var previous string
	if _, err := os.Stat(m.dataPath); err == nil {
		// Not rotated, so the pre-restore copy survives even at the retention limit
		previous, err = m.createBackup(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to back up current storage before restore: %w", err)
		}
	}

	tempPath := m.dataPath + ".restore.tmp"
	if err := copyFile(ctx, backupPath, tempPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tempPath, m.dataPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			logger.Warn("Failed to remove temporary file", "path", tempPath, "err", removeErr)
		}
		return "", fmt.Errorf("failed to restore storage: %w", err)
	}
	logger.Info("Backup restored", "from", backupPath, "previous", previous)
	return previous, nil
}

func (m *Manager) verifyBackup(ctx context.Context, path string) error {
	if m.backend == constants.BackendJSON {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !json.Valid(data) {
			return errors.New("not a JSON document")
		}
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	var count int
	return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&count)
}

func copyFile(ctx context.Context, src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := destFile.ReadFrom(sourceFile); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return destFile.Sync()
}
