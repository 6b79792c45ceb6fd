package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/studylit/internal/backup"
	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/instance"
	"github.com/julianstephens/studylit/internal/storage"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List available backups."`
	Restore BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
}

func (c *Context) backupManager() (*backup.Manager, error) {
	provider, err := storage.New(c.Config.Backend, c.Config.DataDir)
	if err != nil {
		return nil, err
	}
	return backup.NewManager(c.Config.Backend, provider.GetConfigPath()), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *Context) error {
	// Perform a manual backup
	svc, err := ctx.Service()
	if err != nil {
		return err
	}

	mgr := backup.NewManager(ctx.Config.Backend, svc.StoragePath())
	backupPath, err := mgr.CreateBackup(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	ctx.printf("✓ Backup created: %s\n", filepath.Base(backupPath))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.println("No backups found.")
		ctx.printf("Backups are stored in: %s\n", mgr.GetBackupDir())
		return nil
	}

	ctx.printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), constants.MaxBackups)
	for _, b := range backups {
		sizeKB := float64(b.Size) / 1024.0
		timestamp := b.Timestamp.Format("2006-01-02 15:04:05")
		filename := filepath.Base(b.Path)
		ctx.printf("  %s  %s  (%.1f KB)\n", timestamp, filename, sizeKB)
	}
	ctx.printf("\nBackup directory: %s\n", mgr.GetBackupDir())

	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *BackupRestoreCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}

	// Determine the full path to the backup file
	backupPath := c.BackupFile
	if !filepath.IsAbs(backupPath) {
		// If it's not an absolute path, check if it exists relative to backup directory
		possiblePath := filepath.Join(mgr.GetBackupDir(), c.BackupFile)
		if _, err := os.Stat(possiblePath); err == nil {
			backupPath = possiblePath
		}
	}

	// Verify backup file exists
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupPath)
	}

	// Storage must not be open anywhere while the file is replaced
	if ctx.svc != nil {
		if err := ctx.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	lock, err := instance.Acquire(ctx.Config.DataDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	if !c.Yes {
		ctx.println("⚠️  WARNING: This will replace your current data with the backup.")
		ctx.println("A backup of your current data will be created before restoring.")
		ctx.printf("\nRestore from: %s\n", filepath.Base(backupPath))
		ok, err := ctx.confirm("Continue?")
		if err != nil {
			return err
		}
		if !ok {
			ctx.println("Restore cancelled.")
			return nil
		}
	}

	previous, err := mgr.RestoreBackup(ctx.Ctx(), backupPath)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	ctx.println("✓ Data restored successfully!")
	if previous != "" {
		ctx.printf("Previous data saved as: %s\n", filepath.Base(previous))
	}
	return nil
}
