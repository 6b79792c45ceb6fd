package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/studylit/internal/constants"
	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/service"
)

// RunCmd keeps studylit running so scheduled reminders fire.
type RunCmd struct {
	For          time.Duration `help:"Stop after this long instead of waiting for a signal." default:"0s"`
	StatsRefresh time.Duration `help:"How often to rewrite the stats cache file." default:"1m"`
}

func (c *RunCmd) Validate() error {
	if c.For < 0 {
		return fmt.Errorf("--for cannot be negative")
	}
	if c.StatsRefresh < 0 {
		return fmt.Errorf("--stats-refresh cannot be negative")
	}
	return nil
}

func (c *RunCmd) Run(ctx *Context) error {
	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	ctx.PerformAutomaticBackup(svc.StoragePath())

	n, err := svc.Start(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("failed to recover reminders: %w", err)
	}
	ctx.printf("✓ studylit running (pid %d), %d reminders scheduled\n", os.Getpid(), n)
	logger.Info("Daemon started", "reminders", n, "storage", svc.StoragePath())

	runCtx, stop := signal.NotifyContext(ctx.Ctx(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.For > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, c.For)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return refreshStats(gctx, svc, c.StatsRefresh)
	})
	g.Go(func() error {
		return ctx.reportFailures(gctx, svc.ConsistencyErrors())
	})
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Daemon stopping", "pending", len(svc.PendingReminders()))
	if err := ctx.Close(); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	ctx.println("✓ studylit stopped")
	return nil
}

// reportFailures prints reminders that fired but could not be recorded until ctx is done.
func (c *Context) reportFailures(ctx context.Context, failures <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-failures:
			var cerr *apperr.ConsistencyError
			if errors.As(err, &cerr) {
				c.printf("⚠ Reminder %d fired but was not recorded; it may fire again after a restart\n", cerr.ReminderID)
				continue
			}
			c.printf("⚠ %v\n", err)
		}
	}
}

// refreshStats rewrites the stats cache on an interval until ctx is done.
func refreshStats(ctx context.Context, svc *service.Service, every time.Duration) error {
	if every <= 0 {
		every = constants.StatsRefreshInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := svc.Snapshot(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Failed to refresh stats", "err", err)
			}
		}
	}
}
