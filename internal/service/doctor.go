package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/studylit/internal/backup"
	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/records"
	"github.com/julianstephens/studylit/internal/stats"
	"github.com/julianstephens/studylit/internal/storage/sqlite"
	"github.com/julianstephens/studylit/internal/utils"
)

type CheckStatus string

const (
	CheckOK   CheckStatus = "ok"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// Check names
const (
	CheckStorage        = "Storage reachable"
	CheckSchema         = "Schema version"
	CheckDuplicateNotes = "Duplicate notes"
	CheckStatsCache     = "Stats cache"
	CheckReminders      = "Reminders"
	CheckBackups        = "Backups"
	CheckTimezone       = "Timezone"
)

// Check is the outcome of one diagnostic.
type Check struct {
	Name   string
	Status CheckStatus
	Detail string
}

// Doctor runs health checks against the open store. The stats cache file is rewritten
// as a side effect.
func (s *Service) Doctor(ctx context.Context) []Check {
	var checks []Check
	add := func(name string, status CheckStatus, detail string) {
		checks = append(checks, Check{Name: name, Status: status, Detail: detail})
	}

	if _, err := s.store.ListNotes(ctx, records.Filter{Limit: 1}); err != nil {
		add(CheckStorage, CheckFail, err.Error())
		return checks
	}
	add(CheckStorage, CheckOK, s.StoragePath())

	if db, ok := s.provider.(*sqlite.Store); ok {
		current, latest, err := db.SchemaVersion(ctx)
		switch {
		case err != nil:
			add(CheckSchema, CheckFail, err.Error())
		case current != latest:
			add(CheckSchema, CheckFail, fmt.Sprintf("at version %d, latest is %d", current, latest))
		default:
			add(CheckSchema, CheckOK, fmt.Sprintf("version %d", current))
		}
	}

	if dups, err := s.DuplicateNotes(ctx); err != nil {
		add(CheckDuplicateNotes, CheckFail, err.Error())
	} else if len(dups) > 0 {
		var ids []string
		for _, g := range dups {
			for _, n := range g[1:] {
				ids = append(ids, fmt.Sprint(n.ID))
			}
		}
		add(CheckDuplicateNotes, CheckWarn, fmt.Sprintf("%d duplicate notes (ids %s), run with --fix to remove", len(ids), strings.Join(ids, ", ")))
	} else {
		add(CheckDuplicateNotes, CheckOK, "")
	}

	add(s.checkStatsCache(ctx))

	if reminders, err := s.store.ScheduledReminders(ctx); err != nil {
		add(CheckReminders, CheckFail, err.Error())
	} else {
		overdue := 0
		now := s.now()
		for _, r := range reminders {
			if !r.FireAt.After(now) {
				overdue++
			}
		}
		if overdue > 0 {
			add(CheckReminders, CheckWarn, fmt.Sprintf("%d of %d scheduled reminders are overdue and fire on next start", overdue, len(reminders)))
		} else {
			add(CheckReminders, CheckOK, fmt.Sprintf("%d scheduled", len(reminders)))
		}
	}

	mgr := backup.NewManager(s.cfg.Backend, s.StoragePath())
	if backups, err := mgr.ListBackups(); err != nil {
		add(CheckBackups, CheckWarn, err.Error())
	} else if len(backups) == 0 {
		add(CheckBackups, CheckWarn, "no backups in "+mgr.GetBackupDir())
	} else {
		add(CheckBackups, CheckOK, fmt.Sprintf("%d backups, newest %s", len(backups), backups[0].Timestamp.Format(constants.DateTimeFormat)))
	}

	if !utils.ValidateTimezone(s.cfg.Timezone) {
		add(CheckTimezone, CheckFail, fmt.Sprintf("unknown timezone %q", s.cfg.Timezone))
	} else {
		add(CheckTimezone, CheckOK, s.cfg.Location().String())
	}

	return checks
}

// checkStatsCache compares stats.json with a fresh snapshot, which also rewrites it.
func (s *Service) checkStatsCache(ctx context.Context) (string, CheckStatus, string) {
	const name = CheckStatsCache
	path := filepath.Join(s.cfg.DataDir, constants.StatsFileName)
	cached, readErr := stats.ReadCacheFile(path)

	s.stats.Invalidate()
	fresh, err := s.stats.Snapshot(ctx)
	if err != nil {
		return name, CheckFail, err.Error()
	}

	switch {
	case errors.Is(readErr, os.ErrNotExist):
		return name, CheckWarn, "missing, rebuilt"
	case readErr != nil:
		return name, CheckWarn, "unreadable, rebuilt"
	case !cached.Equal(fresh):
		return name, CheckWarn, fmt.Sprintf("out of date (total XP %d, actual %d), rebuilt", cached.TotalXP, fresh.TotalXP)
	}
	return name, CheckOK, ""
}
