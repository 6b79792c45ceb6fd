// Package stats derives progress statistics from the record store.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/studylit/internal/config"
	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/models"
	"github.com/julianstephens/studylit/internal/records"
	"github.com/julianstephens/studylit/internal/utils"
)

// Source is the read side of the record store plus badge fact persistence.
type Source interface {
	Version() uint64
	ListNotes(ctx context.Context, filter records.Filter) ([]models.Note, error)
	ListSessions(ctx context.Context) ([]models.StudySession, error)
	ListQuizResults(ctx context.Context) ([]models.QuizResult, error)
	ListBadgeUnlocks(ctx context.Context) ([]models.BadgeUnlock, error)
	AddBadgeUnlocks(ctx context.Context, unlocks []models.BadgeUnlock) error
}

// Settings are the award rules the aggregator applies.
type Settings struct {
	XP       config.XPRules
	Levels   []int
	Badges   []config.Badge
	Location *time.Location
	// CacheFile receives each recomputed snapshot. Empty disables the file.
	CacheFile string
}

// SettingsFromConfig builds Settings from the application config.
func SettingsFromConfig(cfg *config.Config, cacheFile string) Settings {
	return Settings{
		XP:        cfg.XP,
		Levels:    cfg.Levels,
		Badges:    cfg.Badges,
		Location:  cfg.Location(),
		CacheFile: cacheFile,
	}
}

// Aggregator computes StatsSnapshots. A snapshot is cached until the store version
// changes, and concurrent recomputations share one pass.
type Aggregator struct {
	src      Source
	settings Settings
	now      func() time.Time

	group singleflight.Group

	mu            sync.Mutex
	cached        *models.StatsSnapshot
	cachedVersion uint64
}

func New(src Source, settings Settings) *Aggregator {
	if len(settings.Levels) == 0 {
		settings.Levels = constants.DefaultLevels
	}
	if settings.Location == nil {
		settings.Location = time.Local
	}
	return &Aggregator{src: src, settings: settings, now: time.Now}
}

// Invalidate drops the cached snapshot.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.mu.Unlock()
}

// Snapshot returns statistics for the current store contents.
func (a *Aggregator) Snapshot(ctx context.Context) (models.StatsSnapshot, error) {
	version := a.src.Version()
	a.mu.Lock()
	if a.cached != nil && a.cachedVersion == version {
		snap := clone(*a.cached)
		a.mu.Unlock()
		return snap, nil
	}
	a.mu.Unlock()

	v, err, _ := a.group.Do("snapshot", func() (any, error) {
		return a.recompute(ctx)
	})
	if err != nil {
		return models.StatsSnapshot{}, err
	}
	return clone(v.(models.StatsSnapshot)), nil
}

// Compute recomputes a snapshot from records without touching the cache, the cache
// file or stored badge facts.
func (a *Aggregator) Compute(ctx context.Context) (models.StatsSnapshot, error) {
	snap, _, err := a.compute(ctx)
	return snap, err
}

func (a *Aggregator) recompute(ctx context.Context) (models.StatsSnapshot, error) {
	version := a.src.Version()

	snap, earned, err := a.compute(ctx)
	if err != nil {
		return models.StatsSnapshot{}, err
	}

	if len(earned) > 0 {
		now := a.now()
		unlocks := make([]models.BadgeUnlock, len(earned))
		for i, id := range earned {
			unlocks[i] = models.BadgeUnlock{BadgeID: id, UnlockedAt: now}
		}
		if err := a.src.AddBadgeUnlocks(ctx, unlocks); err != nil {
			// Only stored facts are shown, so unlocked badges never disappear later
			logger.Warn("Failed to store badge unlocks", "badges", earned, "err", err)
		} else {
			for _, id := range earned {
				logger.Info("Badge unlocked", "badge", id)
			}
			snap.Badges = mergeSorted(snap.Badges, earned)
			// Our own write is the only change since we started
			if after := a.src.Version(); after == version+1 {
				version = after
			}
		}
	}

	a.mu.Lock()
	a.cached = &snap
	a.cachedVersion = version
	a.mu.Unlock()

	a.writeCacheFile(ctx, snap)
	return snap, nil
}

// compute derives the snapshot and returns the ids of badges that are satisfied but
// not yet stored.
func (a *Aggregator) compute(ctx context.Context) (models.StatsSnapshot, []string, error) {
	notes, err := a.src.ListNotes(ctx, records.Filter{})
	if err != nil {
		return models.StatsSnapshot{}, nil, fmt.Errorf("failed to list notes: %w", err)
	}
	sessions, err := a.src.ListSessions(ctx)
	if err != nil {
		return models.StatsSnapshot{}, nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	quizzes, err := a.src.ListQuizResults(ctx)
	if err != nil {
		return models.StatsSnapshot{}, nil, fmt.Errorf("failed to list quiz results: %w", err)
	}
	unlocks, err := a.src.ListBadgeUnlocks(ctx)
	if err != nil {
		return models.StatsSnapshot{}, nil, fmt.Errorf("failed to list badge unlocks: %w", err)
	}

	loc := a.settings.Location
	var snap models.StatsSnapshot
	activeDays := []string{}

	for i := range notes {
		n := &notes[i]
		if err := n.Validate(); err != nil || n.CreatedAt.IsZero() {
			logger.Warn("Excluding malformed note from stats", "id", n.ID, "err", err)
			continue
		}
		snap.NotesCount++
		activeDays = append(activeDays, utils.DayKey(n.CreatedAt, loc))
	}

	for i := range sessions {
		s := &sessions[i]
		if err := s.Validate(); err != nil {
			logger.Warn("Excluding malformed session from stats", "id", s.ID, "err", err)
			continue
		}
		snap.SessionsCompleted++
		snap.TotalXP += s.XPAwarded
		switch s.Kind {
		case models.SessionPomodoro:
			snap.PomodorosCompleted++
			snap.StudySeconds += s.DurationSeconds
			activeDays = append(activeDays, utils.DayKey(s.CompletedAt, loc))
		case models.SessionCustom:
			snap.StudySeconds += s.DurationSeconds
			activeDays = append(activeDays, utils.DayKey(s.CompletedAt, loc))
		}
	}

	for i := range quizzes {
		q := &quizzes[i]
		if err := q.Validate(); err != nil {
			logger.Warn("Excluding malformed quiz result from stats", "id", q.ID, "err", err)
			continue
		}
		snap.QuizzesTaken++
		snap.TotalXP += q.XPAwarded
		activeDays = append(activeDays, utils.DayKey(q.TakenAt, loc))
	}

	snap.TotalXP += snap.NotesCount * a.settings.XP.PerNote
	snap.LongestStreakDays = utils.LongestDayStreak(activeDays)
	snap.Level, snap.NextLevelXP = LevelFor(a.settings.Levels, snap.TotalXP)

	stored := make(map[string]bool, len(unlocks))
	snap.Badges = []string{}
	for _, u := range unlocks {
		if !stored[u.BadgeID] {
			stored[u.BadgeID] = true
			snap.Badges = append(snap.Badges, u.BadgeID)
		}
	}
	sort.Strings(snap.Badges)

	counters := Counters(snap)
	var earned []string
	for _, b := range a.settings.Badges {
		if stored[b.ID] {
			continue
		}
		if counters[b.Counter] >= int64(b.Threshold) {
			earned = append(earned, b.ID)
		}
	}
	sort.Strings(earned)

	return snap, earned, nil
}

// Counters exposes the cumulative values badge predicates are evaluated against.
func Counters(snap models.StatsSnapshot) map[string]int64 {
	return map[string]int64{
		constants.CounterNotesCreated:  int64(snap.NotesCount),
		constants.CounterPomodoros:     int64(snap.PomodorosCompleted),
		constants.CounterSessions:      int64(snap.SessionsCompleted),
		constants.CounterQuizzes:       int64(snap.QuizzesTaken),
		constants.CounterStudySeconds:  snap.StudySeconds,
		constants.CounterTotalXP:       int64(snap.TotalXP),
		constants.CounterLongestStreak: int64(snap.LongestStreakDays),
	}
}

func (a *Aggregator) writeCacheFile(ctx context.Context, snap models.StatsSnapshot) {
	if a.settings.CacheFile == "" {
		return
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		logger.Warn("Failed to encode stats cache", "err", err)
		return
	}
	if err := utils.WriteFileAtomic(ctx, a.settings.CacheFile, data, 0600); err != nil {
		logger.Warn("Failed to write stats cache", "path", a.settings.CacheFile, "err", err)
	}
}

// ReadCacheFile loads the last snapshot written to path. The file is a cache only and
// is never used to answer Snapshot.
func ReadCacheFile(path string) (models.StatsSnapshot, error) {
	var snap models.StatsSnapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to parse stats cache: %w", err)
	}
	return snap, nil
}

func clone(s models.StatsSnapshot) models.StatsSnapshot {
	s.Badges = append([]string{}, s.Badges...)
	return s
}

func mergeSorted(a, b []string) []string {
	out := append(append([]string{}, a...), b...)
	sort.Strings(out)
	return out
}
