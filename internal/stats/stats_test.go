package stats

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/studylit/internal/config"
	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/models"
	"github.com/julianstephens/studylit/internal/records"
	"github.com/julianstephens/studylit/internal/storage"
)

type memSource struct {
	mu       sync.Mutex
	version  uint64
	notes    []models.Note
	sessions []models.StudySession
	quizzes  []models.QuizResult
	unlocks  []models.BadgeUnlock
	lists    int
	failAdd  bool
}

func (m *memSource) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *memSource) ListNotes(ctx context.Context, filter records.Filter) ([]models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	return append([]models.Note{}, m.notes...), nil
}

func (m *memSource) ListSessions(ctx context.Context) ([]models.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.StudySession{}, m.sessions...), nil
}

func (m *memSource) ListQuizResults(ctx context.Context) ([]models.QuizResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.QuizResult{}, m.quizzes...), nil
}

func (m *memSource) ListBadgeUnlocks(ctx context.Context) ([]models.BadgeUnlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BadgeUnlock{}, m.unlocks...), nil
}

func (m *memSource) AddBadgeUnlocks(ctx context.Context, unlocks []models.BadgeUnlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd {
		return errors.New("disk full")
	}
	m.unlocks = append(m.unlocks, unlocks...)
	m.version++
	return nil
}

func (m *memSource) change(fn func(m *memSource)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
	m.version++
}

var day = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testSettings() Settings {
	cfg := config.NewDefaultConfig()
	s := SettingsFromConfig(cfg, "")
	s.Location = time.UTC
	return s
}

func note(id int64, at time.Time) models.Note {
	return models.Note{ID: id, Title: "note", Tags: []string{}, CreatedAt: at, UpdatedAt: at}
}

func TestPomodoroAwardIsCountedOnce(t *testing.T) {
	ctx := context.Background()
	p, err := storage.New(constants.BackendJSON, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	store := records.New(p)
	settings := testSettings()
	agg := New(store, settings)

	before, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	_, err = store.AddSession(ctx, models.StudySession{
		Kind:            models.SessionPomodoro,
		DurationSeconds: 1500,
		XPAwarded:       SessionXP(settings.XP, models.SessionPomodoro, 1500),
	})
	if err != nil {
		t.Fatalf("AddSession failed: %v", err)
	}

	after, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := after.TotalXP - before.TotalXP; got != settings.XP.Pomodoro {
		t.Errorf("XP increased by %d, want %d", got, settings.XP.Pomodoro)
	}
	if after.PomodorosCompleted != 1 || after.StudySeconds != 1500 {
		t.Errorf("unexpected counters: %+v", after)
	}

	again, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := json.Marshal(after)
	b, _ := json.Marshal(again)
	if string(a) != string(b) {
		t.Errorf("repeated snapshot differs:\n%s\n%s", a, b)
	}
}

func TestSnapshotComputesCounters(t *testing.T) {
	src := &memSource{
		notes: []models.Note{note(1, day), note(2, day.Add(24*time.Hour))},
		sessions: []models.StudySession{
			{ID: "a", Kind: models.SessionPomodoro, DurationSeconds: 1500, CompletedAt: day.Add(48 * time.Hour), XPAwarded: 25},
			{ID: "b", Kind: models.SessionShortBreak, DurationSeconds: 300, CompletedAt: day.Add(48 * time.Hour), XPAwarded: 5},
			{ID: "c", Kind: models.SessionCustom, DurationSeconds: 600, CompletedAt: day.Add(120 * time.Hour), XPAwarded: 10},
		},
		quizzes: []models.QuizResult{
			{ID: "q", NoteIDs: []int64{1}, Questions: []models.QuizQuestion{{Question: "?", Answer: "!"}}, Correct: 1, TakenAt: day, XPAwarded: 27},
		},
	}
	agg := New(src, testSettings())
	snap, err := agg.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := models.StatsSnapshot{
		TotalXP:            2*10 + 25 + 5 + 10 + 27,
		Level:              1,
		NextLevelXP:        100,
		NotesCount:         2,
		QuizzesTaken:       1,
		SessionsCompleted:  3,
		PomodorosCompleted: 1,
		StudySeconds:       2100,
		LongestStreakDays:  3,
		Badges:             []string{"first_note", "first_pomodoro", "quiz_rookie"},
	}
	if !reflect.DeepEqual(snap, want) {
		t.Errorf("Snapshot() = %+v, want %+v", snap, want)
	}
}

func TestSnapshotCachedUntilVersionChanges(t *testing.T) {
	src := &memSource{}
	agg := New(src, testSettings())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := agg.Snapshot(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if src.lists != 1 {
		t.Errorf("expected one recompute, got %d", src.lists)
	}

	src.change(func(m *memSource) { m.notes = append(m.notes, note(1, day)) })
	snap, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.NotesCount != 1 {
		t.Errorf("NotesCount = %d, want 1", snap.NotesCount)
	}
	// Persisting first_note is our own write and keeps the cache valid
	if _, err := agg.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	if src.lists != 2 {
		t.Errorf("expected two recomputes, got %d", src.lists)
	}

	agg.Invalidate()
	if _, err := agg.Snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	if src.lists != 3 {
		t.Errorf("expected recompute after Invalidate, got %d", src.lists)
	}
}

func TestBadgesNeverDisappear(t *testing.T) {
	src := &memSource{notes: []models.Note{note(1, day)}}
	agg := New(src, testSettings())
	ctx := context.Background()

	snap, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(snap.Badges, []string{"first_note"}) {
		t.Fatalf("Badges = %v", snap.Badges)
	}

	src.change(func(m *memSource) { m.notes = nil })
	snap, err = agg.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.NotesCount != 0 {
		t.Errorf("NotesCount = %d, want 0", snap.NotesCount)
	}
	if !reflect.DeepEqual(snap.Badges, []string{"first_note"}) {
		t.Errorf("badge lost after note deletion: %v", snap.Badges)
	}
}

func TestUnstoredBadgesAreNotShown(t *testing.T) {
	src := &memSource{notes: []models.Note{note(1, day)}, failAdd: true}
	agg := New(src, testSettings())

	snap, err := agg.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Badges) != 0 {
		t.Errorf("Badges = %v, want none when unlocks cannot be stored", snap.Badges)
	}
}

func TestMalformedRecordsExcluded(t *testing.T) {
	src := &memSource{
		notes: []models.Note{note(1, day), {ID: 2, Title: "  ", CreatedAt: day}},
		sessions: []models.StudySession{
			{ID: "ok", Kind: models.SessionPomodoro, DurationSeconds: 1500, CompletedAt: day, XPAwarded: 25},
			{ID: "bad", Kind: "nap", DurationSeconds: 1500, CompletedAt: day, XPAwarded: 1000},
			{ID: "neg", Kind: models.SessionCustom, DurationSeconds: 60, CompletedAt: day, XPAwarded: -50},
		},
		quizzes: []models.QuizResult{
			{ID: "q", Questions: []models.QuizQuestion{{Question: "?", Answer: "!"}}, Correct: 4, TakenAt: day, XPAwarded: 500},
		},
	}
	agg := New(src, testSettings())
	snap, err := agg.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.NotesCount != 1 || snap.SessionsCompleted != 1 || snap.QuizzesTaken != 0 {
		t.Errorf("malformed records counted: %+v", snap)
	}
	if snap.TotalXP != 10+25 {
		t.Errorf("TotalXP = %d, want 35", snap.TotalXP)
	}
}

func TestSnapshotWritesCacheFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), constants.StatsFileName)
	settings := testSettings()
	settings.CacheFile = path
	src := &memSource{notes: []models.Note{note(1, day)}}
	agg := New(src, settings)

	snap, err := agg.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	cached, err := ReadCacheFile(path)
	if err != nil {
		t.Fatalf("ReadCacheFile failed: %v", err)
	}
	if !snap.Equal(cached) {
		t.Errorf("cache file = %+v, want %+v", cached, snap)
	}
}

func TestComputeDoesNotStoreBadges(t *testing.T) {
	src := &memSource{notes: []models.Note{note(1, day)}}
	agg := New(src, testSettings())

	if _, err := agg.Compute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(src.unlocks) != 0 || src.version != 0 {
		t.Errorf("Compute wrote badge facts: %v", src.unlocks)
	}
}

func TestConcurrentSnapshotsAgree(t *testing.T) {
	src := &memSource{notes: []models.Note{note(1, day), note(2, day)}}
	agg := New(src, testSettings())

	var wg sync.WaitGroup
	results := make([]models.StatsSnapshot, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := agg.Snapshot(context.Background())
			if err != nil {
				t.Error(err)
			}
			results[i] = snap
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if !results[0].Equal(results[i]) {
			t.Errorf("snapshot %d = %+v, want %+v", i, results[i], results[0])
		}
	}
}
