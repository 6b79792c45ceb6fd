package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/julianstephens/studylit/internal/constants"
	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/models"
)

var backends = []constants.Backend{constants.BackendSQLite, constants.BackendJSON}

func setupProvider(t *testing.T, backend constants.Backend, dataDir string) Provider {
	t.Helper()
	p, err := New(backend, dataDir)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", backend, err)
	}
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func reopen(t *testing.T, backend constants.Backend, dataDir string) Provider {
	t.Helper()
	p, err := New(backend, dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New("postgres", t.TempDir()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNoteLifecycle(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			dataDir := t.TempDir()
			p := setupProvider(t, backend, dataDir)
			created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

			id, err := p.InsertNote(ctx, models.Note{
				Title: "Photosynthesis", Content: "light reactions",
				Tags: []string{"bio", " plants "}, CreatedAt: created, UpdatedAt: created,
			})
			if err != nil {
				t.Fatalf("InsertNote failed: %v", err)
			}
			if id != 1 {
				t.Errorf("first id = %d, want 1", id)
			}

			got, err := p.GetNote(ctx, id)
			if err != nil {
				t.Fatalf("GetNote failed: %v", err)
			}
			if got.Title != "Photosynthesis" || !got.CreatedAt.Equal(created) {
				t.Errorf("unexpected note %+v", got)
			}
			if !reflect.DeepEqual(got.Tags, []string{"bio", "plants"}) {
				t.Errorf("tags = %v", got.Tags)
			}

			got.Content = "dark reactions"
			got.UpdatedAt = created.Add(time.Hour)
			if err := p.UpdateNote(ctx, got); err != nil {
				t.Fatalf("UpdateNote failed: %v", err)
			}

			// Survives a reopen
			p.Close()
			p = reopen(t, backend, dataDir)
			got, err = p.GetNote(ctx, id)
			if err != nil || got.Content != "dark reactions" {
				t.Fatalf("after reopen: %+v, %v", got, err)
			}

			if err := p.DeleteNote(ctx, id); err != nil {
				t.Fatalf("DeleteNote failed: %v", err)
			}
			if _, err := p.GetNote(ctx, id); !apperr.IsNotFound(err) {
				t.Errorf("GetNote after delete: want NotFound, got %v", err)
			}
			if err := p.DeleteNote(ctx, id); !apperr.IsNotFound(err) {
				t.Errorf("second delete: want NotFound, got %v", err)
			}
			if err := p.UpdateNote(ctx, got); !apperr.IsNotFound(err) {
				t.Errorf("update after delete: want NotFound, got %v", err)
			}
		})
	}
}

func TestNoteIDsNeverReused(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			dataDir := t.TempDir()
			p := setupProvider(t, backend, dataDir)

			first, _ := p.InsertNote(ctx, models.Note{Title: "a"})
			second, _ := p.InsertNote(ctx, models.Note{Title: "b"})
			if err := p.DeleteNote(ctx, second); err != nil {
				t.Fatal(err)
			}

			p.Close()
			p = reopen(t, backend, dataDir)

			third, err := p.InsertNote(ctx, models.Note{Title: "c"})
			if err != nil {
				t.Fatal(err)
			}
			if third == second || third <= first {
				t.Errorf("ids %d, %d, %d: deleted id was reused", first, second, third)
			}

			notes, err := p.GetAllNotes(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(notes) != 2 || notes[0].ID != first || notes[1].ID != third {
				t.Errorf("unexpected notes %+v", notes)
			}
		})
	}
}

func TestReminderRoundTrip(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			p := setupProvider(t, backend, t.TempDir())
			fireAt := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

			id, err := p.InsertReminder(ctx, models.Reminder{
				Message: "review chapter 3", FireAt: fireAt, CreatedAt: fireAt.Add(-time.Hour),
				Status: models.ReminderScheduled, NoteID: 4,
			})
			if err != nil {
				t.Fatalf("InsertReminder failed: %v", err)
			}

			r, err := p.GetReminder(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			if r.FiredAt != nil || r.NoteID != 4 || !r.FireAt.Equal(fireAt) {
				t.Errorf("unexpected reminder %+v", r)
			}

			firedAt := fireAt.Add(2 * time.Second)
			r.Status = models.ReminderFired
			r.FiredAt = &firedAt
			if err := p.UpdateReminder(ctx, r); err != nil {
				t.Fatal(err)
			}

			all, err := p.GetAllReminders(ctx)
			if err != nil || len(all) != 1 {
				t.Fatalf("GetAllReminders = %v, %v", all, err)
			}
			if all[0].Status != models.ReminderFired || all[0].FiredAt == nil || !all[0].FiredAt.Equal(firedAt) {
				t.Errorf("fired state not stored: %+v", all[0])
			}

			if _, err := p.GetReminder(ctx, 99); !apperr.IsNotFound(err) {
				t.Errorf("want NotFound, got %v", err)
			}
			if err := p.UpdateReminder(ctx, models.Reminder{ID: 99, Message: "x", FireAt: fireAt}); !apperr.IsNotFound(err) {
				t.Errorf("want NotFound, got %v", err)
			}
		})
	}
}

func TestActivityRecords(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			p := setupProvider(t, backend, t.TempDir())
			now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

			if err := p.AddSession(ctx, models.StudySession{
				ID: "s1", Kind: models.SessionPomodoro, DurationSeconds: 1500, CompletedAt: now, XPAwarded: 25,
			}); err != nil {
				t.Fatal(err)
			}
			if err := p.AddQuizResult(ctx, models.QuizResult{
				ID: "q1", NoteIDs: []int64{1, 2},
				Questions: []models.QuizQuestion{{Question: "The _____ of the cell", Answer: "powerhouse"}},
				Correct:   1, TakenAt: now, XPAwarded: 27,
			}); err != nil {
				t.Fatal(err)
			}

			sessions, err := p.GetAllSessions(ctx)
			if err != nil || len(sessions) != 1 || sessions[0].XPAwarded != 25 || sessions[0].Kind != models.SessionPomodoro {
				t.Errorf("sessions = %+v, %v", sessions, err)
			}
			quizzes, err := p.GetAllQuizResults(ctx)
			if err != nil || len(quizzes) != 1 {
				t.Fatalf("quizzes = %+v, %v", quizzes, err)
			}
			if !reflect.DeepEqual(quizzes[0].NoteIDs, []int64{1, 2}) || quizzes[0].Questions[0].Answer != "powerhouse" {
				t.Errorf("quiz not stored intact: %+v", quizzes[0])
			}
		})
	}
}

func TestBadgeUnlocksIdempotent(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			p := setupProvider(t, backend, t.TempDir())
			first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			if err := p.AddBadgeUnlocks(ctx, []models.BadgeUnlock{{BadgeID: "first_note", UnlockedAt: first}}); err != nil {
				t.Fatal(err)
			}
			if err := p.AddBadgeUnlocks(ctx, []models.BadgeUnlock{
				{BadgeID: "first_note", UnlockedAt: first.Add(time.Hour)},
				{BadgeID: "focused", UnlockedAt: first.Add(time.Hour)},
			}); err != nil {
				t.Fatal(err)
			}

			unlocks, err := p.GetBadgeUnlocks(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(unlocks) != 2 {
				t.Fatalf("expected 2 unlocks, got %+v", unlocks)
			}
			for _, u := range unlocks {
				if u.BadgeID == "first_note" && !u.UnlockedAt.Equal(first) {
					t.Errorf("original unlock time overwritten: %v", u.UnlockedAt)
				}
			}
		})
	}
}

func TestCancelledContextDoesNotCommit(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			p := setupProvider(t, backend, t.TempDir())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := p.InsertNote(ctx, models.Note{Title: "lost"}); err == nil {
				t.Fatal("expected error with cancelled context")
			}
			notes, err := p.GetAllNotes(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(notes) != 0 {
				t.Errorf("note committed despite cancelled context: %+v", notes)
			}
		})
	}
}

func TestLoadUninitialized(t *testing.T) {
	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			p, _ := New(backend, t.TempDir())
			if err := p.Load(context.Background()); err == nil {
				t.Error("expected error loading uninitialized storage")
			}
		})
	}
}

func TestJSONLoadCoercesMissingValues(t *testing.T) {
	dataDir := t.TempDir()
	path := filepath.Join(dataDir, constants.JSONFileName)
	raw := `{
  "version": 1,
  "notes": {"7": {"title": "old", "content": "from an older file"}},
  "reminders": {"3": {"message": "ping", "fire_at": "2026-01-01T00:00:00Z"}}
}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	p := reopen(t, constants.BackendJSON, dataDir)

	note, err := p.GetNote(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if note.ID != 7 || note.Tags == nil {
		t.Errorf("note not normalized: %+v", note)
	}
	r, err := p.GetReminder(ctx, 3)
	if err != nil || r.Status != models.ReminderScheduled {
		t.Errorf("reminder status not defaulted: %+v, %v", r, err)
	}
	sessions, _ := p.GetAllSessions(ctx)
	if sessions == nil {
		t.Error("sessions should default to an empty list")
	}

	// Sequence repaired so the next id does not collide
	id, err := p.InsertNote(ctx, models.Note{Title: "new"})
	if err != nil || id != 8 {
		t.Errorf("InsertNote after repair = %d, %v", id, err)
	}
}

func TestJSONLoadRejectsNewerVersion(t *testing.T) {
	dataDir := t.TempDir()
	path := filepath.Join(dataDir, constants.JSONFileName)
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0600); err != nil {
		t.Fatal(err)
	}
	p, _ := New(constants.BackendJSON, dataDir)
	if err := p.Load(context.Background()); err == nil {
		t.Error("expected error for newer document version")
	}
}

func TestInitTwiceJSON(t *testing.T) {
	dataDir := t.TempDir()
	setupProvider(t, constants.BackendJSON, dataDir)
	p, _ := New(constants.BackendJSON, dataDir)
	if err := p.Init(context.Background()); err == nil {
		t.Error("expected error initializing twice")
	}
}
