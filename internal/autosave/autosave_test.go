package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/studylit/internal/constants"
	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/models"
	"github.com/julianstephens/studylit/internal/records"
	"github.com/julianstephens/studylit/internal/storage"
)

type manualTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// manualTimers hands out timers that only run when fire is called.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) after(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{f: f}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualTimers) armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (m *manualTimers) fire() int {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

type countingStore struct {
	*records.Store
	mu      sync.Mutex
	upserts []models.Note
}

func (s *countingStore) UpsertNote(ctx context.Context, note models.Note) (int64, error) {
	s.mu.Lock()
	s.upserts = append(s.upserts, note)
	s.mu.Unlock()
	return s.Store.UpsertNote(ctx, note)
}

func (s *countingStore) calls() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Note{}, s.upserts...)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	p, err := storage.New(constants.BackendJSON, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return &countingStore{Store: records.New(p)}
}

func newCoordinator(store Store) (*Coordinator, *manualTimers) {
	timers := &manualTimers{}
	return New(store, WithAfterFunc(timers.after)), timers
}

func TestEditsCoalesceIntoOneUpsert(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	id, err := store.Store.UpsertNote(ctx, models.Note{Title: "Algebra", Content: "x+y=z"})
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
	co, timers := newCoordinator(store)

	for i := 0; i < 2; i++ {
		if err := co.NotifyEdit(ExistingNote(1), "Algebra", "x+y=z updated", nil); err != nil {
			t.Fatalf("NotifyEdit failed: %v", err)
		}
	}
	if n := timers.armed(); n != 1 {
		t.Fatalf("expected one armed timer, got %d", n)
	}
	timers.fire()

	calls := store.calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one upsert, got %d", len(calls))
	}
	if calls[0].ID != 1 || calls[0].Content != "x+y=z updated" {
		t.Errorf("unexpected upsert: %+v", calls[0])
	}
	got, err := store.GetNote(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "x+y=z updated" {
		t.Errorf("stored content = %q", got.Content)
	}
	notes, _ := store.ListNotes(ctx, records.Filter{})
	if len(notes) != 1 {
		t.Errorf("expected one note, got %d", len(notes))
	}
}

func TestDraftKeepsIDAfterFirstSave(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	co, timers := newCoordinator(store)

	if _, ok := co.CurrentID(); ok {
		t.Fatal("draft should have no id")
	}
	if err := co.NotifyEdit(NewNote(), "", "cell membranes", nil); err != nil {
		t.Fatal(err)
	}
	timers.fire()

	id, ok := co.CurrentID()
	if !ok {
		t.Fatal("expected an id after first save")
	}
	if err := co.NotifyEdit(NewNote(), "", "cell membranes are lipid bilayers", []string{"bio"}); err != nil {
		t.Fatal(err)
	}
	timers.fire()

	calls := store.calls()
	if len(calls) != 2 {
		t.Fatalf("expected two upserts, got %d", len(calls))
	}
	if calls[0].ID != 0 || calls[1].ID != id {
		t.Errorf("expected insert then update of %d, got ids %d and %d", id, calls[0].ID, calls[1].ID)
	}
	if calls[0].Title != constants.UntitledNotePrefix+"1" || calls[1].Title != calls[0].Title {
		t.Errorf("generated title not kept: %q then %q", calls[0].Title, calls[1].Title)
	}

	notes, err := store.ListNotes(ctx, records.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].ID != id || notes[0].Tags[0] != "bio" {
		t.Errorf("unexpected notes: %+v", notes)
	}
}

func TestShortContentIsNotSaved(t *testing.T) {
	store := newStore(t)
	co, timers := newCoordinator(store)

	if err := co.NotifyEdit(NewNote(), "Title", " ab ", nil); err != nil {
		t.Fatal(err)
	}
	timers.fire()
	if n := len(store.calls()); n != 0 {
		t.Errorf("expected no upsert for short content, got %d", n)
	}
}

func TestDeletedNoteIsNeverResurrected(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	id, err := store.Store.UpsertNote(ctx, models.Note{Title: "Cells", Content: "mitochondria"})
	if err != nil {
		t.Fatal(err)
	}
	co, timers := newCoordinator(store)

	if err := co.NotifyEdit(ExistingNote(id), "Cells", "mitochondria is the powerhouse", nil); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteNote(ctx, id); err != nil {
		t.Fatal(err)
	}
	co.NoteDeleted(id)

	if n := timers.fire(); n != 0 {
		t.Errorf("pending save should have been cancelled, %d timers fired", n)
	}
	err = co.NotifyEdit(ExistingNote(id), "Cells", "again", nil)
	if !apperr.IsNotFound(err) {
		t.Errorf("expected NotFoundError editing a deleted note, got %v", err)
	}
	if err := co.Flush(ctx); err != nil {
		t.Errorf("Flush failed: %v", err)
	}
	if len(store.calls()) != 0 {
		t.Errorf("expected no upserts, got %+v", store.calls())
	}
	if _, err := store.GetNote(ctx, id); !apperr.IsNotFound(err) {
		t.Errorf("deleted note came back: %v", err)
	}
}

func TestUpsertNotFoundMarksBufferDeleted(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	id, _ := store.Store.UpsertNote(ctx, models.Note{Title: "Cells", Content: "ribosomes"})
	co, timers := newCoordinator(store)

	if err := co.NotifyEdit(ExistingNote(id), "Cells", "ribosomes build proteins", nil); err != nil {
		t.Fatal(err)
	}
	// Deleted behind the coordinator's back
	if err := store.DeleteNote(ctx, id); err != nil {
		t.Fatal(err)
	}
	timers.fire()

	if _, ok := co.CurrentID(); ok {
		t.Error("buffer should no longer hold an id")
	}
	if err := co.NotifyEdit(ExistingNote(id), "Cells", "ribosomes", nil); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
	notes, _ := store.ListNotes(ctx, records.Filter{})
	if len(notes) != 0 {
		t.Errorf("expected no notes, got %+v", notes)
	}
}

type blockingStore struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) UpsertNote(ctx context.Context, note models.Note) (int64, error) {
	close(s.entered)
	<-s.release
	return note.ID, nil
}

func (s *blockingStore) NextUntitledTitle(ctx context.Context) (string, error) {
	return "Untitled note #1", nil
}

func TestNoteDeletedWaitsForRunningSave(t *testing.T) {
	store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	co, _ := newCoordinator(store)

	if err := co.NotifyEdit(ExistingNote(4), "Waves", "amplitude", nil); err != nil {
		t.Fatal(err)
	}
	go co.Flush(context.Background())
	<-store.entered

	done := make(chan struct{})
	go func() {
		co.NoteDeleted(4)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("NoteDeleted returned while a save was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(store.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NoteDeleted did not return")
	}

	if err := co.NotifyEdit(ExistingNote(4), "Waves", "frequency", nil); !apperr.IsNotFound(err) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
}

func TestSwitchingNotesSavesPendingEdit(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	a, _ := store.Store.UpsertNote(ctx, models.Note{Title: "A", Content: "alpha"})
	b, _ := store.Store.UpsertNote(ctx, models.Note{Title: "B", Content: "beta"})
	co, timers := newCoordinator(store)

	if err := co.NotifyEdit(ExistingNote(a), "A", "alpha edited", nil); err != nil {
		t.Fatal(err)
	}
	if err := co.NotifyEdit(ExistingNote(b), "B", "beta edited", nil); err != nil {
		t.Fatal(err)
	}
	if calls := store.calls(); len(calls) != 1 || calls[0].ID != a {
		t.Fatalf("expected note %d saved on switch, got %+v", a, calls)
	}
	timers.fire()

	if got, _ := co.CurrentID(); got != b {
		t.Errorf("CurrentID() = %d, want %d", got, b)
	}
	for id, want := range map[int64]string{a: "alpha edited", b: "beta edited"} {
		n, err := store.GetNote(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if n.Content != want {
			t.Errorf("note %d content = %q, want %q", id, n.Content, want)
		}
	}
}

func TestNewDraftStartsFreshNote(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	co, timers := newCoordinator(store)

	co.NotifyEdit(NewNote(), "First", "first note body", nil)
	timers.fire()
	first, _ := co.CurrentID()

	if err := co.NewDraft(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := co.CurrentID(); ok {
		t.Error("new draft should have no id")
	}
	co.NotifyEdit(NewNote(), "Second", "second note body", nil)
	timers.fire()
	second, _ := co.CurrentID()

	if first == second {
		t.Errorf("new draft reused id %d", first)
	}
	notes, _ := store.ListNotes(ctx, records.Filter{})
	if len(notes) != 2 {
		t.Errorf("expected two notes, got %d", len(notes))
	}
}

func TestCloseFlushesAndRejectsEdits(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	co, _ := newCoordinator(store)

	co.NotifyEdit(NewNote(), "Optics", "snell's law", nil)
	if err := co.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(store.calls()) != 1 {
		t.Errorf("expected pending edit flushed on close")
	}
	if err := co.NotifyEdit(NewNote(), "Optics", "refraction", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestRealTimerSaves(t *testing.T) {
	store := newStore(t)
	co := New(store, WithInterval(20*time.Millisecond))

	if err := co.NotifyEdit(NewNote(), "Kinetics", "rate laws", nil); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := co.CurrentID(); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("autosave did not run")
}

func TestExplicitSaveUsesBufferIdentity(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	co, timers := newCoordinator(store)

	if err := co.NotifyEdit(NewNote(), "Vectors", "magnitude and direction", nil); err != nil {
		t.Fatal(err)
	}
	id, err := co.Save(ctx, NewNote(), "Vectors", "ab", nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if n := timers.fire(); n != 0 {
		t.Errorf("explicit save should consume the pending autosave, %d timers fired", n)
	}
	again, err := co.Save(ctx, NewNote(), "Vectors", "ab cd", nil)
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Errorf("second save returned id %d, want %d", again, id)
	}

	notes, _ := store.ListNotes(ctx, records.Filter{})
	if len(notes) != 1 || notes[0].Content != "ab cd" {
		t.Errorf("unexpected notes %+v", notes)
	}
}

func TestStaleTickDoesNotSkipDebounce(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	co, timers := newCoordinator(store)

	if err := co.NotifyEdit(NewNote(), "Algebra", "first draft", nil); err != nil {
		t.Fatal(err)
	}
	timers.mu.Lock()
	stale := timers.timers[0]
	timers.mu.Unlock()

	// A tick that started before the flush stopped its timer
	if err := co.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if err := co.NotifyEdit(NewNote(), "Algebra", "second draft", nil); err != nil {
		t.Fatal(err)
	}
	stale.f()

	if n := len(store.calls()); n != 1 {
		t.Fatalf("stale tick saved early: %d upserts", n)
	}
	if n := timers.armed(); n != 1 {
		t.Fatalf("expected the new timer to stay armed, got %d", n)
	}
	timers.fire()
	calls := store.calls()
	if len(calls) != 2 || calls[1].Content != "second draft" {
		t.Errorf("unexpected upserts: %+v", calls)
	}
}

// lateCommitProvider commits note inserts and then stalls past the flush deadline.
type lateCommitProvider struct {
	storage.Provider
	delay time.Duration
}

func (p *lateCommitProvider) InsertNote(ctx context.Context, note models.Note) (int64, error) {
	id, err := p.Provider.InsertNote(ctx, note)
	time.Sleep(p.delay)
	return id, err
}

func TestLateCommitIsNotSavedTwice(t *testing.T) {
	ctx := context.Background()
	p, err := storage.New(constants.BackendJSON, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Init(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	store := records.New(&lateCommitProvider{Provider: p, delay: 80 * time.Millisecond},
		records.WithFlushTimeout(30*time.Millisecond))
	co, timers := newCoordinator(store)

	if err := co.NotifyEdit(NewNote(), "Algebra", "x+y=z", nil); err != nil {
		t.Fatal(err)
	}
	timers.fire()
	timers.fire()

	notes, err := store.ListNotes(ctx, records.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 {
		t.Fatalf("want 1 note, got %d: %+v", len(notes), notes)
	}
	if id, ok := co.CurrentID(); !ok || id != notes[0].ID {
		t.Errorf("buffer should hold note %d, got %d (%v)", notes[0].ID, id, ok)
	}
	if timers.armed() != 0 {
		t.Error("no retry should be armed after a committed save")
	}
}
