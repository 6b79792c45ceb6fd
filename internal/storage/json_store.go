package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/models"
	"github.com/julianstephens/studylit/internal/utils"
)

const jsonDocumentVersion = 1

// Sequences hold the last id handed out per record kind. They only ever grow.
type Sequences struct {
	Notes     int64 `json:"notes"`
	Reminders int64 `json:"reminders"`
}

// Document is the on-disk layout of the JSON backend.
type Document struct {
	Version      int                       `json:"version"`
	Notes        map[int64]models.Note     `json:"notes"`
	Reminders    map[int64]models.Reminder `json:"reminders"`
	Sessions     []models.StudySession     `json:"sessions"`
	QuizResults  []models.QuizResult       `json:"quiz_results"`
	BadgeUnlocks []models.BadgeUnlock      `json:"badge_unlocks"`
	Sequences    Sequences                 `json:"sequences"`
}

func newDocument() *Document {
	return &Document{
		Version:      jsonDocumentVersion,
		Notes:        make(map[int64]models.Note),
		Reminders:    make(map[int64]models.Reminder),
		Sessions:     []models.StudySession{},
		QuizResults:  []models.QuizResult{},
		BadgeUnlocks: []models.BadgeUnlock{},
	}
}

func (d *Document) clone() *Document {
	c := &Document{
		Version:      d.Version,
		Notes:        make(map[int64]models.Note, len(d.Notes)),
		Reminders:    make(map[int64]models.Reminder, len(d.Reminders)),
		Sessions:     append([]models.StudySession{}, d.Sessions...),
		QuizResults:  append([]models.QuizResult{}, d.QuizResults...),
		BadgeUnlocks: append([]models.BadgeUnlock{}, d.BadgeUnlocks...),
		Sequences:    d.Sequences,
	}
	for id, n := range d.Notes {
		c.Notes[id] = n.Clone()
	}
	for id, r := range d.Reminders {
		c.Reminders[id] = r
	}
	return c
}

// normalize coerces missing values to their defaults so field types never drift
// between saves, and repairs sequences that lag behind stored ids.
func (d *Document) normalize() {
	if d.Notes == nil {
		d.Notes = make(map[int64]models.Note)
	}
	if d.Reminders == nil {
		d.Reminders = make(map[int64]models.Reminder)
	}
	if d.Sessions == nil {
		d.Sessions = []models.StudySession{}
	}
	if d.QuizResults == nil {
		d.QuizResults = []models.QuizResult{}
	}
	if d.BadgeUnlocks == nil {
		d.BadgeUnlocks = []models.BadgeUnlock{}
	}

	for id, n := range d.Notes {
		n.ID = id
		n.Tags = models.NormalizeTags(n.Tags)
		d.Notes[id] = n
		if id > d.Sequences.Notes {
			logger.Warn("Note sequence behind stored ids, repairing", "sequence", d.Sequences.Notes, "id", id)
			d.Sequences.Notes = id
		}
	}
	for id, r := range d.Reminders {
		r.ID = id
		if r.Status == "" {
			r.Status = models.ReminderScheduled
		}
		d.Reminders[id] = r
		if id > d.Sequences.Reminders {
			d.Sequences.Reminders = id
		}
	}
}

// JSONStore keeps the whole document in memory and rewrites the file atomically on every
// mutation. A mutation is applied to a copy that replaces the in-memory document only
// once the file has been renamed into place.
type JSONStore struct {
	path string

	mu  sync.RWMutex
	doc *Document
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("storage already initialized at %s", s.path)
	}

	doc := newDocument()
	if err := s.write(ctx, doc); err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

func (s *JSONStore) Load(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run 'studylit init' first")
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}
	if doc.Version > jsonDocumentVersion {
		return fmt.Errorf("storage version (%d) is newer than supported version (%d) - please upgrade the application", doc.Version, jsonDocumentVersion)
	}
	doc.Version = jsonDocumentVersion
	doc.normalize()

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}

func (s *JSONStore) write(ctx context.Context, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}
	if err := utils.WriteFileAtomic(ctx, s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the document and commits it durably.
func (s *JSONStore) mutate(ctx context.Context, fn func(doc *Document) error) error {
	s.mu.RLock()
	current := s.doc
	s.mu.RUnlock()
	if current == nil {
		return fmt.Errorf("storage not loaded")
	}

	next := current.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.write(ctx, next); err != nil {
		return err
	}

	s.mu.Lock()
	s.doc = next
	s.mu.Unlock()
	return nil
}

func (s *JSONStore) view() (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	return s.doc, nil
}

func (s *JSONStore) InsertNote(ctx context.Context, note models.Note) (int64, error) {
	var id int64
	err := s.mutate(ctx, func(doc *Document) error {
		doc.Sequences.Notes++
		id = doc.Sequences.Notes
		note.ID = id
		note.Tags = models.NormalizeTags(note.Tags)
		doc.Notes[id] = note
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *JSONStore) UpdateNote(ctx context.Context, note models.Note) error {
	return s.mutate(ctx, func(doc *Document) error {
		if _, ok := doc.Notes[note.ID]; !ok {
			return apperr.NewNotFound("note", note.ID)
		}
		note.Tags = models.NormalizeTags(note.Tags)
		doc.Notes[note.ID] = note
		return nil
	})
}

func (s *JSONStore) GetNote(ctx context.Context, id int64) (models.Note, error) {
	doc, err := s.view()
	if err != nil {
		return models.Note{}, err
	}
	note, ok := doc.Notes[id]
	if !ok {
		return models.Note{}, apperr.NewNotFound("note", id)
	}
	return note.Clone(), nil
}

func (s *JSONStore) DeleteNote(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(doc *Document) error {
		if _, ok := doc.Notes[id]; !ok {
			return apperr.NewNotFound("note", id)
		}
		delete(doc.Notes, id)
		return nil
	})
}

func (s *JSONStore) GetAllNotes(ctx context.Context) ([]models.Note, error) {
	doc, err := s.view()
	if err != nil {
		return nil, err
	}
	notes := make([]models.Note, 0, len(doc.Notes))
	for _, n := range doc.Notes {
		notes = append(notes, n.Clone())
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes, nil
}

func (s *JSONStore) InsertReminder(ctx context.Context, reminder models.Reminder) (int64, error) {
	var id int64
	err := s.mutate(ctx, func(doc *Document) error {
		doc.Sequences.Reminders++
		id = doc.Sequences.Reminders
		reminder.ID = id
		doc.Reminders[id] = reminder
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *JSONStore) UpdateReminder(ctx context.Context, reminder models.Reminder) error {
	return s.mutate(ctx, func(doc *Document) error {
		if _, ok := doc.Reminders[reminder.ID]; !ok {
			return apperr.NewNotFound("reminder", reminder.ID)
		}
		doc.Reminders[reminder.ID] = reminder
		return nil
	})
}

func (s *JSONStore) GetReminder(ctx context.Context, id int64) (models.Reminder, error) {
	doc, err := s.view()
	if err != nil {
		return models.Reminder{}, err
	}
	r, ok := doc.Reminders[id]
	if !ok {
		return models.Reminder{}, apperr.NewNotFound("reminder", id)
	}
	return r, nil
}

func (s *JSONStore) GetAllReminders(ctx context.Context) ([]models.Reminder, error) {
	doc, err := s.view()
	if err != nil {
		return nil, err
	}
	reminders := make([]models.Reminder, 0, len(doc.Reminders))
	for _, r := range doc.Reminders {
		reminders = append(reminders, r)
	}
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].ID < reminders[j].ID })
	return reminders, nil
}

func (s *JSONStore) AddSession(ctx context.Context, session models.StudySession) error {
	return s.mutate(ctx, func(doc *Document) error {
		doc.Sessions = append(doc.Sessions, session)
		return nil
	})
}

func (s *JSONStore) GetAllSessions(ctx context.Context) ([]models.StudySession, error) {
	doc, err := s.view()
	if err != nil {
		return nil, err
	}
	return append([]models.StudySession{}, doc.Sessions...), nil
}

func (s *JSONStore) AddQuizResult(ctx context.Context, result models.QuizResult) error {
	return s.mutate(ctx, func(doc *Document) error {
		doc.QuizResults = append(doc.QuizResults, result)
		return nil
	})
}

func (s *JSONStore) GetAllQuizResults(ctx context.Context) ([]models.QuizResult, error) {
	doc, err := s.view()
	if err != nil {
		return nil, err
	}
	return append([]models.QuizResult{}, doc.QuizResults...), nil
}

// AddBadgeUnlocks stores unlocks whose badge is not yet recorded; existing facts win.
func (s *JSONStore) AddBadgeUnlocks(ctx context.Context, unlocks []models.BadgeUnlock) error {
	if len(unlocks) == 0 {
		return nil
	}
	return s.mutate(ctx, func(doc *Document) error {
		have := make(map[string]bool, len(doc.BadgeUnlocks))
		for _, u := range doc.BadgeUnlocks {
			have[u.BadgeID] = true
		}
		for _, u := range unlocks {
			if have[u.BadgeID] {
				continue
			}
			have[u.BadgeID] = true
			doc.BadgeUnlocks = append(doc.BadgeUnlocks, u)
		}
		return nil
	})
}

func (s *JSONStore) GetBadgeUnlocks(ctx context.Context) ([]models.BadgeUnlock, error) {
	doc, err := s.view()
	if err != nil {
		return nil, err
	}
	return append([]models.BadgeUnlock{}, doc.BadgeUnlocks...), nil
}
