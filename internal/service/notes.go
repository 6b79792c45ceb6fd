package service

import (
	"context"
	"sort"
	"strings"

	"github.com/julianstephens/studylit/internal/autosave"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/models"
	"github.com/julianstephens/studylit/internal/records"
)

// NotifyEdit hands the latest editor contents to autosave.
func (s *Service) NotifyEdit(ref autosave.Ref, title, content string, tags []string) error {
	return s.autosave.NotifyEdit(ref, title, content, tags)
}

// SaveNote saves the editor contents for ref now. A draft's first save decides its id.
func (s *Service) SaveNote(ctx context.Context, ref autosave.Ref, title, content string, tags []string) (int64, error) {
	return s.autosave.Save(ctx, ref, title, content, tags)
}

// NewDraft saves the current buffer and starts a new note.
func (s *Service) NewDraft(ctx context.Context) error {
	return s.autosave.NewDraft(ctx)
}

// CurrentNoteID is the id of the note in the editor buffer, once saved.
func (s *Service) CurrentNoteID() (int64, bool) {
	return s.autosave.CurrentID()
}

// DeleteNote removes a note and stops autosave from writing it again.
func (s *Service) DeleteNote(ctx context.Context, id int64) error {
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return err
	}
	s.autosave.NoteDeleted(id)
	logger.Info("Note deleted", "id", id)
	return nil
}

func (s *Service) GetNote(ctx context.Context, id int64) (models.Note, error) {
	return s.store.GetNote(ctx, id)
}

func (s *Service) ListNotes(ctx context.Context, filter records.Filter) ([]models.Note, error) {
	return s.store.ListNotes(ctx, filter)
}

func (s *Service) SearchNotes(ctx context.Context, query string) ([]models.Note, error) {
	return s.store.SearchNotes(ctx, query)
}

// DuplicateNotes groups live notes with the same title and content. Each group is
// ordered oldest first.
func (s *Service) DuplicateNotes(ctx context.Context) ([][]models.Note, error) {
	notes, err := s.store.ListNotes(ctx, records.Filter{})
	if err != nil {
		return nil, err
	}
	groups := map[string][]models.Note{}
	var keys []string
	for _, n := range notes {
		key := strings.ToLower(strings.TrimSpace(n.Title)) + "\x00" + strings.TrimSpace(n.Content)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], n)
	}

	var dups [][]models.Note
	for _, k := range keys {
		if len(groups[k]) > 1 {
			dups = append(dups, groups[k])
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i][0].ID < dups[j][0].ID })
	return dups, nil
}

// RemoveDuplicateNotes deletes every duplicate but the oldest and returns the removed ids.
func (s *Service) RemoveDuplicateNotes(ctx context.Context) ([]int64, error) {
	dups, err := s.DuplicateNotes(ctx)
	if err != nil {
		return nil, err
	}
	var removed []int64
	for _, group := range dups {
		for _, n := range group[1:] {
			if err := s.DeleteNote(ctx, n.ID); err != nil {
				return removed, err
			}
			removed = append(removed, n.ID)
		}
	}
	return removed, nil
}
