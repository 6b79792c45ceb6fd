package records

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/studylit/internal/constants"
	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/models"
)

// Filter narrows ListNotes. Zero values match everything.
type Filter struct {
	Tag   string
	Since time.Time
	Until time.Time
	Limit int
}

func (f Filter) match(n *models.Note) bool {
	if f.Tag != "" && !n.HasTag(f.Tag) {
		return false
	}
	if !f.Since.IsZero() && n.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !n.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

// UpsertNote inserts a note when note.ID is 0 and returns the new id. Otherwise it
// overwrites the mutable fields of the stored note, keeping CreatedAt. Updating an id
// that does not exist (for example one that was deleted) returns a NotFoundError and
// never recreates the record.
func (s *Store) UpsertNote(ctx context.Context, note models.Note) (int64, error) {
	note.Title = strings.TrimSpace(note.Title)
	note.Tags = models.NormalizeTags(note.Tags)
	if err := note.Validate(); err != nil {
		return 0, err
	}

	id := note.ID
	err := s.mutate(ctx, "upsert note", func(ctx context.Context) error {
		now := s.now()
		if note.ID == 0 {
			note.CreatedAt = now
			note.UpdatedAt = now
			newID, err := s.provider.InsertNote(ctx, note)
			if err != nil {
				return err
			}
			id = newID
			return nil
		}

		existing, err := s.provider.GetNote(ctx, note.ID)
		if err != nil {
			return err
		}
		note.CreatedAt = existing.CreatedAt
		note.UpdatedAt = now
		return s.provider.UpdateNote(ctx, note)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetNote(ctx context.Context, id int64) (models.Note, error) {
	return s.provider.GetNote(ctx, id)
}

// DeleteNote removes the note. Its id is never handed out again.
func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	return s.mutate(ctx, "delete note", func(ctx context.Context) error {
		return s.provider.DeleteNote(ctx, id)
	})
}

// ListNotes returns notes ordered by creation time, ties broken by id.
func (s *Store) ListNotes(ctx context.Context, filter Filter) ([]models.Note, error) {
	all, err := s.provider.GetAllNotes(ctx)
	if err != nil {
		return nil, err
	}
	sortNotes(all)

	notes := make([]models.Note, 0, len(all))
	for i := range all {
		if !filter.match(&all[i]) {
			continue
		}
		notes = append(notes, all[i])
		if filter.Limit > 0 && len(notes) == filter.Limit {
			break
		}
	}
	return notes, nil
}

// SearchNotes returns notes whose title, content or tags contain query, ignoring case,
// in ListNotes order. An empty query matches every note.
func (s *Store) SearchNotes(ctx context.Context, query string) ([]models.Note, error) {
	all, err := s.ListNotes(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return all, nil
	}

	matches := []models.Note{}
	for i := range all {
		if all[i].Matches(query) {
			matches = append(matches, all[i])
		}
	}
	return matches, nil
}

// GetNotesText joins the title and content of each requested note, in the order given,
// separated by blank lines. Every id must exist.
func (s *Store) GetNotesText(ctx context.Context, ids []int64) (string, error) {
	var b strings.Builder
	for i, id := range ids {
		note, err := s.provider.GetNote(ctx, id)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(note.Title)
		b.WriteString("\n")
		b.WriteString(note.Content)
	}
	return b.String(), nil
}

// NextUntitledTitle returns "Untitled note #N" where N is one past the highest number
// already used by a stored note.
func (s *Store) NextUntitledTitle(ctx context.Context) (string, error) {
	notes, err := s.provider.GetAllNotes(ctx)
	if err != nil {
		return "", err
	}
	highest := 0
	for _, n := range notes {
		rest, ok := strings.CutPrefix(n.Title, constants.UntitledNotePrefix)
		if !ok {
			continue
		}
		if k, err := strconv.Atoi(rest); err == nil && k > highest {
			highest = k
		}
	}
	return fmt.Sprintf("%s%d", constants.UntitledNotePrefix, highest+1), nil
}

// NoteExists reports whether a live note with id exists.
func (s *Store) NoteExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.provider.GetNote(ctx, id)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func sortNotes(notes []models.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.Before(notes[j].CreatedAt)
		}
		return notes[i].ID < notes[j].ID
	})
}
