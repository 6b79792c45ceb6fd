package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/models"
)

const noteColumns = "id, title, content, tags, created_at, updated_at"

func (s *Store) InsertNote(ctx context.Context, note models.Note) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = nextSequence(ctx, tx, "notes"); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notes (id, title, content, tags, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, note.Title, note.Content, models.FormatTags(note.Tags),
			formatTime(note.CreatedAt), formatTime(note.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert note: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpdateNote(ctx context.Context, note models.Note) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE notes SET title = ?, content = ?, tags = ?, created_at = ?, updated_at = ?
			WHERE id = ?
		`, note.Title, note.Content, models.FormatTags(note.Tags),
			formatTime(note.CreatedAt), formatTime(note.UpdatedAt), note.ID)
		if err != nil {
			return fmt.Errorf("failed to update note: %w", err)
		}
		return requireRow(res, "note", note.ID)
	})
}

func (s *Store) GetNote(ctx context.Context, id int64) (models.Note, error) {
	if s.db == nil {
		return models.Note{}, fmt.Errorf("storage not loaded")
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+noteColumns+" FROM notes WHERE id = ?", id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, apperr.NewNotFound("note", id)
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("failed to get note: %w", err)
	}
	return note, nil
}

func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete note: %w", err)
		}
		return requireRow(res, "note", id)
	})
}

func (s *Store) GetAllNotes(ctx context.Context) ([]models.Note, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+noteColumns+" FROM notes ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (models.Note, error) {
	var note models.Note
	var title, content, tags, createdAt, updatedAt sql.NullString
	if err := row.Scan(&note.ID, &title, &content, &tags, &createdAt, &updatedAt); err != nil {
		return models.Note{}, err
	}
	note.Title = title.String
	note.Content = content.String
	note.Tags = models.ParseTags(tags.String)

	var err error
	if note.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Note{}, err
	}
	if note.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Note{}, err
	}
	return note, nil
}

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return apperr.NewNotFound(kind, id)
	}
	return nil
}
