package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/models"
)

const reminderColumns = "id, message, fire_at, status, created_at, fired_at, note_id"

func firedAtValue(r models.Reminder) any {
	if r.FiredAt == nil {
		return nil
	}
	return formatTime(*r.FiredAt)
}

func (s *Store) InsertReminder(ctx context.Context, reminder models.Reminder) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = nextSequence(ctx, tx, "reminders"); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reminders (id, message, fire_at, status, created_at, fired_at, note_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, reminder.Message, formatTime(reminder.FireAt), string(reminder.Status),
			formatTime(reminder.CreatedAt), firedAtValue(reminder), reminder.NoteID)
		if err != nil {
			return fmt.Errorf("failed to insert reminder: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpdateReminder(ctx context.Context, reminder models.Reminder) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE reminders SET message = ?, fire_at = ?, status = ?, created_at = ?, fired_at = ?, note_id = ?
			WHERE id = ?
		`, reminder.Message, formatTime(reminder.FireAt), string(reminder.Status),
			formatTime(reminder.CreatedAt), firedAtValue(reminder), reminder.NoteID, reminder.ID)
		if err != nil {
			return fmt.Errorf("failed to update reminder: %w", err)
		}
		return requireRow(res, "reminder", reminder.ID)
	})
}

func (s *Store) GetReminder(ctx context.Context, id int64) (models.Reminder, error) {
	if s.db == nil {
		return models.Reminder{}, fmt.Errorf("storage not loaded")
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reminder{}, apperr.NewNotFound("reminder", id)
	}
	if err != nil {
		return models.Reminder{}, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

func (s *Store) GetAllReminders(ctx context.Context) ([]models.Reminder, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+reminderColumns+" FROM reminders ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	reminders := []models.Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func scanReminder(row scanner) (models.Reminder, error) {
	var r models.Reminder
	var message, status sql.NullString
	var fireAt, createdAt, firedAt sql.NullString
	var noteID sql.NullInt64
	if err := row.Scan(&r.ID, &message, &fireAt, &status, &createdAt, &firedAt, &noteID); err != nil {
		return models.Reminder{}, err
	}
	r.Message = message.String
	r.Status = models.ReminderStatus(status.String)
	if r.Status == "" {
		r.Status = models.ReminderScheduled
	}
	r.NoteID = noteID.Int64

	var err error
	if r.FireAt, err = parseTime(fireAt); err != nil {
		return models.Reminder{}, err
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Reminder{}, err
	}
	if firedAt.Valid && firedAt.String != "" {
		t, err := parseTime(firedAt)
		if err != nil {
			return models.Reminder{}, err
		}
		r.FiredAt = &t
	}
	return r, nil
}
