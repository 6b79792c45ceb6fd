package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/studylit/internal/models"
)

// ErrReminderClosed is returned when a transition would leave a terminal reminder state.
var ErrReminderClosed = errors.New("reminder already closed")

// CreateReminder persists a new scheduled reminder. noteID may be 0.
func (s *Store) CreateReminder(ctx context.Context, message string, fireAt time.Time, noteID int64) (models.Reminder, error) {
	r := models.Reminder{
		Message: message,
		FireAt:  fireAt,
		Status:  models.ReminderScheduled,
		NoteID:  noteID,
	}
	if err := r.Validate(); err != nil {
		return models.Reminder{}, err
	}

	err := s.mutate(ctx, "create reminder", func(ctx context.Context) error {
		if r.NoteID != 0 {
			if _, err := s.provider.GetNote(ctx, r.NoteID); err != nil {
				return err
			}
		}
		r.CreatedAt = s.now()
		id, err := s.provider.InsertReminder(ctx, r)
		if err != nil {
			return err
		}
		r.ID = id
		return nil
	})
	if err != nil {
		return models.Reminder{}, err
	}
	return r, nil
}

func (s *Store) GetReminder(ctx context.Context, id int64) (models.Reminder, error) {
	return s.provider.GetReminder(ctx, id)
}

// ListReminders returns reminders ordered by fire time, ties by id. With activeOnly,
// fired and cancelled reminders are left out.
func (s *Store) ListReminders(ctx context.Context, activeOnly bool) ([]models.Reminder, error) {
	all, err := s.provider.GetAllReminders(ctx)
	if err != nil {
		return nil, err
	}
	reminders := make([]models.Reminder, 0, len(all))
	for _, r := range all {
		if activeOnly && !r.IsActive() {
			continue
		}
		reminders = append(reminders, r)
	}
	sort.SliceStable(reminders, func(i, j int) bool {
		if !reminders[i].FireAt.Equal(reminders[j].FireAt) {
			return reminders[i].FireAt.Before(reminders[j].FireAt)
		}
		return reminders[i].ID < reminders[j].ID
	})
	return reminders, nil
}

// ScheduledReminders returns every reminder still waiting to fire, earliest first.
func (s *Store) ScheduledReminders(ctx context.Context) ([]models.Reminder, error) {
	return s.ListReminders(ctx, true)
}

// MarkReminderFired moves a scheduled reminder to fired. Marking an already fired
// reminder again succeeds so that retries are safe.
func (s *Store) MarkReminderFired(ctx context.Context, id int64, at time.Time) error {
	return s.transition(ctx, "mark reminder fired", id, models.ReminderFired, &at)
}

// MarkReminderCancelled moves a scheduled reminder to cancelled. Cancelling an already
// cancelled reminder succeeds.
func (s *Store) MarkReminderCancelled(ctx context.Context, id int64) error {
	return s.transition(ctx, "cancel reminder", id, models.ReminderCancelled, nil)
}

func (s *Store) transition(ctx context.Context, op string, id int64, to models.ReminderStatus, firedAt *time.Time) error {
	return s.mutate(ctx, op, func(ctx context.Context) error {
		r, err := s.provider.GetReminder(ctx, id)
		if err != nil {
			return err
		}
		if r.Status == to {
			return errNothingToWrite
		}
		if r.Status.IsTerminal() {
			return fmt.Errorf("reminder %d is %s: %w", id, r.Status, ErrReminderClosed)
		}
		r.Status = to
		r.FiredAt = firedAt
		return s.provider.UpdateReminder(ctx, r)
	})
}
