package service

import (
	"context"
	"errors"
	"time"

	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/models"
	"github.com/julianstephens/studylit/internal/records"
)

// ScheduleReminder persists a reminder and schedules it. fireAt must be in the future;
// past times are rejected with an InvalidTimeError before anything is stored.
func (s *Service) ScheduleReminder(ctx context.Context, message string, fireAt time.Time, noteID int64) (models.Reminder, error) {
	if now := s.now(); !fireAt.After(now) {
		return models.Reminder{}, &apperr.InvalidTimeError{FireAt: fireAt, Now: now}
	}

	r, err := s.store.CreateReminder(ctx, message, fireAt, noteID)
	if err != nil {
		return models.Reminder{}, err
	}
	if err := s.scheduler.Schedule(r.ID, r.FireAt, s.notify); err != nil {
		if cerr := s.store.MarkReminderCancelled(ctx, r.ID); cerr != nil {
			logger.Error("Failed to cancel unscheduled reminder", "id", r.ID, "err", cerr)
		}
		return models.Reminder{}, err
	}
	logger.Info("Reminder scheduled", "id", r.ID, "fire_at", r.FireAt)
	return r, nil
}

// CancelReminder stops a reminder from firing. Cancelling a reminder that already fired
// or was already cancelled succeeds without changes.
func (s *Service) CancelReminder(ctx context.Context, id int64) error {
	r, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return err
	}
	if r.Status.IsTerminal() {
		return nil
	}

	if err := s.scheduler.Cancel(ctx, id); err != nil && !apperr.IsNotFound(err) {
		return err
	}
	err = s.store.MarkReminderCancelled(ctx, id)
	if errors.Is(err, records.ErrReminderClosed) {
		// It fired while we were cancelling
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("Reminder cancelled", "id", id)
	return nil
}

func (s *Service) GetReminder(ctx context.Context, id int64) (models.Reminder, error) {
	return s.store.GetReminder(ctx, id)
}

func (s *Service) ListReminders(ctx context.Context, activeOnly bool) ([]models.Reminder, error) {
	return s.store.ListReminders(ctx, activeOnly)
}
