package models

import (
	"fmt"
	"time"
)

// ReminderStatus is the lifecycle state of a reminder
type ReminderStatus string

const (
	ReminderScheduled ReminderStatus = "scheduled"
	ReminderFired     ReminderStatus = "fired"
	ReminderCancelled ReminderStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s ReminderStatus) IsTerminal() bool {
	return s == ReminderFired || s == ReminderCancelled
}

func (s ReminderStatus) Valid() bool {
	switch s {
	case ReminderScheduled, ReminderFired, ReminderCancelled:
		return true
	}
	return false
}

// Reminder is a one-shot message delivered at FireAt.
type Reminder struct {
	ID        int64          `json:"id"`
	Message   string         `json:"message"`
	FireAt    time.Time      `json:"fire_at"`
	CreatedAt time.Time      `json:"created_at"`
	Status    ReminderStatus `json:"status"`
	FiredAt   *time.Time     `json:"fired_at,omitempty"`
	NoteID    int64          `json:"note_id,omitempty"` // optional note the reminder is about
}

func (r *Reminder) Validate() error {
	if r.Message == "" {
		return fmt.Errorf("reminder message cannot be empty")
	}
	if r.FireAt.IsZero() {
		return fmt.Errorf("reminder fire time cannot be empty")
	}
	if r.Status != "" && !r.Status.Valid() {
		return fmt.Errorf("invalid reminder status %q", r.Status)
	}
	if r.NoteID < 0 {
		return fmt.Errorf("invalid note id %d", r.NoteID)
	}
	return nil
}

// IsActive returns true while the reminder is still waiting to fire
func (r *Reminder) IsActive() bool {
	return r.Status == ReminderScheduled
}
