package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// NotFoundError reports that a record with the given id does not exist.
// Callers usually recover locally, e.g. by telling the user the item is already gone.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound builds a NotFoundError for any printable id.
func NewNotFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

// InvalidTimeError is returned when a reminder is scheduled at or before the current time.
type InvalidTimeError struct {
	FireAt time.Time
	Now    time.Time
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("fire time %s is not in the future (now %s)",
		e.FireAt.Format(time.RFC3339), e.Now.Format(time.RFC3339))
}

// StorageTimeoutError is returned when a durable flush did not finish within its bound.
// The operation must be treated as not committed.
type StorageTimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *StorageTimeoutError) Error() string {
	return fmt.Sprintf("storage operation %q timed out after %s", e.Op, e.Timeout)
}

// ConsistencyError records a reminder whose callback ran but whose record could not be
// marked fired after all retries.
type ConsistencyError struct {
	ReminderID int64
	Attempts   int
	Err        error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("reminder %d fired but not marked after %d attempts: %v", e.ReminderID, e.Attempts, e.Err)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

// IsInvalidTime reports whether err wraps an InvalidTimeError.
func IsInvalidTime(err error) bool {
	var it *InvalidTimeError
	return stderrors.As(err, &it)
}

// IsStorageTimeout reports whether err wraps a StorageTimeoutError.
func IsStorageTimeout(err error) bool {
	var st *StorageTimeoutError
	return stderrors.As(err, &st)
}

// IsConsistency reports whether err wraps a ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return stderrors.As(err, &ce)
}
