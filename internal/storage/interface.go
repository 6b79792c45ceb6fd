package storage

import (
	"context"

	"github.com/julianstephens/studylit/internal/models"
)

// Provider is a durable backend for studylit records. Every mutating call must be durable
// when it returns nil, and must leave the stored state untouched when ctx is done before
// the write commits. Providers are not safe for concurrent mutation; callers serialize.
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error

	// Notes
	InsertNote(ctx context.Context, note models.Note) (int64, error)
	UpdateNote(ctx context.Context, note models.Note) error
	GetNote(ctx context.Context, id int64) (models.Note, error)
	DeleteNote(ctx context.Context, id int64) error
	GetAllNotes(ctx context.Context) ([]models.Note, error)

	// Reminders
	InsertReminder(ctx context.Context, reminder models.Reminder) (int64, error)
	UpdateReminder(ctx context.Context, reminder models.Reminder) error
	GetReminder(ctx context.Context, id int64) (models.Reminder, error)
	GetAllReminders(ctx context.Context) ([]models.Reminder, error)

	// Activity
	AddSession(ctx context.Context, session models.StudySession) error
	GetAllSessions(ctx context.Context) ([]models.StudySession, error)
	AddQuizResult(ctx context.Context, result models.QuizResult) error
	GetAllQuizResults(ctx context.Context) ([]models.QuizResult, error)
	AddBadgeUnlocks(ctx context.Context, unlocks []models.BadgeUnlock) error
	GetBadgeUnlocks(ctx context.Context) ([]models.BadgeUnlock, error)

	// Utils
	GetConfigPath() string
}
