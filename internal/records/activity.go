package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/julianstephens/studylit/internal/models"
)

// AddSession stores a completed session, assigning an id when it has none.
func (s *Store) AddSession(ctx context.Context, session models.StudySession) (models.StudySession, error) {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CompletedAt.IsZero() {
		session.CompletedAt = s.now()
	}
	if err := session.Validate(); err != nil {
		return models.StudySession{}, err
	}
	err := s.mutate(ctx, "add session", func(ctx context.Context) error {
		return s.provider.AddSession(ctx, session)
	})
	if err != nil {
		return models.StudySession{}, err
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]models.StudySession, error) {
	return s.provider.GetAllSessions(ctx)
}

// AddQuizResult stores a completed quiz, assigning an id when it has none.
func (s *Store) AddQuizResult(ctx context.Context, result models.QuizResult) (models.QuizResult, error) {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.TakenAt.IsZero() {
		result.TakenAt = s.now()
	}
	if err := result.Validate(); err != nil {
		return models.QuizResult{}, err
	}
	err := s.mutate(ctx, "add quiz result", func(ctx context.Context) error {
		return s.provider.AddQuizResult(ctx, result)
	})
	if err != nil {
		return models.QuizResult{}, err
	}
	return result, nil
}

func (s *Store) ListQuizResults(ctx context.Context) ([]models.QuizResult, error) {
	return s.provider.GetAllQuizResults(ctx)
}

// AddBadgeUnlocks records badge unlock facts. Badges already unlocked keep their
// original time. Nothing is written when every badge is already recorded.
func (s *Store) AddBadgeUnlocks(ctx context.Context, unlocks []models.BadgeUnlock) error {
	if len(unlocks) == 0 {
		return nil
	}
	return s.mutate(ctx, "add badge unlocks", func(ctx context.Context) error {
		existing, err := s.provider.GetBadgeUnlocks(ctx)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		for _, u := range existing {
			have[u.BadgeID] = true
		}
		fresh := unlocks[:0:0]
		for _, u := range unlocks {
			if !have[u.BadgeID] {
				have[u.BadgeID] = true
				fresh = append(fresh, u)
			}
		}
		if len(fresh) == 0 {
			return errNothingToWrite
		}
		return s.provider.AddBadgeUnlocks(ctx, fresh)
	})
}

func (s *Store) ListBadgeUnlocks(ctx context.Context) ([]models.BadgeUnlock, error) {
	return s.provider.GetBadgeUnlocks(ctx)
}
