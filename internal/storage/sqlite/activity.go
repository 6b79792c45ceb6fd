package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/studylit/internal/models"
)

func (s *Store) AddSession(ctx context.Context, session models.StudySession) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, kind, duration_seconds, completed_at, xp_awarded)
			VALUES (?, ?, ?, ?, ?)
		`, session.ID, string(session.Kind), session.DurationSeconds, formatTime(session.CompletedAt), session.XPAwarded)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

func (s *Store) GetAllSessions(ctx context.Context) ([]models.StudySession, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, duration_seconds, completed_at, xp_awarded
		FROM sessions
		ORDER BY completed_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.StudySession{}
	for rows.Next() {
		var sess models.StudySession
		var kind string
		var completedAt sql.NullString
		if err := rows.Scan(&sess.ID, &kind, &sess.DurationSeconds, &completedAt, &sess.XPAwarded); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.Kind = models.SessionKind(kind)
		if sess.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) AddQuizResult(ctx context.Context, result models.QuizResult) error {
	noteIDs, err := json.Marshal(nonNil(result.NoteIDs))
	if err != nil {
		return fmt.Errorf("failed to marshal note ids: %w", err)
	}
	questions, err := json.Marshal(nonNil(result.Questions))
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quiz_results (id, note_ids, questions, correct, taken_at, xp_awarded)
			VALUES (?, ?, ?, ?, ?, ?)
		`, result.ID, string(noteIDs), string(questions), result.Correct, formatTime(result.TakenAt), result.XPAwarded)
		if err != nil {
			return fmt.Errorf("failed to insert quiz result: %w", err)
		}
		return nil
	})
}

func (s *Store) GetAllQuizResults(ctx context.Context) ([]models.QuizResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, note_ids, questions, correct, taken_at, xp_awarded
		FROM quiz_results
		ORDER BY taken_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz results: %w", err)
	}
	defer rows.Close()

	results := []models.QuizResult{}
	for rows.Next() {
		var q models.QuizResult
		var noteIDs, questions string
		var takenAt sql.NullString
		if err := rows.Scan(&q.ID, &noteIDs, &questions, &q.Correct, &takenAt, &q.XPAwarded); err != nil {
			return nil, fmt.Errorf("failed to scan quiz result: %w", err)
		}
		if err := json.Unmarshal([]byte(noteIDs), &q.NoteIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal note ids: %w", err)
		}
		if err := json.Unmarshal([]byte(questions), &q.Questions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
		}
		if q.TakenAt, err = parseTime(takenAt); err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

// AddBadgeUnlocks stores unlocks whose badge is not yet recorded; existing facts win.
func (s *Store) AddBadgeUnlocks(ctx context.Context, unlocks []models.BadgeUnlock) error {
	if len(unlocks) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range unlocks {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO badge_unlocks (badge_id, unlocked_at) VALUES (?, ?)",
				u.BadgeID, formatTime(u.UnlockedAt),
			); err != nil {
				return fmt.Errorf("failed to insert badge unlock: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) GetBadgeUnlocks(ctx context.Context) ([]models.BadgeUnlock, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	rows, err := s.db.QueryContext(ctx, "SELECT badge_id, unlocked_at FROM badge_unlocks ORDER BY unlocked_at ASC, badge_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query badge unlocks: %w", err)
	}
	defer rows.Close()

	unlocks := []models.BadgeUnlock{}
	for rows.Next() {
		var u models.BadgeUnlock
		var unlockedAt sql.NullString
		if err := rows.Scan(&u.BadgeID, &unlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge unlock: %w", err)
		}
		if u.UnlockedAt, err = parseTime(unlockedAt); err != nil {
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	return unlocks, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
