package service

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/models"
	"github.com/julianstephens/studylit/internal/records"
	"github.com/julianstephens/studylit/internal/stats"
)

// CompleteSession records a finished timer session with its XP award.
func (s *Service) CompleteSession(ctx context.Context, kind models.SessionKind, duration time.Duration) (models.StudySession, error) {
	seconds := int64(duration / time.Second)
	session, err := s.store.AddSession(ctx, models.StudySession{
		Kind:            kind,
		DurationSeconds: seconds,
		XPAwarded:       stats.SessionXP(s.cfg.XP, kind, seconds),
	})
	if err != nil {
		return models.StudySession{}, err
	}
	logger.Info("Session completed", "kind", kind, "seconds", seconds, "xp", session.XPAwarded)
	return session, nil
}

// RecordQuiz stores a taken quiz with its XP award.
func (s *Service) RecordQuiz(ctx context.Context, noteIDs []int64, questions []models.QuizQuestion, correct int) (models.QuizResult, error) {
	result, err := s.store.AddQuizResult(ctx, models.QuizResult{
		NoteIDs:   noteIDs,
		Questions: questions,
		Correct:   correct,
		XPAwarded: stats.QuizXP(s.cfg.XP, correct),
	})
	if err != nil {
		return models.QuizResult{}, err
	}
	logger.Info("Quiz recorded", "correct", correct, "questions", len(questions), "xp", result.XPAwarded)
	return result, nil
}

// Snapshot returns progress statistics for the current records.
func (s *Service) Snapshot(ctx context.Context) (models.StatsSnapshot, error) {
	return s.stats.Snapshot(ctx)
}

// GetNotesText returns the text of the given notes for quiz generation.
func (s *Service) GetNotesText(ctx context.Context, ids []int64) (string, error) {
	return s.store.GetNotesText(ctx, ids)
}

// GenerateQuiz builds up to max questions from the given notes, or from the most
// recent notes when ids is empty.
func (s *Service) GenerateQuiz(ctx context.Context, ids []int64, max int) ([]models.QuizQuestion, error) {
	if len(ids) == 0 {
		notes, err := s.store.ListNotes(ctx, records.Filter{})
		if err != nil {
			return nil, err
		}
		if len(notes) > quizSourceNotes {
			notes = notes[len(notes)-quizSourceNotes:]
		}
		for _, n := range notes {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no notes to build a quiz from")
	}

	text, err := s.store.GetNotesText(ctx, ids)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = constants.DefaultQuizQuestions
	}
	return s.quiz.Generate(ctx, text, max)
}

const quizSourceNotes = 200
