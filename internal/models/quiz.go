package models

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// QuizQuestion is a single prompt with its expected answer.
type QuizQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuizResult records one completed quiz.
type QuizResult struct {
	ID        string         `json:"id"`
	NoteIDs   []int64        `json:"note_ids"`
	Questions []QuizQuestion `json:"questions"`
	Correct   int            `json:"correct"`
	TakenAt   time.Time      `json:"taken_at"`
	XPAwarded int            `json:"xp_awarded"`
}

func (q *QuizResult) Validate() error {
	if err := validation.ValidateStruct(q,
		validation.Field(&q.Correct, validation.Min(0)),
		validation.Field(&q.TakenAt, validation.Required),
		validation.Field(&q.XPAwarded, validation.Min(0)),
	); err != nil {
		return err
	}
	if len(q.Questions) > 0 && q.Correct > len(q.Questions) {
		return fmt.Errorf("correct answers (%d) exceed question count (%d)", q.Correct, len(q.Questions))
	}
	return nil
}
