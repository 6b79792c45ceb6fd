package cli

import (
	"fmt"
	"strings"

	"github.com/julianstephens/studylit/internal/models"
)

type QuizCmd struct {
	Generate QuizGenerateCmd `cmd:"" help:"Generate quiz questions from notes."`
	Take     QuizTakeCmd     `cmd:"" help:"Answer a generated quiz and record the result."`
	Record   QuizRecordCmd   `cmd:"" help:"Record a quiz taken elsewhere."`
}

type QuizGenerateCmd struct {
	Notes   string `short:"n" help:"Comma-separated note IDs. Defaults to recent notes."`
	Max     int    `short:"m" help:"Maximum number of questions." default:"5"`
	Answers bool   `help:"Print answers below each question."`
}

func (c *QuizGenerateCmd) Validate() error {
	if c.Max < 1 {
		return fmt.Errorf("max must be at least 1")
	}
	return nil
}

func (c *QuizGenerateCmd) Run(ctx *Context) error {
	questions, _, err := generateQuiz(ctx, c.Notes, c.Max)
	if err != nil {
		return err
	}
	for i, q := range questions {
		ctx.printf("%d. %s\n", i+1, q.Question)
		if c.Answers {
			ctx.println(mutedStyle.Render("   answer: " + q.Answer))
		}
	}
	return nil
}

type QuizTakeCmd struct {
	Notes string `short:"n" help:"Comma-separated note IDs. Defaults to recent notes."`
	Max   int    `short:"m" help:"Maximum number of questions." default:"5"`
}

func (c *QuizTakeCmd) Validate() error {
	if c.Max < 1 {
		return fmt.Errorf("max must be at least 1")
	}
	return nil
}

func (c *QuizTakeCmd) Run(ctx *Context) error {
	questions, ids, err := generateQuiz(ctx, c.Notes, c.Max)
	if err != nil {
		return err
	}

	correct := 0
	for i, q := range questions {
		ctx.printf("%d. %s\n", i+1, q.Question)
		answer, err := ctx.prompt("Answer")
		if err != nil {
			return err
		}
		if strings.EqualFold(strings.TrimSpace(answer), q.Answer) {
			correct++
			ctx.println("   ✓ correct")
		} else {
			ctx.printf("   ✗ expected %q\n", q.Answer)
		}
	}

	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	result, err := svc.RecordQuiz(ctx.Ctx(), ids, questions, correct)
	if err != nil {
		return fmt.Errorf("failed to record quiz: %w", err)
	}
	ctx.printf("✓ Quiz recorded: %d/%d correct (+%d XP)\n", correct, len(questions), result.XPAwarded)
	return nil
}

type QuizRecordCmd struct {
	Notes   string `short:"n" help:"Comma-separated note IDs the quiz covered."`
	Correct int    `short:"c" required:"" help:"Number of correct answers."`
	Total   int    `short:"t" help:"Number of questions, if known."`
}

func (c *QuizRecordCmd) Validate() error {
	if c.Correct < 0 || c.Total < 0 {
		return fmt.Errorf("counts cannot be negative")
	}
	if c.Total > 0 && c.Correct > c.Total {
		return fmt.Errorf("correct answers (%d) exceed question count (%d)", c.Correct, c.Total)
	}
	return nil
}

func (c *QuizRecordCmd) Run(ctx *Context) error {
	ids, err := ParseIDs(c.Notes)
	if err != nil {
		return err
	}
	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	result, err := svc.RecordQuiz(ctx.Ctx(), ids, nil, c.Correct)
	if err != nil {
		return fmt.Errorf("failed to record quiz: %w", err)
	}
	ctx.printf("✓ Quiz recorded (+%d XP)\n", result.XPAwarded)
	return nil
}

// generateQuiz returns the questions and the note ids they were drawn from.
func generateQuiz(ctx *Context, notes string, max int) ([]models.QuizQuestion, []int64, error) {
	ids, err := ParseIDs(notes)
	if err != nil {
		return nil, nil, err
	}
	svc, err := ctx.Service()
	if err != nil {
		return nil, nil, err
	}
	questions, err := svc.GenerateQuiz(ctx.Ctx(), ids, max)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate quiz: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, fmt.Errorf("notes are too short to build questions from")
	}
	return questions, ids, nil
}
