package cli

import (
	"fmt"
	"time"

	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/models"
)

type SessionCmd struct {
	Complete SessionCompleteCmd `cmd:"" help:"Record a completed timer session."`
}

type SessionCompleteCmd struct {
	Kind     string        `arg:"" enum:"pomodoro,short_break,long_break,custom" help:"Session kind (pomodoro|short_break|long_break|custom)."`
	Duration time.Duration `short:"d" help:"Session length. Required for custom sessions."`
}

func (c *SessionCompleteCmd) Validate() error {
	if c.Duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	if models.SessionKind(c.Kind) == models.SessionCustom && c.Duration < time.Second {
		return fmt.Errorf("custom sessions need --duration of at least 1s")
	}
	return nil
}

func (c *SessionCompleteCmd) Run(ctx *Context) error {
	kind := models.SessionKind(c.Kind)
	duration := c.Duration
	if duration == 0 {
		switch kind {
		case models.SessionPomodoro:
			duration = constants.DefaultPomodoroDuration
		case models.SessionShortBreak:
			duration = constants.DefaultShortBreakDuration
		case models.SessionLongBreak:
			duration = constants.DefaultLongBreakDuration
		}
	}

	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	session, err := svc.CompleteSession(ctx.Ctx(), kind, duration)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	ctx.printf("✓ %s recorded (%s, +%d XP)\n", kind, session.Duration(), session.XPAwarded)
	return nil
}
