package cli

import (
	"errors"
	"fmt"

	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/notifier"
)

// NotifyCmd sends a one-off notification through the tray app.
type NotifyCmd struct {
	Message string `arg:"" help:"Notification text."`
	Title   string `help:"Notification title." default:"studylit"`
	DryRun  bool   `help:"Print the notification instead of sending it."`
}

func (c *NotifyCmd) Run(ctx *Context) error {
	if !ctx.Config.Notifications.Enabled {
		ctx.println("Notifications are disabled in config.")
		return nil
	}
	if c.DryRun {
		ctx.printf("[DryRun] %s: %s\n", c.Title, c.Message)
		return nil
	}
	if err := notifier.New().Notify(ctx.Ctx(), c.Title, c.Message); err != nil {
		if errors.Is(err, notifier.ErrTrayNotRunning) {
			return fmt.Errorf("%w; start %s first", err, constants.TrayAppExecutable)
		}
		return fmt.Errorf("failed to send notification: %w", err)
	}
	ctx.println("✓ Notification sent")
	return nil
}
