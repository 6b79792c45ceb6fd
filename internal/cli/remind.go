package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/utils"
)

type RemindCmd struct {
	Add    RemindAddCmd    `cmd:"" help:"Schedule a reminder."`
	List   RemindListCmd   `cmd:"" help:"List reminders."`
	Cancel RemindCancelCmd `cmd:"" help:"Cancel a scheduled reminder."`
}

type RemindAddCmd struct {
	Message string `arg:"" help:"Reminder message."`
	At      string `short:"a" required:"" help:"When to fire: +DURATION, HH:MM, 'YYYY-MM-DD HH:MM' or RFC3339."`
	Note    int64  `short:"n" help:"ID of the note this reminder is about."`
}

func (c *RemindAddCmd) Validate() error {
	if strings.TrimSpace(c.Message) == "" {
		return fmt.Errorf("reminder message cannot be empty")
	}
	if c.Note < 0 {
		return fmt.Errorf("invalid note id: %d", c.Note)
	}
	return nil
}

func (c *RemindAddCmd) Run(ctx *Context) error {
	loc := ctx.Config.Location()
	fireAt, err := utils.ParseFireAt(c.At, time.Now(), loc)
	if err != nil {
		return err
	}

	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	if c.Note != 0 {
		if _, err := svc.GetNote(ctx.Ctx(), c.Note); err != nil {
			return fmt.Errorf("failed to find note with ID %d: %w", c.Note, err)
		}
	}
	reminder, err := svc.ScheduleReminder(ctx.Ctx(), c.Message, fireAt, c.Note)
	if err != nil {
		if apperr.IsInvalidTime(err) {
			return fmt.Errorf("reminder time must be in the future: %w", err)
		}
		return err
	}
	ctx.printf("✓ Reminder %d scheduled for %s\n", reminder.ID, formatTime(reminder.FireAt, loc))
	ctx.println(mutedStyle.Render("Reminders fire while 'studylit run' is active."))
	return nil
}

type RemindListCmd struct {
	All bool `short:"a" help:"Include fired and cancelled reminders."`
}

func (c *RemindListCmd) Run(ctx *Context) error {
	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	reminders, err := svc.ListReminders(ctx.Ctx(), !c.All)
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}
	if len(reminders) == 0 {
		ctx.println("No reminders found.")
		return nil
	}

	loc := ctx.Config.Location()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "FIRE AT", "STATUS", "NOTE", "MESSAGE")
	for _, r := range reminders {
		note := "-"
		if r.NoteID != 0 {
			note = fmt.Sprint(r.NoteID)
		}
		t.Row(fmt.Sprint(r.ID), formatTime(r.FireAt, loc), string(r.Status), note, truncate(r.Message, 48))
	}
	ctx.println(t.String())
	return nil
}

type RemindCancelCmd struct {
	ID int64 `arg:"" help:"Reminder ID to cancel."`
}

func (c *RemindCancelCmd) Run(ctx *Context) error {
	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	before, err := svc.GetReminder(ctx.Ctx(), c.ID)
	if err != nil {
		return fmt.Errorf("failed to find reminder with ID %d: %w", c.ID, err)
	}
	if err := svc.CancelReminder(ctx.Ctx(), c.ID); err != nil {
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}
	if before.Status.IsTerminal() {
		ctx.printf("Reminder %d already %s\n", c.ID, before.Status)
		return nil
	}
	ctx.printf("✓ Cancelled reminder %d\n", c.ID)
	return nil
}
