package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/studylit/internal/autosave"
	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/models"
	"github.com/julianstephens/studylit/internal/records"
)

type NoteCmd struct {
	Add    NoteAddCmd    `cmd:"" help:"Add a new note."`
	Edit   NoteEditCmd   `cmd:"" help:"Edit an existing note."`
	Show   NoteShowCmd   `cmd:"" help:"Show a note."`
	List   NoteListCmd   `cmd:"" help:"List notes."`
	Search NoteSearchCmd `cmd:"" help:"Search notes by title, content or tag."`
	Delete NoteDeleteCmd `cmd:"" help:"Delete a note."`
}

type NoteAddCmd struct {
	Content string `arg:"" optional:"" help:"Note content. Read from --file or stdin when omitted."`
	Title   string `short:"T" help:"Note title. Defaults to the next untitled name."`
	Tags    string `short:"t" help:"Comma-separated tags."`
	File    string `short:"f" help:"Read content from a file ('-' for stdin)."`
}

func (c *NoteAddCmd) Run(ctx *Context) error {
	content, err := readContent(c.Content, c.File)
	if err != nil {
		return err
	}

	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	// Each add is a new note, not the draft an earlier save turned into
	if err := svc.NewDraft(ctx.Ctx()); err != nil {
		return err
	}
	id, err := svc.SaveNote(ctx.Ctx(), autosave.NewNote(), c.Title, content, models.ParseTags(c.Tags))
	if err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}
	note, err := svc.GetNote(ctx.Ctx(), id)
	if err != nil {
		return err
	}
	ctx.printf("Added note: %s (ID: %d)\n", note.Title, note.ID)
	return nil
}

type NoteEditCmd struct {
	ID        int64  `arg:"" help:"Note ID to edit."`
	Title     string `short:"T" help:"New title."`
	Content   string `short:"c" help:"New content."`
	File      string `short:"f" help:"Read new content from a file ('-' for stdin)."`
	Tags      string `short:"t" help:"Replace tags with this comma-separated list."`
	ClearTags bool   `help:"Remove all tags."`
}

func (c *NoteEditCmd) Validate() error {
	if c.Content != "" && c.File != "" {
		return fmt.Errorf("use either --content or --file, not both")
	}
	if c.ClearTags && c.Tags != "" {
		return fmt.Errorf("use either --tags or --clear-tags, not both")
	}
	return nil
}

func (c *NoteEditCmd) Run(ctx *Context) error {
	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	note, err := svc.GetNote(ctx.Ctx(), c.ID)
	if err != nil {
		return fmt.Errorf("failed to find note with ID %d: %w", c.ID, err)
	}

	if c.Title != "" {
		note.Title = c.Title
	}
	if c.Content != "" {
		note.Content = c.Content
	}
	if c.File != "" {
		if note.Content, err = readContent("", c.File); err != nil {
			return err
		}
	}
	if c.Tags != "" {
		note.Tags = models.ParseTags(c.Tags)
	}
	if c.ClearTags {
		note.Tags = nil
	}

	if _, err := svc.SaveNote(ctx.Ctx(), autosave.ExistingNote(note.ID), note.Title, note.Content, note.Tags); err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	ctx.printf("Updated note: %s (ID: %d)\n", note.Title, note.ID)
	return nil
}

type NoteShowCmd struct {
	ID   int64 `arg:"" help:"Note ID to show."`
	JSON bool  `help:"Print the note as JSON."`
}

func (c *NoteShowCmd) Run(ctx *Context) error {
	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	note, err := svc.GetNote(ctx.Ctx(), c.ID)
	if err != nil {
		return err
	}

	if c.JSON {
		jsonBytes, err := json.MarshalIndent(note, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal note: %w", err)
		}
		ctx.println(string(jsonBytes))
		return nil
	}

	loc := ctx.Config.Location()
	ctx.println(titleStyle.Render(note.Title))
	ctx.println(mutedStyle.Render(fmt.Sprintf("#%d  created %s  updated %s",
		note.ID, formatTime(note.CreatedAt, loc), formatTime(note.UpdatedAt, loc))))
	if len(note.Tags) > 0 {
		ctx.println(tagStyle.Render(strings.Join(note.Tags, " · ")))
	}
	ctx.println()
	ctx.println(note.Content)
	return nil
}

type NoteListCmd struct {
	Tag   string `short:"t" help:"Only notes with this tag."`
	Since string `help:"Only notes created on or after this date (YYYY-MM-DD)."`
	Until string `help:"Only notes created before this date (YYYY-MM-DD)."`
	Limit int    `short:"n" help:"Show at most this many notes." default:"0"`
}

func (c *NoteListCmd) Validate() error {
	if c.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	return nil
}

func (c *NoteListCmd) Run(ctx *Context) error {
	loc := ctx.Config.Location()
	filter := records.Filter{Tag: c.Tag, Limit: c.Limit}
	var err error
	if filter.Since, err = parseDate(c.Since, loc); err != nil {
		return err
	}
	if filter.Until, err = parseDate(c.Until, loc); err != nil {
		return err
	}

	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	notes, err := svc.ListNotes(ctx.Ctx(), filter)
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}
	ctx.renderNotes(notes)
	return nil
}

type NoteSearchCmd struct {
	Query string `arg:"" help:"Text to search for."`
}

func (c *NoteSearchCmd) Run(ctx *Context) error {
	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	notes, err := svc.SearchNotes(ctx.Ctx(), c.Query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	ctx.renderNotes(notes)
	return nil
}

type NoteDeleteCmd struct {
	ID  int64 `arg:"" help:"Note ID to delete."`
	Yes bool  `short:"y" help:"Do not ask for confirmation."`
}

func (c *NoteDeleteCmd) Run(ctx *Context) error {
	svc, err := ctx.Service()
	if err != nil {
		return err
	}
	// Check if note exists first
	note, err := svc.GetNote(ctx.Ctx(), c.ID)
	if err != nil {
		return fmt.Errorf("failed to find note with ID %d: %w", c.ID, err)
	}

	if !c.Yes {
		ok, err := ctx.confirm(fmt.Sprintf("Delete note %q?", note.Title))
		if err != nil {
			return err
		}
		if !ok {
			ctx.println("Delete cancelled.")
			return nil
		}
	}

	if err := svc.DeleteNote(ctx.Ctx(), c.ID); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	ctx.printf("Deleted note: %s (ID: %d)\n", note.Title, c.ID)
	return nil
}

func (c *Context) renderNotes(notes []models.Note) {
	if len(notes) == 0 {
		c.println("No notes found.")
		return
	}
	loc := c.Config.Location()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "TITLE", "TAGS", "CREATED", "PREVIEW")
	for _, n := range notes {
		t.Row(fmt.Sprint(n.ID), truncate(n.Title, 32), strings.Join(n.Tags, ","),
			formatTime(n.CreatedAt, loc), truncate(n.Content, 40))
	}
	c.println(t.String())
}

func readContent(arg, file string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	var r io.Reader = os.Stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(constants.DateFormat, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}
