package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/studylit/internal/backup"
	"github.com/julianstephens/studylit/internal/config"
	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/instance"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/service"
)

// Context is shared by every command. The service is opened lazily so commands that
// never touch storage do not take the data directory lock.
type Context struct {
	Config     *config.Config
	ConfigPath string
	Out        io.Writer
	// Confirm asks a yes/no question. Defaults to a huh prompt.
	Confirm func(title string) (bool, error)
	// Prompt reads one line of input. Defaults to a huh prompt.
	Prompt func(title string) (string, error)
	// Options are passed to service.Open.
	Options []service.Option

	base context.Context
	svc  *service.Service
	lock *instance.Lock
}

func NewContext(base context.Context, cfg *config.Config, configPath string) *Context {
	return &Context{
		Config:     cfg,
		ConfigPath: configPath,
		Out:        os.Stdout,
		Confirm:    confirmPrompt,
		Prompt:     inputPrompt,
		base:       base,
	}
}

// Ctx returns the context commands run under.
func (c *Context) Ctx() context.Context {
	if c.base == nil {
		return context.Background()
	}
	return c.base
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.out(), format, args...)
}

func (c *Context) println(args ...any) {
	fmt.Fprintln(c.out(), args...)
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Service locks the data directory and opens storage on first use.
func (c *Context) Service() (*service.Service, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	lock, err := instance.Acquire(c.Config.DataDir)
	if err != nil {
		if instance.IsLocked(err) {
			return nil, fmt.Errorf("%w; stop the running studylit process first", err)
		}
		return nil, err
	}
	svc, err := service.Open(c.Ctx(), c.Config, c.Options...)
	if err != nil {
		if rerr := lock.Release(); rerr != nil {
			logger.Warn("Failed to release lockfile", "err", rerr)
		}
		return nil, err
	}
	c.svc = svc
	c.lock = lock
	return svc, nil
}

// Close closes the service and releases the lock if they were opened.
func (c *Context) Close() error {
	var err error
	if c.svc != nil {
		err = c.svc.Close(c.Ctx())
		c.svc = nil
	}
	if rerr := c.lock.Release(); rerr != nil && err == nil {
		err = rerr
	}
	c.lock = nil
	return err
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup(storagePath string) {
	mgr := backup.NewManager(c.Config.Backend, storagePath)
	if _, err := mgr.CreateBackup(c.Ctx()); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

func (c *Context) confirm(title string) (bool, error) {
	if c.Confirm == nil {
		return confirmPrompt(title)
	}
	return c.Confirm(title)
}

func confirmPrompt(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}

func (c *Context) prompt(title string) (string, error) {
	if c.Prompt == nil {
		return inputPrompt(title)
	}
	return c.Prompt(title)
}

func inputPrompt(title string) (string, error) {
	var answer string
	err := huh.NewInput().
		Title(title).
		Value(&answer).
		Run()
	return answer, err
}

// ParseIDs parses a comma-separated list of positive ids.
func ParseIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id: %s", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(loc).Format(constants.DateTimeFormat)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
