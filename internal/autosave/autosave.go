// Package autosave debounces editor changes into note upserts.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/julianstephens/studylit/internal/constants"
	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/models"
)

var ErrClosed = errors.New("autosave coordinator is closed")

// Store is the part of the record store autosave writes through.
type Store interface {
	UpsertNote(ctx context.Context, note models.Note) (int64, error)
	NextUntitledTitle(ctx context.Context) (string, error)
}

// Timer is the handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc calls f once d has elapsed.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Ref names the note an edit belongs to: the draft being composed, or an existing note.
type Ref struct {
	id int64
}

// NewNote refers to the draft started by the last NewDraft. Once the draft has been
// saved it keeps referring to the saved note.
func NewNote() Ref { return Ref{} }

// ExistingNote refers to a stored note.
func ExistingNote(id int64) Ref { return Ref{id: id} }

func (r Ref) String() string {
	if r.id == 0 {
		return "new note"
	}
	return fmt.Sprintf("note %d", r.id)
}

type state int

const (
	stateDraft state = iota
	stateSaved
	stateDeleted
)

func (s state) String() string {
	switch s {
	case stateDraft:
		return "draft"
	case stateSaved:
		return "saved"
	case stateDeleted:
		return "deleted"
	}
	return "unknown"
}

type buffer struct {
	state state
	id    int64
	// fromDraft is set when the note was first inserted by this buffer
	fromDraft bool
	// autoTitle is the generated title reused while the editor title stays blank
	autoTitle string
}

func (b buffer) refersTo(ref Ref) bool {
	if ref.id == 0 {
		return b.state == stateDraft || b.fromDraft
	}
	return b.state != stateDraft && b.id == ref.id
}

type edit struct {
	title    string
	content  string
	tags     []string
	explicit bool
}

type Option func(*Coordinator)

func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Coordinator) {
		c.afterFunc = fn
	}
}

// Coordinator owns one editor buffer. The first edit of an interval arms a timer and
// later edits replace the pending content, so at most one upsert runs per interval.
// Saves never overlap.
type Coordinator struct {
	store     Store
	interval  time.Duration
	afterFunc AfterFunc

	saveMu sync.Mutex

	mu      sync.Mutex
	buf     buffer
	pending *edit
	timer   Timer
	// gen identifies the armed timer. A tick whose generation is stale does nothing.
	gen    uint64
	closed bool
}

func New(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		interval:  constants.DefaultAutosaveInterval,
		afterFunc: realAfterFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifyEdit records the latest editor contents for ref. Editing a different note than
// the buffer holds saves the pending edit first. Edits to a deleted note are refused
// with a NotFoundError.
func (c *Coordinator) NotifyEdit(ref Ref, title, content string, tags []string) error {
	e := &edit{title: title, content: content, tags: append([]string(nil), tags...)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.buf.refersTo(ref) {
		err := c.queueLocked(e)
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	// Switching notes: settle the old buffer before retargeting
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if err := c.save(context.Background()); err != nil && !apperr.IsNotFound(err) {
		return fmt.Errorf("failed to save previous note: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.retargetLocked(ref)
	return c.queueLocked(e)
}

// Save writes the editor contents for ref immediately and returns the note id. Unlike
// autosave it also saves short content.
func (c *Coordinator) Save(ctx context.Context, ref Ref, title, content string, tags []string) (int64, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	if !c.buf.refersTo(ref) {
		c.mu.Unlock()
		if err := c.save(ctx); err != nil && !apperr.IsNotFound(err) {
			return 0, fmt.Errorf("failed to save previous note: %w", err)
		}
		c.mu.Lock()
		c.retargetLocked(ref)
	}
	if c.buf.state == stateDeleted {
		id := c.buf.id
		c.mu.Unlock()
		return 0, apperr.NewNotFound("note", id)
	}
	c.pending = &edit{title: title, content: content, tags: append([]string(nil), tags...), explicit: true}
	c.mu.Unlock()

	if err := c.save(ctx); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.state != stateSaved {
		return 0, apperr.NewNotFound("note", c.buf.id)
	}
	return c.buf.id, nil
}

func (c *Coordinator) retargetLocked(ref Ref) {
	if c.buf.refersTo(ref) {
		return
	}
	c.stopTimerLocked()
	c.pending = nil
	if ref.id == 0 {
		c.buf = buffer{state: stateDraft}
	} else {
		c.buf = buffer{state: stateSaved, id: ref.id}
	}
	logger.Debug("Autosave buffer switched", "ref", ref)
}

func (c *Coordinator) queueLocked(e *edit) error {
	if c.buf.state == stateDeleted {
		return apperr.NewNotFound("note", c.buf.id)
	}
	c.pending = e
	if c.timer == nil {
		c.armTimerLocked()
	}
	return nil
}

func (c *Coordinator) armTimerLocked() {
	c.gen++
	gen := c.gen
	c.timer = c.afterFunc(c.interval, func() { c.tick(gen) })
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) tick(gen uint64) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	// Stopping a timer cannot recall a tick already waiting on saveMu
	c.mu.Lock()
	current := c.timer != nil && c.gen == gen
	c.mu.Unlock()
	if !current {
		return
	}

	err := c.save(context.Background())
	switch {
	case err == nil:
	case apperr.IsNotFound(err):
		logger.Info("Note was deleted, autosave stopped", "err", err)
	default:
		logger.Warn("Autosave failed", "err", err)
	}
}

// save writes the pending edit. Callers hold saveMu.
func (c *Coordinator) save(ctx context.Context) error {
	c.mu.Lock()
	c.stopTimerLocked()
	e := c.pending
	c.pending = nil
	buf := c.buf
	c.mu.Unlock()

	if e == nil || buf.state == stateDeleted {
		return nil
	}
	if !e.explicit && utf8.RuneCountInString(strings.TrimSpace(e.content)) < constants.MinAutosaveContentLen {
		logger.Debug("Skipping autosave of short content", "id", buf.id)
		return nil
	}

	title := strings.TrimSpace(e.title)
	if title == "" {
		title = buf.autoTitle
		if title == "" {
			t, err := c.store.NextUntitledTitle(ctx)
			if err != nil {
				return err
			}
			title = t
		}
	}

	note := models.Note{Title: title, Content: e.content, Tags: e.tags}
	if buf.state == stateSaved {
		note.ID = buf.id
	}

	id, err := c.store.UpsertNote(ctx, note)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if apperr.IsNotFound(err) && buf.state == stateSaved {
			if c.buf.id == buf.id && c.buf.state == stateSaved {
				c.stopTimerLocked()
				c.pending = nil
				c.buf.state = stateDeleted
			}
			return err
		}
		// A timed out flush did not commit, so keep the edit and try again next interval
		if apperr.IsStorageTimeout(err) && c.pending == nil && c.buf == buf {
			c.pending = e
			if c.timer == nil && !c.closed {
				c.armTimerLocked()
			}
		}
		return err
	}

	if c.buf.state == buf.state && c.buf.id == buf.id {
		if buf.state == stateDraft {
			c.buf = buffer{state: stateSaved, id: id, fromDraft: true}
			logger.Debug("Draft saved", "id", id)
		}
		if strings.TrimSpace(e.title) == "" {
			c.buf.autoTitle = title
		} else {
			c.buf.autoTitle = ""
		}
	}
	return nil
}

// NoteDeleted drops any pending save for id and waits for a running save to finish.
// Later edits to id are refused.
func (c *Coordinator) NoteDeleted(id int64) {
	c.mu.Lock()
	c.markDeletedLocked(id)
	c.mu.Unlock()

	c.saveMu.Lock()
	c.mu.Lock()
	c.markDeletedLocked(id)
	c.mu.Unlock()
	c.saveMu.Unlock()
}

func (c *Coordinator) markDeletedLocked(id int64) {
	if c.buf.state == stateDraft || c.buf.id != id {
		return
	}
	c.stopTimerLocked()
	c.pending = nil
	c.buf.state = stateDeleted
}

// NewDraft saves the current buffer and starts an empty draft.
func (c *Coordinator) NewDraft(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	err := c.save(ctx)
	if apperr.IsNotFound(err) {
		err = nil
	}

	c.mu.Lock()
	c.stopTimerLocked()
	c.pending = nil
	c.buf = buffer{state: stateDraft}
	c.mu.Unlock()
	return err
}

// Flush saves the pending edit now.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	return c.save(ctx)
}

// CurrentID returns the id of the note in the buffer once it has one.
func (c *Coordinator) CurrentID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.state != stateSaved {
		return 0, false
	}
	return c.buf.id, true
}

// Close flushes the pending edit and refuses further edits.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	err := c.Flush(ctx)
	if apperr.IsNotFound(err) {
		return nil
	}
	return err
}
