// Package scheduler fires one-shot reminders at their wall-clock time.
//
// Jobs live in a min-heap keyed by fire time. A single loop goroutine sleeps on a timer
// until the earliest job is due and is woken early whenever the head of the queue
// changes. Callbacks run on the loop goroutine one at a time.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/studylit/internal/constants"
	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/models"
)

var (
	// ErrAlreadyScheduled is returned when a reminder already has an active job.
	ErrAlreadyScheduled = errors.New("reminder already scheduled")
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("scheduler is shut down")
)

// Callback receives a fired reminder. It is invoked exactly once per fired reminder.
type Callback func(id int64, message string)

// Source is the reminder record store the scheduler reads and marks.
type Source interface {
	GetReminder(ctx context.Context, id int64) (models.Reminder, error)
	MarkReminderFired(ctx context.Context, id int64, at time.Time) error
	ScheduledReminders(ctx context.Context) ([]models.Reminder, error)
}

type Scheduler struct {
	src     Source
	now     func() time.Time
	retries int
	backoff time.Duration
	onError func(error)

	mu     sync.Mutex
	queue  jobQueue
	jobs   map[int64]*job
	firing *job
	closed bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used to validate and mark reminders.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithRetries sets how many times marking a fired reminder is attempted and the
// initial backoff, which doubles after each failure.
func WithRetries(attempts int, backoff time.Duration) Option {
	return func(s *Scheduler) {
		if attempts > 0 {
			s.retries = attempts
		}
		if backoff > 0 {
			s.backoff = backoff
		}
	}
}

// WithErrorHandler receives ConsistencyErrors for reminders whose callback ran but
// whose record could not be marked fired.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		s.onError = fn
	}
}

// New creates a scheduler and starts its loop.
func New(src Source, opts ...Option) *Scheduler {
	s := &Scheduler{
		src:      src,
		now:      time.Now,
		retries:  constants.DefaultMarkRetries,
		backoff:  constants.DefaultRetryBackoff,
		jobs:     make(map[int64]*job),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

// Schedule registers cb to fire for reminder id at fireAt. fireAt must be in the future.
// A reminder can have at most one active job.
func (s *Scheduler) Schedule(id int64, fireAt time.Time, cb Callback) error {
	if now := s.now(); !fireAt.After(now) {
		return &apperr.InvalidTimeError{FireAt: fireAt, Now: now}
	}
	return s.enqueue(id, fireAt, cb)
}

func (s *Scheduler) enqueue(id int64, fireAt time.Time, cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueueLocked(id, fireAt, cb)
}

func (s *Scheduler) enqueueLocked(id int64, fireAt time.Time, cb Callback) error {
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.jobs[id]; ok {
		return fmt.Errorf("reminder %d: %w", id, ErrAlreadyScheduled)
	}

	j := &job{id: id, fireAt: fireAt, cb: cb, done: make(chan struct{})}
	heap.Push(&s.queue, j)
	s.jobs[id] = j
	if s.queue[0] == j {
		s.signal()
	}
	logger.Debug("Reminder scheduled", "id", id, "fire_at", fireAt)
	return nil
}

// Cancel removes the pending job for id. If the job is firing, Cancel waits for it to
// finish and succeeds. If there is no job but the reminder has already fired, Cancel
// succeeds without doing anything. Otherwise it returns a NotFoundError.
//
// Cancel and Shutdown must not be called from inside a Callback.
func (s *Scheduler) Cancel(ctx context.Context, id int64) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		r, err := s.src.GetReminder(ctx, id)
		if err == nil && r.Status == models.ReminderFired {
			return nil
		}
		return apperr.NewNotFound("scheduled reminder", id)
	}

	if j == s.firing {
		s.mu.Unlock()
		select {
		case <-j.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	wasHead := j.index == 0
	heap.Remove(&s.queue, j.index)
	delete(s.jobs, id)
	close(j.done)
	if wasHead {
		s.signal()
	}
	s.mu.Unlock()

	logger.Debug("Reminder job cancelled", "id", id)
	return nil
}

// Recover schedules every reminder the source still lists as scheduled. Reminders whose
// time has passed fire as soon as possible, in ascending fire time. It returns the number
// of jobs added.
func (s *Scheduler) Recover(ctx context.Context, cb Callback) (int, error) {
	reminders, err := s.src.ScheduledReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load scheduled reminders: %w", err)
	}

	added := 0
	overdue := 0
	now := s.now()

	// Enqueue everything before the loop can pick any of it up
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range reminders {
		err := s.enqueueLocked(r.ID, r.FireAt, cb)
		if errors.Is(err, ErrAlreadyScheduled) {
			continue
		}
		if err != nil {
			return added, err
		}
		added++
		if !r.FireAt.After(now) {
			overdue++
		}
	}
	logger.Info("Recovered scheduled reminders", "count", added, "overdue", overdue)
	return added, nil
}

// Pending returns the ids of jobs waiting to fire, earliest first.
func (s *Scheduler) Pending() []int64 {
	s.mu.Lock()
	jobs := make([]*job, len(s.queue))
	copy(jobs, s.queue)
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].fireAt.Equal(jobs[j].fireAt) {
			return jobs[i].fireAt.Before(jobs[j].fireAt)
		}
		return jobs[i].id < jobs[j].id
	})
	ids := make([]int64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.id
	}
	return ids
}

// Shutdown stops the loop and waits for an in-flight callback to finish. Pending jobs
// are dropped without firing. It is idempotent and safe to call from any goroutine
// other than a Callback.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stop)
	})
	<-s.loopDone

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, j := range s.jobs {
		close(j.done)
		delete(s.jobs, id)
	}
	s.queue = nil
}

// signal wakes the loop. Must hold s.mu.
func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer close(s.loopDone)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}

		var due *job
		wait := time.Duration(-1)
		if len(s.queue) > 0 {
			head := s.queue[0]
			if d := head.fireAt.Sub(s.now()); d > 0 {
				wait = d
			} else {
				due = heap.Pop(&s.queue).(*job)
				s.firing = due
			}
		}
		s.mu.Unlock()

		if due != nil {
			s.fire(due)
			s.mu.Lock()
			s.firing = nil
			delete(s.jobs, due.id)
			close(due.done)
			s.mu.Unlock()
			continue
		}

		var timerC <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			timerC = timer.C
		}

		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-timerC:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

func (s *Scheduler) fire(j *job) {
	ctx := context.Background()

	r, err := s.src.GetReminder(ctx, j.id)
	if err != nil {
		logger.Warn("Skipping reminder, record unavailable", "id", j.id, "err", err)
		return
	}
	if !r.IsActive() {
		logger.Warn("Skipping reminder that is no longer scheduled", "id", j.id, "status", r.Status)
		return
	}

	s.invoke(j.cb, r.ID, r.Message)
	s.markFired(ctx, r.ID)
}

func (s *Scheduler) invoke(cb Callback, id int64, message string) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Reminder callback panicked", "id", id, "panic", p)
		}
	}()
	logger.Info("Reminder fired", "id", id)
	if cb != nil {
		cb(id, message)
	}
}

func (s *Scheduler) markFired(ctx context.Context, id int64) {
	delay := s.backoff
	var err error
	for attempt := 1; attempt <= s.retries; attempt++ {
		if err = s.src.MarkReminderFired(ctx, id, s.now()); err == nil {
			return
		}
		logger.Warn("Failed to mark reminder fired", "id", id, "attempt", attempt, "err", err)
		if attempt < s.retries {
			time.Sleep(delay)
			delay *= 2
		}
	}

	cerr := &apperr.ConsistencyError{ReminderID: id, Attempts: s.retries, Err: err}
	logger.Error("Reminder fired but could not be marked", "id", id, "attempts", s.retries, "err", err)
	if s.onError != nil {
		s.onError(cerr)
	}
}
