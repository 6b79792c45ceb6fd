// Package service wires the record store, scheduler, stats and autosave into the API
// the UI and CLI call.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/julianstephens/studylit/internal/autosave"
	"github.com/julianstephens/studylit/internal/config"
	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/notifier"
	"github.com/julianstephens/studylit/internal/quiz"
	"github.com/julianstephens/studylit/internal/records"
	"github.com/julianstephens/studylit/internal/scheduler"
	"github.com/julianstephens/studylit/internal/stats"
	"github.com/julianstephens/studylit/internal/storage"
)

type Service struct {
	cfg       *config.Config
	provider  storage.Provider
	store     *records.Store
	scheduler *scheduler.Scheduler
	stats     *stats.Aggregator
	autosave  *autosave.Coordinator
	quiz      quiz.Generator
	notify    scheduler.Callback
	now       func() time.Time
	failures  chan error

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	callback  scheduler.Callback
	generator quiz.Generator
	now       func() time.Time
	autosave  []autosave.Option
}

type Option func(*options)

// WithCallback replaces the notification sent when a reminder fires.
func WithCallback(cb scheduler.Callback) Option {
	return func(o *options) { o.callback = cb }
}

func WithQuizGenerator(g quiz.Generator) Option {
	return func(o *options) { o.generator = g }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithAutosaveOptions(opts ...autosave.Option) Option {
	return func(o *options) { o.autosave = append(o.autosave, opts...) }
}

// Initialize creates empty storage under cfg.DataDir and returns its path.
func Initialize(ctx context.Context, cfg *config.Config) (string, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	provider, err := storage.New(cfg.Backend, cfg.DataDir)
	if err != nil {
		return "", err
	}
	if err := provider.Init(ctx); err != nil {
		return "", err
	}
	return provider.GetConfigPath(), provider.Close()
}

// Open loads existing storage under cfg.DataDir and starts the scheduler loop.
// Call Start to recover persisted reminders.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	provider, err := storage.New(cfg.Backend, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := provider.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load storage: %w", err)
	}

	store := records.New(provider,
		records.WithFlushTimeout(cfg.FlushTimeout),
		records.WithClock(o.now),
	)
	agg := stats.New(store, stats.SettingsFromConfig(cfg, filepath.Join(cfg.DataDir, constants.StatsFileName)))
	store.OnChange(func(uint64) { agg.Invalidate() })

	failures := make(chan error, constants.ConsistencyErrorBuffer)
	sched := scheduler.New(store,
		scheduler.WithClock(o.now),
		scheduler.WithRetries(cfg.Scheduler.MarkRetries, cfg.Scheduler.RetryBackoff),
		scheduler.WithErrorHandler(func(err error) {
			select {
			case failures <- err:
			default:
				logger.Warn("Consistency error dropped, nobody is reading", "err", err)
			}
		}),
	)

	asOpts := append([]autosave.Option{autosave.WithInterval(cfg.AutosaveInterval)}, o.autosave...)

	s := &Service{
		cfg:       cfg,
		provider:  provider,
		store:     store,
		scheduler: sched,
		stats:     agg,
		autosave:  autosave.New(store, asOpts...),
		quiz:      o.generator,
		notify:    o.callback,
		now:       o.now,
		failures:  failures,
	}
	if s.quiz == nil {
		s.quiz = quiz.NewLocal()
	}
	if s.notify == nil {
		s.notify = defaultCallback(cfg)
	}
	return s, nil
}

func defaultCallback(cfg *config.Config) scheduler.Callback {
	if cfg.Notifications.Enabled {
		return notifier.New().Callback(context.Background())
	}
	return func(id int64, message string) {
		logger.Info("Reminder", "id", id, "message", message)
	}
}

// Start schedules every reminder still pending in storage and returns how many were
// scheduled.
func (s *Service) Start(ctx context.Context) (int, error) {
	return s.scheduler.Recover(ctx, s.notify)
}

// Close flushes the editor buffer, stops the scheduler after any running callback and
// closes storage. It is safe to call more than once.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.autosave.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush autosave: %w", err))
		}
		s.scheduler.Shutdown()
		if err := s.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *Service) Config() *config.Config {
	return s.cfg
}

// Records exposes the record store for read-only listings.
func (s *Service) Records() *records.Store {
	return s.store
}

// StoragePath is the file backing the store.
func (s *Service) StoragePath() string {
	return s.provider.GetConfigPath()
}

// ConsistencyErrors delivers reminders that fired but could not be marked fired.
// Such a reminder may fire again after a restart.
func (s *Service) ConsistencyErrors() <-chan error {
	return s.failures
}

// PendingReminders lists reminder ids with a live scheduler job.
func (s *Service) PendingReminders() []int64 {
	return s.scheduler.Pending()
}
