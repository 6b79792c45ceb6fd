// Package records is the canonical record store. It wraps a storage.Provider, serializes
// every mutation through one critical section and bounds each durable flush.
package records

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julianstephens/studylit/internal/constants"
	apperr "github.com/julianstephens/studylit/internal/errors"
	"github.com/julianstephens/studylit/internal/logger"
	"github.com/julianstephens/studylit/internal/storage"
)

// errNothingToWrite lets a mutation finish without committing or bumping the version.
var errNothingToWrite = errors.New("nothing to write")

// Store is safe for concurrent use.
type Store struct {
	provider     storage.Provider
	flushTimeout time.Duration
	now          func() time.Time

	// sem is the mutation critical section. A channel lets waiters give up when
	// their context ends.
	sem chan struct{}

	version   atomic.Uint64
	mu        sync.Mutex
	listeners []func(version uint64)
}

// Option configures a Store.
type Option func(*Store)

// WithFlushTimeout bounds how long a mutation may take before it is reported as a
// StorageTimeoutError.
func WithFlushTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.flushTimeout = d
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New wraps an initialized or loaded provider.
func New(provider storage.Provider, opts ...Option) *Store {
	s := &Store{
		provider:     provider,
		flushTimeout: constants.DefaultFlushTimeout,
		now:          time.Now,
		sem:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the underlying backend.
func (s *Store) Provider() storage.Provider {
	return s.provider
}

// Version increases by one after every committed mutation.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// OnChange registers fn to run after every committed mutation. fn runs while the
// critical section is held and must not call back into the Store's mutating methods.
func (s *Store) OnChange(fn func(version uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) committed() {
	v := s.version.Add(1)
	s.mu.Lock()
	listeners := append([]func(uint64){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}

// mutate runs fn inside the critical section under the flush timeout. fn gets the
// deadline-bound context, so once the deadline passes a provider aborts instead of
// committing. The result reflects what fn actually did: a write that committed just
// past the deadline is reported as success, never as a StorageTimeoutError.
func (s *Store) mutate(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.flushTimeout)
	defer cancel()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return s.contextError(ctx, op)
	}
	defer func() { <-s.sem }()

	err := fn(ctx)
	switch {
	case err == nil:
		s.committed()
		return nil
	case errors.Is(err, errNothingToWrite):
		return nil
	case ctx.Err() != nil:
		return s.contextError(ctx, op)
	default:
		return err
	}
}

func (s *Store) contextError(ctx context.Context, op string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Warn("Storage operation timed out", "op", op, "timeout", s.flushTimeout)
		return &apperr.StorageTimeoutError{Op: op, Timeout: s.flushTimeout}
	}
	return fmt.Errorf("%s: %w", op, ctx.Err())
}
