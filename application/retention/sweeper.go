package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tiksound/domain/media"
	"tiksound/domain/retention"
	"tiksound/infrastructure/filesystem"
)

// DefaultInterval is how often the sweeper runs
const DefaultInterval = 10 * time.Minute

// Store lists and deletes scratch files
type Store interface {
	List() ([]filesystem.Entry, error)
	media.FileRemover
}

var _ Store = (*filesystem.ScratchDir)(nil)

// Sweeper periodically deletes expired files from the scratch directory.
// It keeps no state between sweeps; the filesystem is the only record.
type Sweeper struct {
	store    Store
	policy   retention.Policy
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithInterval sets the time between sweeps
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSweeper creates a sweeper over store with the given retention policy
func NewSweeper(store Store, policy retention.Policy, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		policy:   policy,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepOnce deletes every file strictly older than now minus the retention window.
// Files that cannot be removed are counted in Failed and left for the next sweep.
func (s *Sweeper) SweepOnce(now time.Time) (*retention.SweepResult, error) {
	result := &retention.SweepResult{}

	entries, err := s.store.List()
	if err != nil {
		return result, fmt.Errorf("failed to list scratch files: %w", err)
	}

	for _, e := range entries {
		if !s.policy.Expired(e.ModTime, now) {
			continue
		}
		if err := s.store.Remove(e.Path); err != nil {
			result.Failed++
			s.logger.Warn("failed to delete expired file",
				zap.String("file", e.Name),
				zap.Error(err),
			)
			continue
		}
		result.Add(retention.DeletedFile{
			Name:    e.Name,
			Size:    e.Size,
			ModTime: e.ModTime,
		})
	}

	return result, nil
}

// Expired lists the files a sweep at now would delete, without deleting them
func (s *Sweeper) Expired(now time.Time) ([]filesystem.Entry, error) {
	entries, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list scratch files: %w", err)
	}

	var expired []filesystem.Entry
	for _, e := range entries {
		if s.policy.Expired(e.ModTime, now) {
			expired = append(expired, e)
		}
	}
	return expired, nil
}

// Start sweeps immediately and then every interval until ctx is done or Stop is called.
// Calling Start on a running or stopped sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.stopped {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
}

// Stop halts the sweeper and waits for an in-progress sweep to finish. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.stopped = true
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	start := time.Now()
	result, err := s.SweepOnce(s.now())
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Error(err))
		return
	}
	if result.Count() > 0 || result.Failed > 0 {
		s.logger.Info("retention sweep completed",
			zap.Int("deleted", result.Count()),
			zap.Int64("freed_bytes", result.FreedBytes),
			zap.Int("failed", result.Failed),
			zap.Duration("took", time.Since(start)),
		)
	}
}
