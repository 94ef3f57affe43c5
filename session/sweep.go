package session

import (
	"context"
	"log/slog"
	"time"
)

// expiredDeleter is implemented by backends that keep expired rows around
// until explicitly removed. The Redis backend does not need it: key TTLs
// sweep for free.
type expiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically deletes expired refresh session rows. It is advisory
// garbage collection: correctness never depends on a sweep having run,
// because every read and every conditional revoke re-checks expiry.
type Sweeper struct {
	store    expiredDeleter
	interval time.Duration
	logger   *slog.Logger
	done     chan struct{}
}

// NewSweeper creates a sweeper over the given store. A non-positive interval
// defaults to one hour.
func NewSweeper(store expiredDeleter, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Done is closed once Run has returned.
func (s *Sweeper) Done() <-chan struct{} {
	return s.done
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "refresh session sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "swept expired refresh sessions", "deleted", deleted)
	}
}
