package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharifevents/shop-service/internal/core/ports"
)

const (
	sweepInterval = 30 * time.Minute
	sweepLockKey  = "zp_unverified_lock"
	// Shorter than the interval so a crashed holder's lease expires before
	// the next tick anywhere.
	sweepLockTTL = 25 * time.Minute
)

// Sweeper runs the unverified-payment reconciliation on a timer. The lease
// keeps concurrent replicas from sweeping the same authorities twice.
type Sweeper struct {
	reconciler *ReconcileService
	lease      ports.Lease
	interval   time.Duration
}

func NewSweeper(reconciler *ReconcileService, lease ports.Lease) *Sweeper {
	return &Sweeper{reconciler: reconciler, lease: lease, interval: sweepInterval}
}

// Run blocks until ctx is cancelled, sweeping once per interval. The first
// sweep runs immediately on startup to settle anything left over from the
// previous process.
func (s *Sweeper) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	acquired, err := s.lease.Acquire(ctx, sweepLockKey, sweepLockTTL)
	if err != nil {
		slog.ErrorContext(ctx, "sweep lease acquire failed", "error", err)
		return
	}
	if !acquired {
		slog.DebugContext(ctx, "sweep lease held elsewhere, skipping")
		return
	}
	defer func() {
		if err := s.lease.Release(ctx, sweepLockKey); err != nil {
			slog.WarnContext(ctx, "sweep lease release failed", "error", err)
		}
	}()

	if err := s.reconciler.SweepOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "sweep failed", "error", err)
	}
}
