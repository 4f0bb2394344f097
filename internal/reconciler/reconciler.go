package reconciler

import (
	"context"
	"log/slog"
	"time"
)

// Preloader rebuilds the team mapping cache from persisted installations.
type Preloader interface {
	Preload(ctx context.Context) (int, error)
}

// Reconciler keeps the team mapping cache in line with the instance
// inventory by preloading it at startup and then on a fixed interval.
type Reconciler struct {
	registry Preloader
	interval time.Duration
}

// New creates a new Reconciler. A zero interval disables the periodic loop;
// Start then only performs the initial preload.
func New(registry Preloader, interval time.Duration) *Reconciler {
	return &Reconciler{
		registry: registry,
		interval: interval,
	}
}

// Start preloads once and then, if an interval is set, keeps reconciling
// until ctx is cancelled. It blocks until it is done.
func (r *Reconciler) Start(ctx context.Context) {
	r.reconcile(ctx)

	if r.interval <= 0 {
		return
	}

	slog.Info("reconciler started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	count, err := r.registry.Preload(ctx)
	if err != nil {
		slog.Error("reconciler: failed to preload team mappings", "error", err)
		return
	}

	slog.Debug("reconciler: team mappings preloaded", "count", count)
}
