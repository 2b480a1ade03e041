package workers

import (
	"context"
	"log/slog"
	"time"

	"presence-hub/contract"
	"presence-hub/domain/presence"
	"presence-hub/services"
)

// SweepWorker is the consistency repair loop: it force-closes session
// records whose transport no longer has a registry entry. Such leftovers
// appear after a crash, or in the window between a disconnect and its
// cleanup. Sessions younger than the grace period are left alone so the
// sweep cannot race a login that has registered but not yet persisted.
type SweepWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	sessions *services.SessionService
	interval time.Duration
	grace    time.Duration
}

func NewSweepWorker(log *slog.Logger, registry contract.IRegistry,
	sessions *services.SessionService, interval, grace time.Duration) *SweepWorker {
	return &SweepWorker{log: log, registry: registry, sessions: sessions, interval: interval, grace: grace}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info("Starting session sweep worker", "interval", w.interval, "grace", w.grace)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	recs, err := w.sessions.ActiveSessions(ctx)
	if err != nil {
		w.log.Error("sweep: active session scan failed", "error", err)
		return
	}

	cutoff := time.Now().UTC().Add(-w.grace)
	var orphans []presence.SessionRecord
	for _, rec := range recs {
		if rec.StartedAt.After(cutoff) {
			continue
		}
		if _, ok := w.registry.LookupByTransport(rec.TransportID); !ok {
			orphans = append(orphans, rec)
		}
	}

	for _, rec := range orphans {
		w.log.Warn("sweep: closing orphaned session",
			"user_id", rec.UserID, "transport_id", rec.TransportID, "started_at", rec.StartedAt)
		// Close the orphaned transport only; the user may be live again on
		// a newer transport whose session must survive.
		w.sessions.EndActiveSession(ctx, rec.TransportID)
	}
	if len(orphans) > 0 {
		w.log.Info("sweep: sessions repaired", "closed", len(orphans))
	}
}
