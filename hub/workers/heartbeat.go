package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"presence-hub/observability"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker periodically logs the hub's delivery counters together
// with the process's own CPU and memory figures, so an operator tailing
// the logs can spot backpressure or a leaking connection count without an
// external metrics stack.
type HeartbeatWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
	online   func() int
}

func NewHeartbeatWorker(log *slog.Logger, monitor *observability.Monitor,
	interval time.Duration, online func() int) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, monitor: monitor, interval: interval, online: online}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting hub heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := w.monitor.Snapshot()
			w.log.Info("hub heartbeat",
				"online", w.online(),
				"delivered", stats.Delivered,
				"dropped", stats.Dropped,
				"delivery_misses", stats.DeliveryMisses,
				"persist_failures", stats.PersistFailures,
				"events_accepted", stats.EventsAccepted,
				"events_rejected", stats.EventsRejected,
				"cpu_percent", cpu,
				"ram_bytes", rss,
			)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
