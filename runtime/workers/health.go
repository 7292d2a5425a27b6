package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"stampchat/observability"
)

type HealthWorker struct {
	log      *slog.Logger
	interval time.Duration
}

func NewHealthWorker(log *slog.Logger, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, interval: interval}
}

// Run logs process health metrics (CPU, RAM, goroutines) on every tick.
func (w *HealthWorker) Run(ctx context.Context) error {
	w.log.Info("Starting health worker")
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
			stats, err := observability.Collect(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Health",
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent,
				"status", stats.PidStatus,
				"goroutines", stats.Goroutines,
				"alloc_mem_mb", stats.AllocMemMB,
				"num_gc", stats.NumGC)
		}
	}
}
