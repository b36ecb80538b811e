package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"customer-support-rag/internal/logger"
	"customer-support-rag/models"
	"customer-support-rag/utils"
)

const (
	staleSweepInterval = 5 * time.Minute
	statsInterval      = 15 * time.Minute
)

// catalogSweeper is the slice of the catalog the watchdog maintains.
type catalogSweeper interface {
	FailStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Watchdog periodically fails catalog records stuck in processing and
// logs ingestion statistics. A record gets stuck when a worker dies
// between marking it processing and reporting the outcome.
type Watchdog struct {
	scheduler  *gocron.Scheduler
	catalog    catalogSweeper
	staleAfter time.Duration
}

func NewWatchdog(catalog catalogSweeper, staleAfter time.Duration) *Watchdog {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Watchdog{
		scheduler:  s,
		catalog:    catalog,
		staleAfter: staleAfter,
	}
}

// Start schedules the sweeps and runs them in the background.
func (w *Watchdog) Start() error {
	if _, err := w.scheduler.Every(staleSweepInterval).Tag("stale-sweep").Do(w.sweep); err != nil {
		return err
	}
	if _, err := w.scheduler.Every(statsInterval).Tag("catalog-stats").Do(w.reportStats); err != nil {
		return err
	}

	w.scheduler.StartAsync()
	logger.Info("Ingestion watchdog started",
		"sweep_interval", staleSweepInterval.String(),
		"stale_after", w.staleAfter.String())
	return nil
}

func (w *Watchdog) Stop() {
	w.scheduler.Stop()
}

func (w *Watchdog) sweep() {
	ctx, cancel := utils.WithLongTimeout(context.Background())
	defer cancel()

	swept, err := w.catalog.FailStaleProcessing(ctx, w.staleAfter)
	if err != nil {
		logger.Error("Stale processing sweep failed", "error", err)
		return
	}
	if swept > 0 {
		logger.Warn("Marked stuck documents as failed", "count", swept)
	}
}

func (w *Watchdog) reportStats() {
	ctx, cancel := utils.WithLongTimeout(context.Background())
	defer cancel()

	counts, err := w.catalog.CountByStatus(ctx)
	if err != nil {
		logger.Error("Catalog stats collection failed", "error", err)
		return
	}

	logger.Info("Document catalog status",
		"completed", counts[models.StatusCompleted],
		"processing", counts[models.StatusProcessing],
		"pending", counts[models.StatusPending],
		"failed", counts[models.StatusFailed])
}
