package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knowbase/sales-copilot/internal/bootstrap"
	"github.com/knowbase/sales-copilot/internal/config"
	"github.com/knowbase/sales-copilot/internal/core/domain"
	"github.com/knowbase/sales-copilot/internal/observability/logging"
	"github.com/knowbase/sales-copilot/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.New("worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeRebuildRequested(ctx, func(handlerCtx context.Context, req domain.RebuildRequest) error {
		runID := req.RunID
		rebuildCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		if !req.EnqueuedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(req.EnqueuedAt))
		}

		workerMetrics.StartRebuild()
		started := time.Now()

		report, err := app.RebuildUC.Rebuild(rebuildCtx, runID)
		workerMetrics.FinishRebuild("worker", time.Since(started), err)
		if err != nil {
			logger.Error("rebuild_failed", "run_id", runID, "error", err)
			return err
		}

		for _, detail := range report.Details {
			workerMetrics.RecordDocument("worker", string(detail.Status))
		}
		workerMetrics.SetPassagesIndexed("worker", report.TotalPassages)
		logger.Info("rebuild_completed",
			"run_id", runID,
			"generation", report.Generation,
			"documents", report.DocumentsProcessed,
			"passages", report.TotalPassages,
			"indexed", countByStatus(report, domain.IngestIndexed),
			"failed", countByStatus(report, domain.IngestFailed),
		)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func countByStatus(report *domain.IngestReport, status domain.IngestStatus) int {
	n := 0
	for _, d := range report.Details {
		if d.Status == status {
			n++
		}
	}
	return n
}
