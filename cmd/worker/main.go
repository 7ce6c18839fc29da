package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/medical-intake/internal/bootstrap"
	"github.com/kirillkom/medical-intake/internal/config"
	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/usecase"
	"github.com/kirillkom/medical-intake/internal/observability/logging"
	"github.com/kirillkom/medical-intake/internal/observability/metrics"
)

const (
	serviceName = "worker"
	jobTimeout  = 5 * time.Minute
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		WithQueue:  true,
		Registerer: workerMetrics.Registerer(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	handler := usecase.NewIntakeJobHandler(app.Intake)
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIntakeJobs(ctx, func(handlerCtx context.Context, job domain.IntakeJob) error {
		workerMetrics.ObserveQueueLag(serviceName, time.Since(job.EnqueuedAt))
		workerMetrics.StartJob()
		start := time.Now()

		processCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()
		err := handler.Handle(processCtx, job)
		workerMetrics.FinishJob(serviceName, time.Since(start), err)
		if err != nil {
			logger.Error("intake_job_failed", "job_id", job.ID, "user_id", job.UserID, "error", err)
			return err
		}
		logger.Info("intake_job_done", "job_id", job.ID, "user_id", job.UserID, "duration_ms", time.Since(start).Milliseconds())
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
