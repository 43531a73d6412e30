package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ridgelinehq/docpipe/internal/bootstrap"
	"github.com/ridgelinehq/docpipe/internal/config"
	"github.com/ridgelinehq/docpipe/internal/core/domain"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.PipelineMetrics.Handler(),
	}
	go func() {
		app.Logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentReceived(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		doc, err := app.Repo.GetByID(processCtx, documentID)
		if err != nil {
			return err
		}
		app.PipelineMetrics.ObserveQueueLag("worker", time.Since(doc.CreatedAt))

		reader, err := app.Storage.Open(processCtx, doc.StoragePath)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(reader)
		_ = reader.Close()
		if err != nil {
			return err
		}

		_, err = app.Pipeline.ProcessDocument(processCtx, documentID, data, doc.MimeType, domain.RunOptions{
			TaxYear: cfg.TaxYear,
		})
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
