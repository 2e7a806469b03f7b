package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"catalogsync/internal/config"
	"catalogsync/internal/logger"
	"catalogsync/internal/pipeline"
	"catalogsync/internal/worker"
	"catalogsync/internal/worker/processors"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	defer logger.Sync()

	if cfg.KafkaBrokers == "" {
		logger.Fatal("KAFKA_BROKERS is required for the worker")
	}

	components, err := pipeline.Open(cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to open backends: %v", err)
	}
	defer components.Close()

	processor := processors.NewRequestProcessor(components.Runner(), logger.Named("processor"))
	w := worker.New(worker.NewKafkaReader(cfg), processor, logger.Named("worker"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// Start worker
	logger.Info("Starting worker on topic %s...", cfg.KafkaRequestsTopic)
	go func() {
		defer close(done)
		w.Start(ctx)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	<-done
	w.Stop()
}
