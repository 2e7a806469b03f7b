// Package worker consumes queued sync and split requests and runs them one
// at a time.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"catalogsync/internal/config"
	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the worker uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Worker struct {
	logger    *logger.Logger
	reader    MessageReader
	processor *processors.RequestProcessor
	backoff   time.Duration
}

// NewKafkaReader joins the consumer group on the requests topic.
func NewKafkaReader(cfg *config.Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        events.SplitBrokers(cfg.KafkaBrokers),
		GroupID:        cfg.KafkaConsumerGroup,
		Topic:          cfg.KafkaRequestsTopic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
}

func New(reader MessageReader, processor *processors.RequestProcessor, logger *logger.Logger) *Worker {
	return &Worker{
		logger:    logger,
		reader:    reader,
		processor: processor,
		backoff:   time.Second,
	}
}

// Start blocks until ctx is cancelled. Requests run sequentially so two
// syncs never race on the same store.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started, listening for requests...")

	for {
		message, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			w.logger.Error("Failed to read message: %v", err)
			if !w.pause(ctx) {
				return
			}
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))

		var req events.Request
		if err := json.Unmarshal(message.Value, &req); err != nil {
			w.logger.Error("Failed to parse request: %v", err)
			continue
		}

		if err := w.processor.Process(ctx, req); err != nil {
			w.logger.Error("Failed to process request: %v", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}

		w.logger.Debug("Request processed successfully")
	}
}

func (w *Worker) pause(ctx context.Context) bool {
	t := time.NewTimer(w.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if err := w.reader.Close(); err != nil {
		w.logger.Warn("Failed to close reader: %v", err)
	}
}
