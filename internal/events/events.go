// Package events publishes sync outcomes to Kafka and carries the sync and
// split requests the worker consumes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"catalogsync/internal/logger"
	"catalogsync/internal/models"
	"catalogsync/internal/syncer"

	"github.com/segmentio/kafka-go"
)

const (
	TypeProductCreated   = "product.created"
	TypeProductDuplicate = "product.duplicate"
	TypeProductFailed    = "product.failed"
	TypeSyncCompleted    = "sync.completed"

	TypeSyncRequested  = "sync.requested"
	TypeSplitRequested = "split.requested"
)

type Event struct {
	Type      string                 `json:"type"`
	RunID     string                 `json:"run_id"`
	Handle    string                 `json:"handle,omitempty"`
	ProductID string                 `json:"product_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Request asks the worker to run the pipeline.
type Request struct {
	Type        string    `json:"type"`
	Limit       int       `json:"limit,omitempty"`
	ChunkSize   int       `json:"chunk_size,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer MessageWriter
	logger *logger.Logger
	now    func() time.Time
}

// NewKafkaWriter builds a synchronous writer for topic.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(SplitBrokers(brokers)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func NewPublisher(writer MessageWriter, logger *logger.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger, now: time.Now}
}

// SplitBrokers turns a comma separated broker list into addresses.
func SplitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (p *Publisher) publish(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload}); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// OutcomeEvent builds the event for one record outcome.
func OutcomeEvent(runID string, prod *models.Product, o syncer.Outcome, at time.Time) Event {
	ev := Event{
		RunID:     runID,
		Handle:    prod.Handle,
		Timestamp: at,
		Data: map[string]interface{}{
			"sku":   prod.Variant.SKU,
			"title": prod.Title,
		},
	}
	if o.Ref.ID != 0 {
		ev.ProductID = strconv.FormatInt(o.Ref.ID, 10)
	}
	switch o.State {
	case syncer.StateCreated:
		ev.Type = TypeProductCreated
		steps := map[string]string{}
		for _, s := range o.Steps {
			steps[s.Name] = string(s.Status)
		}
		ev.Data["steps"] = steps
		if o.ImagesStripped {
			ev.Data["images_stripped"] = true
		}
	case syncer.StateSkipDuplicate:
		ev.Type = TypeProductDuplicate
	default:
		ev.Type = TypeProductFailed
		ev.Data["error_kind"] = string(o.Kind)
		if o.Err != nil {
			ev.Data["error"] = o.Err.Error()
		}
	}
	return ev
}

// Observer publishes every record outcome of runID. Publish failures are
// logged only.
func (p *Publisher) Observer(runID string) syncer.Observer {
	return syncer.ObserverFunc(func(ctx context.Context, prod *models.Product, o syncer.Outcome) {
		ev := OutcomeEvent(runID, prod, o, p.now())
		if err := p.publish(context.WithoutCancel(ctx), prod.Handle, ev); err != nil {
			p.logger.Warn("Event %s for %s not published: %v", ev.Type, prod.Handle, err)
		}
	})
}

// RunCompleted announces the end of a run with its counters.
func (p *Publisher) RunCompleted(ctx context.Context, run *models.SyncRun) error {
	ev := Event{
		Type:      TypeSyncCompleted,
		RunID:     run.ID,
		Timestamp: p.now(),
		Data: map[string]interface{}{
			"kind":         run.Kind,
			"status":       run.Status,
			"processed":    run.Processed,
			"created":      run.Created,
			"duplicates":   run.Duplicates,
			"errors":       run.Errors,
			"sellable":     run.Sellable,
			"out_of_stock": run.OutOfStock,
			"success_rate": run.SuccessRate,
			"message":      run.Message,
		},
	}
	return p.publish(ctx, run.ID, ev)
}

// Enqueue publishes a pipeline request for the worker.
func (p *Publisher) Enqueue(ctx context.Context, req Request) error {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = p.now()
	}
	return p.publish(ctx, req.Type, req)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
