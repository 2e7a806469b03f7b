package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"catalogsync/internal/events"
	"catalogsync/internal/logger"
	"catalogsync/internal/worker/processors/validation"

	"github.com/gin-gonic/gin"
)

// Enqueuer hands a request to the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, req events.Request) error
}

type RequestHandler struct {
	queue  Enqueuer
	logger *logger.Logger
}

// NewRequestHandler accepts a nil queue; requests are then refused with 503.
func NewRequestHandler(queue Enqueuer, logger *logger.Logger) *RequestHandler {
	return &RequestHandler{
		queue:  queue,
		logger: logger,
	}
}

type syncRequest struct {
	Limit int `json:"limit"`
}

type splitRequest struct {
	ChunkSize int `json:"chunk_size"`
}

func (h *RequestHandler) Sync(c *gin.Context) {
	var body syncRequest
	if !bindOptionalJSON(c, &body) {
		return
	}
	h.enqueue(c, events.Request{Type: events.TypeSyncRequested, Limit: body.Limit})
}

func (h *RequestHandler) Split(c *gin.Context) {
	var body splitRequest
	if !bindOptionalJSON(c, &body) {
		return
	}
	h.enqueue(c, events.Request{Type: events.TypeSplitRequested, ChunkSize: body.ChunkSize})
}

func (h *RequestHandler) enqueue(c *gin.Context, req events.Request) {
	if err := validation.ValidateRequest(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request queue not configured"})
		return
	}

	if err := h.queue.Enqueue(c.Request.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue %s: %v", req.Type, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to queue request"})
		return
	}

	h.logger.Info("Queued %s", req.Type)
	c.JSON(http.StatusAccepted, gin.H{"data": req})
}

// bindOptionalJSON allows an empty body, including an empty chunked one.
func bindOptionalJSON(c *gin.Context, v interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
