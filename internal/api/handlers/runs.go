package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"catalogsync/internal/database"
	"catalogsync/internal/logger"

	"github.com/gin-gonic/gin"
)

type RunHandler struct {
	store  *database.RunStore
	logger *logger.Logger
}

func NewRunHandler(store *database.RunStore, logger *logger.Logger) *RunHandler {
	return &RunHandler{
		store:  store,
		logger: logger,
	}
}

func (h *RunHandler) List(c *gin.Context) {
	// Pagination
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	runs, total, err := h.store.ListRuns(c.Request.Context(), page, limit)
	if err != nil {
		h.logger.Error("Failed to list runs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": runs,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (h *RunHandler) Get(c *gin.Context) {
	run, err := h.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}

// Records lists the per-product outcomes of a run, optionally filtered by
// terminal state (CREATED, SKIP_DUPLICATE, CREATE_FAILED).
func (h *RunHandler) Records(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.store.GetRun(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch run"})
		return
	}

	records, err := h.store.ListRecords(ctx, id, c.Query("state"))
	if err != nil {
		h.logger.Error("Failed to list records of run %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records, "total": len(records)})
}
