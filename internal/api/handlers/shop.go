package handlers

import (
	"context"
	"net/http"

	"catalogsync/internal/syncer"

	"github.com/gin-gonic/gin"
)

// Prober reports what the configured access token may do.
type Prober interface {
	Probe(ctx context.Context) syncer.Permissions
}

type ShopHandler struct {
	prober Prober
}

// NewShopHandler accepts a nil prober when no credentials are configured.
func NewShopHandler(prober Prober) *ShopHandler {
	return &ShopHandler{prober: prober}
}

func (h *ShopHandler) Permissions(c *gin.Context) {
	if h.prober == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Shop credentials not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.prober.Probe(c.Request.Context())})
}
