package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"

	"catalogsync/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func panicking(value interface{}) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(logger.Nop()))
	r.GET("/runs/:id", func(*gin.Context) { panic(value) })
	return r
}

func TestRecoveryAnswersJSON500(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/runs/42", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	rec := httptest.NewRecorder()

	panicking("boom").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.Equal(t, "req-7", rec.Header().Get(RequestIDHeader))
}

func TestRecoveryStaysSilentWhenClientLeft(t *testing.T) {
	rec := httptest.NewRecorder()

	panicking(fmt.Errorf("write tcp: %w", syscall.EPIPE)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/1", nil))

	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get(RequestIDHeader))
}
