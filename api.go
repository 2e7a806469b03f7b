package handler

import (
	"fmt"
	"net/http"
	"sync"

	"catalogsync/internal/api"
	"catalogsync/internal/config"
	"catalogsync/internal/logger"
	"catalogsync/internal/pipeline"

	"github.com/gin-gonic/gin"
)

var (
	initOnce sync.Once
	router   *gin.Engine
	initErr  error
)

// initRouter builds the API once per serverless instance. Serverless
// instances never run the Kafka worker; sync and split requests are only
// queued from here.
func initRouter() {
	cfg, err := config.Load()
	if err != nil {
		initErr = fmt.Errorf("configuration: %w", err)
		return
	}
	log := logger.New(cfg.LogLevel)

	components, err := pipeline.Open(cfg, log, true)
	if err != nil {
		initErr = fmt.Errorf("database initialization failed: %w", err)
		return
	}

	gin.SetMode(gin.ReleaseMode)
	router = api.New(cfg, log.Named("api"), api.DepsFrom(components)).GetRouter()
}

// Handler is the main entry point for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(initRouter)
	if initErr != nil {
		http.Error(w, initErr.Error(), http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}
