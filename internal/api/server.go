package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"catalogsync/internal/api/handlers"
	"catalogsync/internal/api/middleware"
	"catalogsync/internal/config"
	"catalogsync/internal/database"
	"catalogsync/internal/logger"
	"catalogsync/internal/pipeline"

	"github.com/gin-gonic/gin"
)

// Deps are the backends the routes serve. Queue, Prober and Metrics may be
// nil; their routes then answer 503 or are not mounted.
type Deps struct {
	DB      *database.Database
	Store   *database.RunStore
	Queue   handlers.Enqueuer
	Prober  handlers.Prober
	Metrics http.Handler
}

// DepsFrom picks the API backends out of opened components. Absent ones
// stay untyped nil so the handlers can tell.
func DepsFrom(c *pipeline.Components) Deps {
	deps := Deps{
		DB:      c.DB,
		Store:   c.Store,
		Metrics: c.Metrics.Handler(),
	}
	if c.Requests != nil {
		deps.Queue = c.Requests
	}
	if c.Client != nil {
		deps.Prober = c.ReadOnlyEngine()
	}
	return deps
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	deps   Deps
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, deps Deps) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	s := &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
		router: router,
	}

	// Initialize handlers
	runHandler := handlers.NewRunHandler(deps.Store, logger)
	requestHandler := handlers.NewRequestHandler(deps.Queue, logger)
	shopHandler := handlers.NewShopHandler(deps.Prober)

	router.GET("/healthz", s.health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Run ledger
		runs := v1.Group("/runs")
		{
			runs.GET("", runHandler.List)
			runs.GET("/:id", runHandler.Get)
			runs.GET("/:id/records", runHandler.Records)
		}

		// Queued pipeline requests
		v1.POST("/sync", requestHandler.Sync)
		v1.POST("/split", requestHandler.Split)

		// Store access
		v1.GET("/shop/permissions", shopHandler.Permissions)
	}

	return s
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.deps.DB != nil {
		if err := s.deps.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"queue":  s.deps.Queue != nil,
		"shop":   s.deps.Prober != nil,
	})
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// GetRouter returns the Gin router for serverless deployments.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
