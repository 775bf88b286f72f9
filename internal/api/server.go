// Package api implements the admin and read HTTP API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ikanisa/dar-ingest/internal/database"
	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/logger"
	"github.com/ikanisa/dar-ingest/internal/review"
)

const readHeaderTimeout = 10 * time.Second

// RiskReader loads risk scores for the read endpoint.
type RiskReader interface {
	GetByListing(ctx context.Context, listingID string) (*domain.RiskScore, error)
}

// OverrideApplier applies admin override decisions.
type OverrideApplier interface {
	Apply(ctx context.Context, ov review.Override) (*domain.RiskScore, error)
}

// QueueReader reports queue statistics for the ops endpoint.
type QueueReader interface {
	Stats(ctx context.Context) (*database.QueueStats, error)
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(
	log logger.Interface,
	risks RiskReader,
	overrides OverrideApplier,
	queue QueueReader,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		risk := NewRiskHandler(risks)
		v1.GET("/listings/:id/risk", risk.GetListingRisk)

		admin := NewAdminHandler(overrides)
		v1.POST("/admin/overrides", admin.PostOverride)

		ops := NewQueueHandler(queue)
		v1.GET("/queue/stats", ops.GetStats)
	}

	return router
}

// Server wraps the HTTP server lifecycle.
type Server struct {
	http *http.Server
	log  logger.Interface
}

// NewServer creates a server listening on the given port.
func NewServer(router *gin.Engine, port int, log logger.Interface) *Server {
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("API server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("API server shutting down")
	return s.http.Shutdown(ctx)
}
