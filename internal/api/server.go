package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/feedback"
	"github.com/bd4predict/predict-api/internal/metrics"
	"github.com/bd4predict/predict-api/internal/middleware"
	"github.com/bd4predict/predict-api/internal/service"
)

// Server represents the HTTP server
type Server struct {
	config      *domain.Config
	logger      *logrus.Logger
	predictions *service.PredictionService
	outcomes    feedback.Store
	router      *gin.Engine
	server      *http.Server
}

// NewServer creates a new HTTP server instance. outcomes may be nil, in
// which case the feedback endpoints answer 503.
func NewServer(cfg *domain.Config, logger *logrus.Logger, predictions *service.PredictionService, outcomes feedback.Store) *Server {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Timing(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit(cfg.RateLimit))
	router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))

	server := &Server{
		config:      cfg,
		logger:      logger,
		predictions: predictions,
		outcomes:    outcomes,
		router:      router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Legacy route used by the first release of the predict client
	s.router.POST("/predict/", s.handlePredict)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/predict", s.handlePredict)
		v1.POST("/predict/batch", s.handlePredictBatch)
		v1.GET("/schema/defaults", s.handleDefaults)
		v1.GET("/model", s.handleModel)
		v1.GET("/predictions", s.handleListPredictions)
		v1.GET("/predictions/:id", s.handleGetPrediction)
		v1.POST("/predictions/:id/outcome", s.handleRecordOutcome)
		v1.GET("/feedback/coverage", s.handleCoverage)
	}
}
