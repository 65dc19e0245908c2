// Package mcp exposes the prediction service as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/feedback"
	"github.com/bd4predict/predict-api/internal/service"
)

// Server is the BD4Predict MCP server.
type Server struct {
	config      domain.MCPConfig
	mcpServer   *mcp.Server
	predictions *service.PredictionService
	outcomes    feedback.Store
	logger      *logrus.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithFeedbackStore enables the outcome tools.
func WithFeedbackStore(store feedback.Store) ServerOption {
	return func(s *Server) {
		s.outcomes = store
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server instance with all tools registered.
func NewServer(cfg domain.MCPConfig, predictions *service.PredictionService, opts ...ServerOption) (*Server, error) {
	if predictions == nil {
		return nil, fmt.Errorf("prediction service is required")
	}

	server := &Server{
		config:      cfg,
		predictions: predictions,
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.logger == nil {
		server.logger = logrus.New()
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}

	name := cfg.ServerName
	if name == "" {
		name = "bd4predict-mcp-server"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "v0.1.0"
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	server.registerTools()

	server.logger.WithField("server_name", name).Info("MCP server initialized")
	return server, nil
}

// registerTools registers the prediction tools and, when a feedback store
// is configured, the outcome tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "predict_outcome",
		Description: "Predict the 12-month EORTC QLQ-C30 global health status of a head and neck cancer patient. " +
			"Returns the point prediction, the 95% prediction interval and the probability of a clinically relevant decline.",
	}, s.handlePredictOutcome)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_default_record",
		Description: "Return the default patient record. Every field of predict_outcome falls back to these values.",
	}, s.handleGetDefaultRecord)

	count := 2
	if s.outcomes != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "record_outcome",
			Description: "Record the observed 12-month global health score for a served prediction.",
		}, s.handleRecordOutcome)

		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "coverage_report",
			Description: "Report the empirical interval coverage and error of recorded outcomes.",
		}, s.handleCoverageReport)
		count += 2
	}

	s.logger.WithField("tool_count", count).Info("Successfully registered all tools")
}

// Start serves the tools until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting BD4Predict MCP Server...")

	var transport mcp.Transport
	switch s.config.TransportType {
	case "", "stdio":
		transport = &mcp.StdioTransport{}
	default:
		s.logger.WithField("transport_type", s.config.TransportType).Warn("Unsupported transport, falling back to stdio")
		transport = &mcp.StdioTransport{}
	}

	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *Server) Close() error {
	if s.outcomes != nil {
		if err := s.outcomes.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close feedback store")
			return err
		}
	}
	return nil
}
