// Package app wires the prediction core to its optional infrastructure
// (cache, audit database, feedback store) from a domain.Config.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bd4predict/predict-api/internal/cache"
	"github.com/bd4predict/predict-api/internal/database"
	"github.com/bd4predict/predict-api/internal/domain"
	"github.com/bd4predict/predict-api/internal/feedback"
	"github.com/bd4predict/predict-api/internal/model"
	"github.com/bd4predict/predict-api/internal/repository"
	"github.com/bd4predict/predict-api/internal/service"
)

// App holds the assembled services of one process.
type App struct {
	Config      *domain.Config
	Logger      *logrus.Logger
	Predictions *service.PredictionService
	Outcomes    feedback.Store

	cache *cache.Tiered
	db    *database.DB
}

// Build loads the model and connects everything cfg enables. Failures of
// required parts (model, enabled database, feedback store) are returned;
// the caller owns the result and must Close it.
func Build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	pipeline, err := model.LoadFile(cfg.Model.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"model":         pipeline.Metadata.Name,
		"model_version": pipeline.Metadata.Version,
		"features":      len(pipeline.FeatureNames()),
		"scores":        len(pipeline.Regressor.ConformityScores()),
	}).Info("Model loaded")

	predictor, err := service.NewPredictor(logger, pipeline, cfg.Model)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	var predictionCache domain.PredictionCache
	tiered, err := cache.New(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction cache: %w", err)
	}
	if tiered != nil {
		a.cache = tiered
		predictionCache = tiered
	}

	repo, err := a.openRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	feedbackConfig := cfg.Feedback
	if feedbackConfig.Driver == "postgres" && feedbackConfig.DatabaseURL == "" {
		feedbackConfig.DatabaseURL = database.ConfigFromDomain(cfg.Database).URL()
	}
	store, err := feedback.Open(feedbackConfig)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open feedback store: %w", err)
	}
	a.Outcomes = store

	a.Predictions = service.NewPredictionService(logger, predictor, predictionCache, repo)
	return a, nil
}

// openRepository returns the Postgres audit repository when the database
// is enabled, migrating it first, and an in-memory one otherwise.
func (a *App) openRepository(ctx context.Context) (domain.PredictionRepository, error) {
	cfg := a.Config.Database
	if !cfg.Enabled {
		a.Logger.Info("Audit database disabled, keeping recent predictions in memory")
		return repository.NewMemoryRepository(repository.DefaultMemoryCapacity)
	}

	dbConfig := database.ConfigFromDomain(cfg)
	runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.MigrationsPath, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration runner: %w", err)
	}
	err = runner.Up(ctx)
	runner.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}

	db, err := database.NewConnection(ctx, dbConfig, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}
	a.db = db
	return repository.NewPredictionRepository(db.Pool, a.Logger), nil
}

// Close releases the feedback store, the cache and the database pool.
func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close prediction cache")
		}
		a.cache = nil
	}
	if a.Outcomes != nil {
		if err := a.Outcomes.Close(); err != nil {
			a.Logger.WithError(err).Error("Failed to close feedback store")
		}
		a.Outcomes = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}
