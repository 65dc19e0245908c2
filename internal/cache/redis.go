package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/bd4predict/predict-api/internal/domain"
)

// RedisCache shares prediction results between replicas. Calls go through a
// circuit breaker so an unavailable Redis costs one failed call per timeout
// window instead of one per request.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// cachedPrediction represents a cached prediction with metadata
type cachedPrediction struct {
	Data          *domain.PredictionResult `json:"data"`
	BaselineScore *float64                 `json:"baseline_score,omitempty"`
	CachedAt      time.Time                `json:"cached_at"`
	ExpiresAt     time.Time                `json:"expires_at"`
}

// NewRedisCache creates a Redis-backed cache. It does not contact the server;
// connectivity problems surface on first use and open the breaker.
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Apply cache-specific configurations
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	ttl := config.DefaultTTL
	if ttl == 0 {
		ttl = time.Hour
	}

	settings := gobreaker.Settings{
		Name:        "PredictionRedisCache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
		// A miss is a healthy answer.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
	}

	return &RedisCache{
		redis:      redis.NewClient(opts),
		defaultTTL: ttl,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}, nil
}

// Get retrieves a cached prediction
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.PredictionResult, bool, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.redis.Get(ctx, key).Result()
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached prediction: %w", err)
	}

	result, err := decodePrediction([]byte(out.(string)))
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Set stores a prediction with the default TTL
func (c *RedisCache) Set(ctx context.Context, key string, result *domain.PredictionResult) error {
	payload, err := encodePrediction(result, time.Now(), c.defaultTTL)
	if err != nil {
		return err
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, key, payload, c.defaultTTL).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to cache prediction: %w", err)
	}
	return nil
}

// encodePrediction wraps result with its cache metadata. The unrounded
// baseline is not part of the result's JSON and travels beside it.
func encodePrediction(result *domain.PredictionResult, now time.Time, ttl time.Duration) ([]byte, error) {
	payload, err := json.Marshal(cachedPrediction{
		Data:          result,
		BaselineScore: result.BaselineScore,
		CachedAt:      now,
		ExpiresAt:     now.Add(ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction: %w", err)
	}
	return payload, nil
}

func decodePrediction(payload []byte) (*domain.PredictionResult, error) {
	var cached cachedPrediction
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached prediction: %w", err)
	}
	if cached.Data == nil {
		return nil, fmt.Errorf("cached prediction has no data")
	}
	cached.Data.BaselineScore = cached.BaselineScore
	return cached.Data, nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// State reports the circuit breaker state.
func (c *RedisCache) State() gobreaker.State {
	return c.breaker.State()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
