package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/credentials"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const redisKeyPrefix = "ratelimit:"

// Limiter is the configured middleware, or nil when rate limiting is off.
type Limiter echo.MiddlewareFunc

func ProvideStore(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (Store, error) {
	logger = logger.Named("ratelimit")

	switch cfg.RateLimit.Store {
	case "", "memory":
		interval := cfg.RateLimit.Period
		if interval <= 0 {
			interval = time.Minute
		}
		store := NewMemoryStore()
		worker := credentials.NewSweepWorker(store, interval, logger)
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				worker.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				worker.Stop()
				return nil
			},
		})
		return store, nil

	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client, err := credentials.NewRedisClient(ctx, credentials.RedisOptions(cfg.Redis))
		if err != nil {
			logger.Error("failed to connect rate limiter to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		return NewRedisStore(client, cfg.Credentials.KeyPrefix+redisKeyPrefix), nil

	default:
		return nil, fmt.Errorf("unknown rate limit store: %s", cfg.RateLimit.Store)
	}
}

func ProvideLimiter(cfg *config.Config, store Store, logger *logging.Service) Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	return Limiter(Middleware(&Config{
		Store:     store,
		Rate:      cfg.RateLimit.Rate,
		Period:    cfg.RateLimit.Period,
		CountMode: cfg.RateLimit.CountMode,
		Logger:    logger.Named("ratelimit"),
	}))
}

var Module = fx.Options(
	fx.Provide(ProvideStore, ProvideLimiter),
)
