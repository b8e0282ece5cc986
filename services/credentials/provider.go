package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultDialTimeout = 5 * time.Second

type OptionalDB struct {
	fx.In
	DB *gorm.DB `optional:"true"`
}

func RedisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}
}

func ProvideStore(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service, optDB OptionalDB) (Store, error) {
	logger = logger.Named("credentials")
	prefix := cfg.Credentials.KeyPrefix

	logger.Info("initializing credential store",
		zap.String("store_type", cfg.Credentials.Store),
		zap.String("key_prefix", prefix))

	switch cfg.Credentials.Store {
	case "memory":
		return NewMemoryStore(prefix, logger), nil

	case "redis":
		timeout := cfg.Redis.DialTimeout
		if timeout <= 0 {
			timeout = defaultDialTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		client, err := NewRedisClient(ctx, RedisOptions(cfg.Redis))
		if err != nil {
			logger.Error("failed to connect credential store to Redis",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		return NewRedisStore(client, prefix), nil

	case "database":
		if optDB.DB == nil {
			return nil, fmt.Errorf("credential store %q requires a database", cfg.Credentials.Store)
		}
		store := NewDatabaseStore(optDB.DB, prefix, logger)
		if err := store.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate credential entries: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, cfg.Credentials.Store)
	}
}

func StartSweepWorker(lc fx.Lifecycle, cfg *config.Config, store Store, logger *logging.Service) {
	sweeper, ok := store.(Sweeper)
	if !ok {
		return
	}

	worker := NewSweepWorker(sweeper, cfg.Credentials.CleanupInterval, logger.Named("credentials"))
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
}

var Module = fx.Options(
	fx.Provide(ProvideStore),
	fx.Invoke(StartSweepWorker),
)
