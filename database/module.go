package database

import (
	"context"

	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Options(
	fx.Provide(ProvideDatabaseFx),
)

func ProvideDatabaseFx(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (*gorm.DB, error) {
	db, err := ProvideDatabase(*cfg, logger.Named("database"))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}
