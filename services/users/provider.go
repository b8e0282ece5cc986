package users

import (
	"fmt"

	"github.com/xanderlab/labauth/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideRepository(cfg *config.Config, db *gorm.DB) (*Repository, error) {
	repo := NewRepository(db)
	if cfg.Database.AutoMigrate {
		if err := repo.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate users table: %w", err)
		}
	}
	return repo, nil
}

var Module = fx.Options(
	fx.Provide(ProvideRepository),
)
