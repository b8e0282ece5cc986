package auth

import (
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/fx"
)

func ProvideAuthService(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(&cfg.Auth, logger.Named("auth"))
}

var Module = fx.Options(
	fx.Provide(ProvideAuthService),
)
