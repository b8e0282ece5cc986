package revocation

import (
	"github.com/xanderlab/labauth/services/credentials"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/fx"
)

func ProvideRevocationService(store credentials.Store, logger *logging.Service) *Service {
	return NewService(store, logger.Named("revocation"))
}

var Module = fx.Options(
	fx.Provide(ProvideRevocationService),
)
