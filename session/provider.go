package session

import (
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/auth"
	"github.com/xanderlab/labauth/services/credentials"
	"github.com/xanderlab/labauth/services/jwt"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/services/mail"
	"github.com/xanderlab/labauth/services/revocation"
	"github.com/xanderlab/labauth/services/users"
	"go.uber.org/fx"
)

func ProvideManager(
	cfg *config.Config,
	tokens *jwt.Service,
	store credentials.Store,
	revocations *revocation.Service,
	userRepo *users.Repository,
	passwords *auth.Service,
	mailer mail.Sender,
	logger *logging.Service,
) *Manager {
	return NewManager(cfg, tokens, store, revocations, userRepo, passwords, mailer, logger.Named("session"))
}

var Module = fx.Options(
	fx.Provide(ProvideManager),
)
