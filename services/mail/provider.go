package mail

import (
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/fx"
)

func ProvideSender(cfg *config.Config, logger *logging.Service) (Sender, error) {
	logger = logger.Named("mail")

	if !cfg.Mail.Enabled {
		logger.Warn("mail delivery disabled; login codes will not be delivered")
		return NewLogSender(logger), nil
	}

	return NewService(&cfg.Mail, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideSender),
)
