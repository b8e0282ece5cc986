package jwt

import (
	"github.com/labstack/echo/v4"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/session"
)

// NewGate builds the gate middleware around the session manager.
func NewGate(manager *session.Manager, logger *logging.Service) echo.MiddlewareFunc {
	return Gate(Config{
		Authenticator: manager,
		Logger:        logger.Named("gate"),
	})
}
