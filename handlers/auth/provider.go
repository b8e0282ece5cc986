package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/middleware/ratelimit"
	"github.com/xanderlab/labauth/openapi"
	"github.com/xanderlab/labauth/server"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/session"
	"go.uber.org/fx"
)

func ProvideHandler(cfg *config.Config, manager *session.Manager, logger *logging.Service) *Handler {
	return NewHandler(manager, cfg.App.Name, logger.Named("http"))
}

func RegisterRoutes(srv *server.Server, h *Handler, limiter ratelimit.Limiter, doc *openapi.Document) {
	h.Register(srv.Echo(), echo.MiddlewareFunc(limiter), doc)
}

var Module = fx.Options(
	fx.Provide(ProvideHandler),
	fx.Invoke(RegisterRoutes),
)
