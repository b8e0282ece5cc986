package server

import (
	"context"

	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/openapi"
	"go.uber.org/fx"
)

// ProvideDocument describes the API served by this process.
func ProvideDocument(cfg *config.Config) *openapi.Document {
	return openapi.New(cfg.App.Name+" API", "1.0.0").
		Description("Bearer token sessions: login by password or emailed code, refresh rotation and logout.").
		Server(cfg.App.URL, "")
}

func NewProvider() fx.Option {
	return fx.Options(
		fx.Provide(New, ProvideDocument),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, srv *Server, doc *openapi.Document) {
			doc.Mount(srv.Echo(), cfg.Server.DocsEnabled)

			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return srv.Start()
				},
				OnStop: func(ctx context.Context) error {
					return srv.Shutdown(ctx)
				},
			})
		}),
	)
}
