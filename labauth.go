// Package labauth assembles the token session service: login by password or
// emailed code, refresh token rotation, logout and the HTTP surface over them.
package labauth

import (
	"github.com/xanderlab/labauth/app"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/internal/options"
	"github.com/xanderlab/labauth/services/mail"
	"go.uber.org/fx"
)

type (
	App    = app.App
	Option = options.Option
)

// New builds the application. Without WithConfig or WithConfigFile the
// configuration is read from .env and the environment.
func New(opts ...Option) (*App, error) {
	o := options.Apply(opts...)

	builder := app.NewApp()
	switch {
	case o.Config != nil:
		builder.WithConfig(o.Config)
	case o.ConfigFile != "":
		builder.WithConfigFile(o.ConfigFile)
	}
	if o.MailSender != nil {
		builder.WithMailSender(o.MailSender)
	}

	return builder.WithFxOptions(o.FxOptions...).Build()
}

func WithConfig(cfg *config.Config) Option {
	return options.WithConfig(cfg)
}

func WithConfigFile(path string) Option {
	return options.WithConfigFile(path)
}

func WithMailSender(sender mail.Sender) Option {
	return options.WithMailSender(sender)
}

func WithFxOptions(opts ...fx.Option) Option {
	return options.WithFxOptions(opts...)
}
