package app

import (
	"fmt"

	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/database"
	authhandler "github.com/xanderlab/labauth/handlers/auth"
	"github.com/xanderlab/labauth/middleware/ratelimit"
	"github.com/xanderlab/labauth/server"
	"github.com/xanderlab/labauth/services/auth"
	"github.com/xanderlab/labauth/services/credentials"
	"github.com/xanderlab/labauth/services/jwt"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/services/mail"
	"github.com/xanderlab/labauth/services/revocation"
	"github.com/xanderlab/labauth/services/users"
	"github.com/xanderlab/labauth/session"
	"go.uber.org/fx"
)

type AppBuilder struct {
	config     *config.Config
	mailSender mail.Sender
	fxOptions  []fx.Option
	errors     []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

// WithAutoConfig loads the configuration from .env and the environment.
func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithConfigFile loads the environment and overlays the YAML file at path.
func (b *AppBuilder) WithConfigFile(path string) *AppBuilder {
	if path == "" {
		b.addError("config file path cannot be empty")
		return b
	}
	cfg := &config.Config{}
	if err := config.LoadConfigFile(path, cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithMailSender replaces the configured mail sender, e.g. with a recorder
// in end-to-end tests.
func (b *AppBuilder) WithMailSender(sender mail.Sender) *AppBuilder {
	if sender == nil {
		b.addError("mail sender cannot be nil")
		return b
	}
	b.mailSender = sender
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

// Build resolves the dependency graph. Constructors run here, so a bad
// database DSN or unreachable Redis fails Build rather than Start.
func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(b.config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{config: b.config}

	options := b.buildFxOptions()
	options = append(options, fx.Populate(&app.logger, &app.db, &app.server, &app.sessions))

	fxApp := fx.New(options...)
	if err := fxApp.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	app.fx = fxApp

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}
	return nil
}

func (b *AppBuilder) buildFxOptions() []fx.Option {
	options := []fx.Option{
		config.NewProvider(b.config),
		fx.NopLogger,
		logging.Module,
		database.Module,
		users.Module,
		credentials.Module,
		revocation.Module,
		jwt.Options,
		auth.Module,
		mail.Module,
		session.Module,
		ratelimit.Module,
		server.NewProvider(),
		authhandler.Module,
	}

	if b.mailSender != nil {
		sender := b.mailSender
		options = append(options, fx.Decorate(func(mail.Sender) mail.Sender {
			return sender
		}))
	}

	return append(options, b.fxOptions...)
}
