package options

import (
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/mail"
	"go.uber.org/fx"
)

type Options struct {
	Config     *config.Config
	ConfigFile string
	MailSender mail.Sender
	FxOptions  []fx.Option
}

type Option func(*Options)

func Apply(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

func WithConfigFile(path string) Option {
	return func(opts *Options) {
		opts.ConfigFile = path
	}
}

func WithMailSender(sender mail.Sender) Option {
	return func(opts *Options) {
		opts.MailSender = sender
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.FxOptions = append(opts.FxOptions, fxOpts...)
	}
}
