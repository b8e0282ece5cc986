package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xanderlab/labauth"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/database"
	"github.com/xanderlab/labauth/services/auth"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/services/users"
	"go.uber.org/zap"
)

const usage = `usage: labauth <command> [flags]

commands:
  serve     run the HTTP service (default)
  useradd   create a password account
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		return serve(args)
	case "useradd":
		return userAdd(args, out)
	case "help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configFile := fs.String("config", "", "YAML config file overlaid on the environment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var opts []labauth.Option
	if *configFile != "" {
		opts = append(opts, labauth.WithConfigFile(*configFile))
	}

	app, err := labauth.New(opts...)
	if err != nil {
		return err
	}
	return app.Run()
}

func loadConfig(path string) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		return cfg, config.LoadConfigFile(path, cfg)
	}
	return cfg, config.LoadConfig(cfg)
}

func userAdd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	configFile := fs.String("config", "", "YAML config file overlaid on the environment")
	username := fs.String("username", "", "login name (required)")
	email := fs.String("email", "", "email address (required)")
	password := fs.String("password", "", "initial password (required)")
	nickname := fs.String("nickname", "", "display name, defaults to the username")
	role := fs.String("role", "", "role claim, defaults to the configured default role")
	disabled := fs.Bool("disabled", false, "create the account disabled")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" || *email == "" || *password == "" {
		return errors.New("useradd: -username, -email and -password are required")
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	logger, err := logging.NewLoggingService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.ProvideDatabase(*cfg, logger.Named("database"))
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	repo := users.NewRepository(db)
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}

	hash, err := auth.NewService(&cfg.Auth, logger.Named("auth")).HashPassword(*password)
	if err != nil {
		return fmt.Errorf("useradd: %w", err)
	}

	user := &users.User{
		Username: *username,
		Email:    *email,
		Password: hash,
		Nickname: *nickname,
		Role:     *role,
		Status:   users.StatusEnabled,
	}
	if user.Nickname == "" {
		user.Nickname = user.Username
	}
	if user.Role == "" {
		user.Role = cfg.Auth.DefaultRole
	}
	if *disabled {
		user.Status = users.StatusDisabled
	}

	if err := repo.Insert(context.Background(), user); err != nil {
		return fmt.Errorf("useradd: %w", err)
	}

	logger.Info("user created", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	fmt.Fprintf(out, "created user %d (%s)\n", user.ID, user.Username)
	return nil
}
