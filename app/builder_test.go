package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanderlab/labauth/testutils"
	"go.uber.org/fx"
)

func TestNewApp(t *testing.T) {
	builder := NewApp()

	assert.NotNil(t, builder)
	assert.NotNil(t, builder.fxOptions)
	assert.NotNil(t, builder.errors)
	assert.Empty(t, builder.fxOptions)
	assert.Empty(t, builder.errors)
	assert.Nil(t, builder.config)
	assert.Nil(t, builder.mailSender)
}

func TestAppBuilder_WithConfig(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		builder := NewApp()

		result := builder.WithConfig(cfg)

		assert.Equal(t, builder, result)
		assert.Equal(t, cfg, builder.config)
	})

	t.Run("nil config", func(t *testing.T) {
		builder := NewApp()

		result := builder.WithConfig(nil)

		assert.Equal(t, builder, result)
		assert.Nil(t, builder.config)
		require.Len(t, builder.errors, 1)
		assert.Contains(t, builder.errors[0].Error(), "config cannot be nil")
	})
}

func TestAppBuilder_WithConfigFile(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		builder := NewApp().WithConfigFile("")

		require.Len(t, builder.errors, 1)
		assert.Contains(t, builder.errors[0].Error(), "config file path cannot be empty")
	})

	t.Run("missing file", func(t *testing.T) {
		builder := NewApp().WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))

		require.Len(t, builder.errors, 1)
		assert.Contains(t, builder.errors[0].Error(), "failed to load config")
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labauth.yaml")
		content := "jwt:\n  secret_key: " + testutils.TestSecretKey + "\nserver:\n  port: \"9200\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		builder := NewApp().WithConfigFile(path)

		require.Empty(t, builder.errors)
		require.NotNil(t, builder.config)
		assert.Equal(t, testutils.TestSecretKey, builder.config.JWT.SecretKey)
		assert.Equal(t, "9200", builder.config.Server.Port)
	})
}

func TestAppBuilder_WithMailSender(t *testing.T) {
	t.Run("recorder", func(t *testing.T) {
		recorder := &testutils.MailRecorder{}

		builder := NewApp().WithMailSender(recorder)

		assert.Empty(t, builder.errors)
		assert.Equal(t, recorder, builder.mailSender)
	})

	t.Run("nil sender", func(t *testing.T) {
		builder := NewApp().WithMailSender(nil)

		require.Len(t, builder.errors, 1)
		assert.Contains(t, builder.errors[0].Error(), "mail sender cannot be nil")
	})
}

func TestAppBuilder_WithFxOptions(t *testing.T) {
	builder := NewApp()

	result := builder.WithFxOptions(fx.Supply("a"), fx.Supply(1))

	assert.Equal(t, builder, result)
	assert.Len(t, builder.fxOptions, 2)
}

func TestAppBuilder_Build_Errors(t *testing.T) {
	t.Run("accumulated errors", func(t *testing.T) {
		app, err := NewApp().WithConfig(nil).WithMailSender(nil).Build()

		require.Error(t, err)
		assert.Nil(t, app)
		assert.Contains(t, err.Error(), "configuration errors")
		assert.Contains(t, err.Error(), "config cannot be nil")
		assert.Contains(t, err.Error(), "mail sender cannot be nil")
	})

	t.Run("short signing key", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.JWT.SecretKey = "too-short"

		app, err := NewApp().WithConfig(cfg).Build()

		require.Error(t, err)
		assert.Nil(t, app)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("unsupported database driver", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.Database.Driver = "oracle"

		app, err := NewApp().WithConfig(cfg).Build()

		require.Error(t, err)
		assert.Nil(t, app)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})

	t.Run("unknown rate limit store", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.RateLimit.Store = "etcd"

		app, err := NewApp().WithConfig(cfg).Build()

		require.Error(t, err)
		assert.Nil(t, app)
		assert.Contains(t, err.Error(), "unknown rate limit store")
	})
}

func TestAppBuilder_Build(t *testing.T) {
	app, err := NewApp().WithConfig(testutils.GetTestConfig()).Build()

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.NotNil(t, app.Logger())
	assert.NotNil(t, app.DB())
	assert.NotNil(t, app.Server())
	assert.NotNil(t, app.Echo())
	assert.NotNil(t, app.Sessions())
	assert.Equal(t, "Test Lab", app.Config().App.Name)
	assert.Empty(t, app.Addr())
}
