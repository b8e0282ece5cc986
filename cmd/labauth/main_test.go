package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/database"
	"github.com/xanderlab/labauth/services/auth"
	"github.com/xanderlab/labauth/services/users"
	"github.com/xanderlab/labauth/testutils"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lab.db")
	path := filepath.Join(dir, "labauth.yaml")
	content := "jwt:\n" +
		"  secret_key: " + testutils.TestSecretKey + "\n" +
		"log:\n" +
		"  level: error\n" +
		"database:\n" +
		"  driver: sqlite\n" +
		"  dsn: " + dbPath + "\n" +
		"auth:\n" +
		"  bcrypt_cost: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path, dbPath
}

func openUsers(t *testing.T, dbPath string) *users.Repository {
	t.Helper()

	db, err := database.ProvideDatabase(config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: dbPath},
	}, nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return users.NewRepository(db)
}

func TestRun_UserAdd(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	var out bytes.Buffer

	err := run([]string{
		"useradd",
		"-config", configPath,
		"-username", "alice",
		"-email", "alice@lab.test",
		"-password", testutils.TestPasswords.Valid,
		"-role", "ADMIN",
	}, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "created user 1 (alice)")

	user, err := openUsers(t, dbPath).FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ADMIN", user.Role)
	assert.Equal(t, "alice", user.Nickname)
	assert.True(t, user.Enabled())

	passwords := auth.NewService(&config.AuthConfig{BcryptCost: 4}, nil)
	assert.NoError(t, passwords.VerifyPassword(user.Password, testutils.TestPasswords.Valid))
}

func TestRun_UserAddDefaultsAndDisabled(t *testing.T) {
	configPath, dbPath := writeConfig(t)

	err := run([]string{
		"useradd",
		"-config", configPath,
		"-username", "bob",
		"-email", "bob@lab.test",
		"-password", testutils.TestPasswords.Valid,
		"-disabled",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	user, err := openUsers(t, dbPath).FindByEmail(context.Background(), "bob@lab.test")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "USER", user.Role)
	assert.False(t, user.Enabled())
}

func TestRun_UserAddErrors(t *testing.T) {
	configPath, _ := writeConfig(t)

	t.Run("missing flags", func(t *testing.T) {
		err := run([]string{"useradd", "-config", configPath, "-username", "alice"}, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "are required")
	})

	t.Run("weak password", func(t *testing.T) {
		err := run([]string{
			"useradd", "-config", configPath,
			"-username", "carol", "-email", "carol@lab.test", "-password", testutils.TestPasswords.TooShort,
		}, &bytes.Buffer{})
		require.Error(t, err)
	})

	t.Run("duplicate user", func(t *testing.T) {
		args := []string{
			"useradd", "-config", configPath,
			"-username", "dave", "-email", "dave@lab.test", "-password", testutils.TestPasswords.Valid,
		}
		require.NoError(t, run(args, &bytes.Buffer{}))

		err := run(args, &bytes.Buffer{})
		require.Error(t, err)
		assert.ErrorIs(t, err, users.ErrDuplicateUser)
	})
}

func TestRun_UnknownCommand(t *testing.T) {
	err := run([]string{"frobnicate"}, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "frobnicate"`)
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "useradd")
}
