package testutils

import (
	"time"

	"github.com/xanderlab/labauth/config"
	"golang.org/x/crypto/bcrypt"
)

// TestSecretKey is 48 bytes, comfortably above the signing key minimum.
const TestSecretKey = "labauth-test-signing-key-0123456789abcdefghijklm"

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "Test Lab",
			URL:  "http://localhost:8080",
		},
		Server: config.ServerConfig{
			Port:             "0",
			Host:             "127.0.0.1",
			CORSAllowOrigins: []string{"*"},
			ShutdownTimeout:  5 * time.Second,
		},
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		JWT: config.JWTConfig{
			SecretKey:     TestSecretKey,
			AccessExpiry:  2 * time.Hour,
			RefreshExpiry: 7 * 24 * time.Hour,
		},
		Credentials: config.CredentialsConfig{
			Store:           "memory",
			KeyPrefix:       "login:",
			CleanupInterval: time.Minute,
		},
		Auth: config.AuthConfig{
			MinLength:     8,
			RequireUpper:  true,
			RequireLower:  true,
			RequireNumber: true,
			BcryptCost:    bcrypt.MinCost,
			DefaultRole:   "USER",
			AvatarBaseURL: "https://api.dicebear.com/7.x/avataaars/svg",
		},
		Mail: config.MailConfig{
			FromAddress: "noreply@lab.test",
			FromName:    "Test Lab",
		},
		RateLimit: config.RateLimitConfig{
			Enabled:   false,
			Store:     "memory",
			Rate:      10,
			Period:    time.Minute,
			CountMode: config.CountAll,
		},
	}
}

var TestPasswords = struct {
	Valid       string
	TooShort    string
	NoUpper     string
	NoLower     string
	NoNumber    string
	WithSpecial string
}{
	Valid:       "Password123",
	TooShort:    "Pass1",
	NoUpper:     "password123",
	NoLower:     "PASSWORD123",
	NoNumber:    "Password",
	WithSpecial: "Password123!",
}
