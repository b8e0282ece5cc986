package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig         `envPrefix:"LAB_APP_" yaml:"app"`
	Server      ServerConfig      `envPrefix:"LAB_SERVER_" yaml:"server"`
	Log         LogConfig         `envPrefix:"LAB_LOG_" yaml:"log"`
	Database    DatabaseConfig    `envPrefix:"LAB_DATABASE_" yaml:"database"`
	JWT         JWTConfig         `envPrefix:"LAB_JWT_" yaml:"jwt"`
	Credentials CredentialsConfig `envPrefix:"LAB_CREDENTIALS_" yaml:"credentials"`
	Redis       RedisConfig       `envPrefix:"LAB_REDIS_" yaml:"redis"`
	Mail        MailConfig        `envPrefix:"LAB_MAIL_" yaml:"mail"`
	Auth        AuthConfig        `envPrefix:"LAB_AUTH_" yaml:"auth"`
	RateLimit   RateLimitConfig   `envPrefix:"LAB_RATELIMIT_" yaml:"rate_limit"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"Xander Lab" yaml:"name"`
	URL  string `env:"URL" envDefault:"http://localhost:8080" yaml:"url"`
}

type ServerConfig struct {
	Port             string        `env:"PORT" envDefault:"8080" yaml:"port"`
	Host             string        `env:"HOST" envDefault:"localhost" yaml:"host"`
	CORSAllowOrigins []string      `env:"CORS_ALLOW_ORIGINS" envDefault:"*" envSeparator:"," yaml:"cors_allow_origins"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s" yaml:"shutdown_timeout"`
	DocsEnabled      bool          `env:"DOCS_ENABLED" envDefault:"false" yaml:"docs_enabled"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info" yaml:"level"`
	Format string `env:"FORMAT" envDefault:"json" yaml:"format"`
	Output string `env:"OUTPUT" envDefault:"stdout" yaml:"output"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite" yaml:"driver"`
	DSN         string `env:"DSN" envDefault:"lab.db" yaml:"dsn"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true" yaml:"auto_migrate"`
}

// JWTConfig holds the process-wide signing key and token lifetimes. Rotating
// SecretKey invalidates every outstanding token.
type JWTConfig struct {
	SecretKey     string        `env:"SECRET_KEY" yaml:"secret_key"`
	Issuer        string        `env:"ISSUER" envDefault:"" yaml:"issuer"`
	AccessExpiry  time.Duration `env:"ACCESS_EXPIRY" envDefault:"2h" yaml:"access_expiry"`
	RefreshExpiry time.Duration `env:"REFRESH_EXPIRY" envDefault:"168h" yaml:"refresh_expiry"`
}

// CredentialsConfig selects the TTL key-value backend holding verification
// codes, active-session markers and the refresh token blacklist.
type CredentialsConfig struct {
	Store           string        `env:"STORE" envDefault:"memory" yaml:"store"`
	KeyPrefix       string        `env:"KEY_PREFIX" envDefault:"login:" yaml:"key_prefix"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m" yaml:"cleanup_interval"`
}

type RedisConfig struct {
	Addr        string        `env:"ADDR" envDefault:"localhost:6379" yaml:"addr"`
	Password    string        `env:"PASSWORD" yaml:"password"`
	DB          int           `env:"DB" envDefault:"0" yaml:"db"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s" yaml:"dial_timeout"`
}

type MailConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false" yaml:"enabled"`
	Host        string `env:"HOST" envDefault:"localhost" yaml:"host"`
	Port        int    `env:"PORT" envDefault:"587" yaml:"port"`
	Username    string `env:"USERNAME" yaml:"username"`
	Password    string `env:"PASSWORD" yaml:"password"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls" yaml:"encryption"`
	FromAddress string `env:"FROM_ADDRESS" yaml:"from_address"`
	FromName    string `env:"FROM_NAME" envDefault:"Xander Lab" yaml:"from_name"`
}

type AuthConfig struct {
	MinLength      int     `env:"MIN_LENGTH" envDefault:"8" yaml:"min_length"`
	RequireUpper   bool    `env:"REQUIRE_UPPER" envDefault:"true" yaml:"require_upper"`
	RequireLower   bool    `env:"REQUIRE_LOWER" envDefault:"true" yaml:"require_lower"`
	RequireNumber  bool    `env:"REQUIRE_NUMBER" envDefault:"true" yaml:"require_number"`
	RequireSpecial bool    `env:"REQUIRE_SPECIAL" envDefault:"false" yaml:"require_special"`
	MinEntropy     float64 `env:"MIN_ENTROPY" envDefault:"0" yaml:"min_entropy"`
	BcryptCost     int     `env:"BCRYPT_COST" envDefault:"10" yaml:"bcrypt_cost"`
	DefaultRole    string  `env:"DEFAULT_ROLE" envDefault:"USER" yaml:"default_role"`
	AvatarBaseURL  string  `env:"AVATAR_BASE_URL" envDefault:"https://api.dicebear.com/7.x/avataaars/svg" yaml:"avatar_base_url"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true" yaml:"enabled"`
	Store     string        `env:"STORE" envDefault:"memory" yaml:"store"`
	Rate      int           `env:"RATE" envDefault:"10" yaml:"rate"`
	Period    time.Duration `env:"PERIOD" envDefault:"1m" yaml:"period"`
	CountMode CountingMode  `env:"COUNT_MODE" envDefault:"all" yaml:"count_mode"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return Validate(c)
	}
	return nil
}

// Validate checks the settings the service refuses to start without.
func Validate(cfg *Config) error {
	if err := validateJWTConfig(&cfg.JWT); err != nil {
		return err
	}
	return validateCredentialsConfig(&cfg.Credentials)
}

func validateJWTConfig(cfg *JWTConfig) error {
	if len(cfg.SecretKey) < 32 {
		return fmt.Errorf("JWT secret key must be at least 32 characters long")
	}
	if cfg.AccessExpiry <= 0 {
		return fmt.Errorf("JWT access expiry must be positive")
	}
	if cfg.RefreshExpiry <= 0 {
		return fmt.Errorf("JWT refresh expiry must be positive")
	}
	return nil
}

func validateCredentialsConfig(cfg *CredentialsConfig) error {
	switch cfg.Store {
	case "memory", "redis", "database":
	default:
		return fmt.Errorf("credential store must be: memory, redis, or database")
	}
	if cfg.CleanupInterval <= 0 {
		return fmt.Errorf("credential store cleanup interval must be positive")
	}
	return nil
}

// LoadConfigFile applies struct defaults and the environment first and then
// overlays the YAML file at path. Keys present in the file take precedence.
func LoadConfigFile(path string, cfg *Config) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}
	if err := env.Parse(cfg); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return Validate(cfg)
}
