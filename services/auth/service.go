package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)

// placeholderBytes sizes the random secret given to accounts created through
// one-time-code login. Nobody ever learns it.
const placeholderBytes = 32

type Service struct {
	config *config.AuthConfig
	logger *logging.Service
}

func NewService(cfg *config.AuthConfig, logger *logging.Service) *Service {
	local := *cfg
	if local.BcryptCost < bcrypt.MinCost || local.BcryptCost > bcrypt.MaxCost {
		local.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		config: &local,
		logger: logger,
	}
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.MinLength {
		s.logger.Warn("password validation failed: insufficient length",
			zap.Int("length", len(password)),
			zap.Int("min_required", s.config.MinLength))
		return fmt.Errorf("password must be at least %d characters", s.config.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	var missing []string

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if s.config.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.config.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.config.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.config.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		s.logger.Warn("password validation failed: missing requirements",
			zap.Strings("missing_requirements", missing))
		return fmt.Errorf("password must contain at least %s", strings.Join(missing, ", "))
	}

	if s.config.MinEntropy > 0 {
		if err := passwordvalidator.Validate(password, s.config.MinEntropy); err != nil {
			s.logger.Warn("password validation failed: insufficient entropy",
				zap.Float64("min_entropy", s.config.MinEntropy))
			return err
		}
	}

	return nil
}

// HashPassword validates password strength and returns its bcrypt hash.
func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}
	return s.hash(password)
}

// NewPlaceholderHash returns the bcrypt hash of a fresh random secret, for
// accounts that only ever sign in with one-time codes.
func (s *Service) NewPlaceholderHash() (string, error) {
	secret := make([]byte, placeholderBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate placeholder password: %w", err)
	}
	// bcrypt only reads the first 72 bytes; 64 hex characters fit.
	return s.hash(hex.EncodeToString(secret))
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		s.logger.Debug("password verification failed")
		return ErrInvalidCredentials
	}
	return nil
}
