package revocation

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/xanderlab/labauth/services/credentials"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/zap"
)

// revokedMarker is the sentinel value stored for a blacklisted token.
const revokedMarker = "1"

// minTTL keeps a token that is revoked at the moment it expires recorded for
// at least one store tick.
const minTTL = time.Second

var ErrEmptyToken = errors.New("token must not be empty")

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", hash[:8])
}

// Service manages the refresh token blacklist. Entries expire on their own
// once the token could no longer verify anyway.
type Service struct {
	store  credentials.Store
	logger *logging.Service
}

func NewService(store credentials.Store, logger *logging.Service) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

// Revoke blacklists token for ttl. Revoking an already revoked token only
// refreshes its TTL.
func (s *Service) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" {
		return ErrEmptyToken
	}

	ttl = clampTTL(ttl)
	if err := s.store.SetWithTTL(ctx, credentials.NamespaceBlacklist, token, revokedMarker, ttl); err != nil {
		s.logger.Error("failed to revoke token",
			zap.String("token_hash", hashToken(token)),
			zap.Error(err))
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.logger.Info("token revoked",
		zap.String("token_hash", hashToken(token)),
		zap.Duration("ttl", ttl))

	return nil
}

// RevokeOnce blacklists token only if it is not already blacklisted. It
// returns false when another caller revoked it first.
func (s *Service) RevokeOnce(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}

	ttl = clampTTL(ttl)
	stored, err := s.store.SetIfAbsent(ctx, credentials.NamespaceBlacklist, token, revokedMarker, ttl)
	if err != nil {
		s.logger.Error("failed to revoke token",
			zap.String("token_hash", hashToken(token)),
			zap.Error(err))
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}

	if !stored {
		s.logger.Warn("token already revoked",
			zap.String("token_hash", hashToken(token)))
		return false, nil
	}

	s.logger.Debug("token revoked",
		zap.String("token_hash", hashToken(token)),
		zap.Duration("ttl", ttl))

	return true, nil
}

func (s *Service) IsRevoked(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}

	revoked, err := s.store.Exists(ctx, credentials.NamespaceBlacklist, token)
	if err != nil {
		s.logger.Error("failed to check token revocation status",
			zap.String("token_hash", hashToken(token)),
			zap.Error(err))
		return false, fmt.Errorf("failed to check token revocation status: %w", err)
	}

	return revoked, nil
}
