package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/zap"
)

// MinKeyLength is the shortest HS256 signing key accepted at startup.
const MinKeyLength = 32

var (
	ErrInvalidToken            = errors.New("invalid JWT token")
	ErrExpiredToken            = errors.New("JWT token has expired")
	ErrMalformedToken          = errors.New("malformed JWT token")
	ErrInvalidSignature        = errors.New("invalid JWT token signature")
	ErrSigningKeyMisconfigured = errors.New("JWT signing key is misconfigured")
	ErrUnknownTokenType        = errors.New("unknown JWT token type")
)

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claim names owned by the codec. Extra claims can never override them.
const (
	claimSubject   = "sub"
	claimType      = "type"
	claimIssuedAt  = "iat"
	claimNotBefore = "nbf"
	claimExpires   = "exp"
	claimID        = "jti"
	claimIssuer    = "iss"
	claimAudience  = "aud"

	// ClaimRole carries the user's role tag on access tokens.
	ClaimRole = "role"
)

var reservedClaims = map[string]bool{
	claimSubject:   true,
	claimType:      true,
	claimIssuedAt:  true,
	claimNotBefore: true,
	claimExpires:   true,
	claimID:        true,
	claimIssuer:    true,
	claimAudience:  true,
}

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Type      TokenType
	ID        string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// Role returns the role claim, if any.
func (c *Claims) Role() string {
	if c == nil {
		return ""
	}
	role, _ := c.Extra[ClaimRole].(string)
	return role
}

type Service struct {
	key           []byte
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	logger        *logging.Service
	now           func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(cfg *config.Config, logger *logging.Service, opts ...Option) (*Service, error) {
	if cfg == nil || len(cfg.JWT.SecretKey) < MinKeyLength {
		return nil, fmt.Errorf("%w: key must be at least %d bytes", ErrSigningKeyMisconfigured, MinKeyLength)
	}

	s := &Service{
		key:           []byte(cfg.JWT.SecretKey),
		issuer:        cfg.JWT.Issuer,
		accessExpiry:  cfg.JWT.AccessExpiry,
		refreshExpiry: cfg.JWT.RefreshExpiry,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Service) AccessExpiry() time.Duration {
	return s.accessExpiry
}

func (s *Service) RefreshExpiry() time.Duration {
	return s.refreshExpiry
}

// Issue signs a token for subject that expires after ttl. Every token gets a
// random jti so two tokens minted in the same second are distinct.
func (s *Service) Issue(subject string, tokenType TokenType, extra map[string]any, ttl time.Duration) (string, error) {
	if tokenType != TypeAccess && tokenType != TypeRefresh {
		return "", fmt.Errorf("%w: %q", ErrUnknownTokenType, tokenType)
	}

	now := s.now()
	claims := jwt.MapClaims{}
	for name, value := range extra {
		if reservedClaims[name] {
			continue
		}
		claims[name] = value
	}

	claims[claimSubject] = subject
	claims[claimType] = string(tokenType)
	claims[claimID] = uuid.NewString()
	claims[claimIssuedAt] = jwt.NewNumericDate(now)
	claims[claimNotBefore] = jwt.NewNumericDate(now)
	claims[claimExpires] = jwt.NewNumericDate(now.Add(ttl))
	if s.issuer != "" {
		claims[claimIssuer] = s.issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.key)
	if err != nil {
		s.logger.Error("failed to sign JWT token", zap.String("type", string(tokenType)), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrSigningKeyMisconfigured, err)
	}

	return tokenString, nil
}

func (s *Service) IssueAccess(subject string, extra map[string]any) (string, error) {
	return s.Issue(subject, TypeAccess, extra, s.accessExpiry)
}

func (s *Service) IssueRefresh(subject string) (string, error) {
	return s.Issue(subject, TypeRefresh, nil, s.refreshExpiry)
}

// Verify checks signature and expiry together and returns the claims.
// Failures are reported as ErrMalformedToken, ErrExpiredToken,
// ErrInvalidSignature or ErrInvalidToken.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, s.keyFunc, parserOpts...)
	if err != nil {
		s.logger.Debug("JWT token validation failed", zap.Error(err))

		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		default:
			return nil, ErrInvalidToken
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return s.toClaims(mapClaims)
}

func (s *Service) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
	}
	if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
	}
	return s.key, nil
}

func (s *Service) toClaims(mc jwt.MapClaims) (*Claims, error) {
	subject, err := mc.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrInvalidToken
	}

	tokenType, _ := mc[claimType].(string)
	id, _ := mc[claimID].(string)
	issuer, _ := mc.GetIssuer()

	claims := &Claims{
		Subject: subject,
		Type:    TokenType(tokenType),
		ID:      id,
		Issuer:  issuer,
		Extra:   map[string]any{},
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	for name, value := range mc {
		if !reservedClaims[name] {
			claims.Extra[name] = value
		}
	}

	return claims, nil
}

func (s *Service) IsValid(tokenString string) bool {
	_, err := s.Verify(tokenString)
	return err == nil
}

// IsRefreshToken reports whether the token verifies and is a refresh token.
func (s *Service) IsRefreshToken(tokenString string) bool {
	claims, err := s.Verify(tokenString)
	return err == nil && claims.Type == TypeRefresh
}

func (s *Service) IsAccessToken(tokenString string) bool {
	claims, err := s.Verify(tokenString)
	return err == nil && claims.Type == TypeAccess
}

// RemainingLifetime is the time left until claims expire, never negative.
func (s *Service) RemainingLifetime(claims *Claims) time.Duration {
	if claims == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Sub(s.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
