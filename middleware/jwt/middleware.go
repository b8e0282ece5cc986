package jwt

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xanderlab/labauth/identity"
	"github.com/xanderlab/labauth/services/jwt"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/session"
	"go.uber.org/zap"
)

const (
	UserIDKey = "_jwt_user_id"
	ClaimsKey = "_jwt_claims"
)

// Authenticator is the part of the session manager the gate relies on.
type Authenticator interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
	IsSessionActive(ctx context.Context, userID string) (bool, error)
}

type Config struct {
	Authenticator Authenticator
	Logger        *logging.Service
	Skipper       middleware.Skipper
}

// Gate resolves the caller of every request without ever rejecting it. A
// valid access token whose subject still has an active session establishes
// the request identity; anything else proceeds anonymously. The identity is
// cleared when the request completes, however it completes.
func Gate(cfg Config) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scope := identity.New()
			defer scope.Clear()

			req := c.Request()
			c.SetRequest(req.WithContext(identity.WithContext(req.Context(), scope)))

			if req.Method == http.MethodOptions || cfg.Skipper(c) {
				return next(c)
			}

			authenticate(c, cfg, scope)
			return next(c)
		}
	}
}

func authenticate(c echo.Context, cfg Config, scope *identity.Scope) {
	token, ok := session.ParseBearer(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return
	}

	claims, err := cfg.Authenticator.VerifyAccessToken(token)
	if err != nil {
		cfg.Logger.Debug("bearer token rejected", zap.Error(err))
		return
	}

	active, err := cfg.Authenticator.IsSessionActive(c.Request().Context(), claims.Subject)
	if err != nil {
		cfg.Logger.Warn("failed to check active session",
			zap.String("user_id", claims.Subject),
			zap.Error(err))
		return
	}
	if !active {
		return
	}

	scope.Set(claims.Subject)
	c.Set(UserIDKey, claims.Subject)
	c.Set(ClaimsKey, claims)
}

// RequireIdentity rejects requests the gate could not authenticate. Routes
// opt in to it explicitly.
func RequireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := GetUserID(c); !ok {
				return session.ErrInvalidToken
			}
			return next(c)
		}
	}
}

func GetUserID(c echo.Context) (string, bool) {
	return identity.UserID(c.Request().Context())
}

func GetClaims(c echo.Context) *jwt.Claims {
	if claims, ok := c.Get(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}
