package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanderlab/labauth/identity"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*Service, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewWithLogger(zap.New(core)), recorded
}

func withIdentity(userID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scope := identity.New()
			scope.Set(userID)
			c.SetRequest(c.Request().WithContext(identity.WithContext(c.Request().Context(), scope)))
			return next(c)
		}
	}
}

func TestRequestLogger_Success(t *testing.T) {
	logger, recorded := newObservedLogger()

	e := echo.New()
	e.Use(withIdentity("42"))
	e.Use(RequestLogger(logger))
	e.GET("/api/auth/me", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer super-secret-token")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	logs := recorded.TakeAll()
	require.Len(t, logs, 1)
	entry := logs[0]
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/auth/me", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, "42", fields["user_id"])
	assert.Equal(t, "desktop", fields["device"])

	for _, value := range fields {
		if s, ok := value.(string); ok {
			assert.NotContains(t, s, "super-secret-token")
		}
	}
}

func TestRequestLogger_ClientAndServerErrors(t *testing.T) {
	logger, recorded := newObservedLogger()

	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/bad", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad")
	})
	e.GET("/boom", func(c echo.Context) error {
		return c.NoContent(http.StatusInternalServerError)
	})

	for _, path := range []string{"/bad", "/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	logs := recorded.TakeAll()
	require.Len(t, logs, 2)
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	assert.Equal(t, "client error", logs[0].Message)
	_, hasUser := logs[0].ContextMap()["user_id"]
	assert.False(t, hasUser)
	assert.Equal(t, zapcore.ErrorLevel, logs[1].Level)
}

func TestRequestLogger_SkipPaths(t *testing.T) {
	logger, recorded := newObservedLogger()

	e := echo.New()
	e.Use(RequestLogger(logger, "/api/auth/health"))
	e.GET("/api/auth/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, recorded.TakeAll())
}
