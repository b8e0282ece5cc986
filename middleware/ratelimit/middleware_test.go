package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xanderlab/labauth/config"
)

func fixedKey(c echo.Context) string {
	return "test-key"
}

func run(t *testing.T, mw echo.MiddlewareFunc, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	err := mw(handler)(e.NewContext(req, rec))
	return rec, err
}

func ok(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func assertLimited(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}

func TestMiddleware_LimitsAfterRate(t *testing.T) {
	mw := Middleware(&Config{Store: NewMemoryStore(), Rate: 2, Period: time.Minute, KeyGenerator: fixedKey})

	for i := 0; i < 2; i++ {
		rec, err := run(t, mw, ok)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, strconv.Itoa(1-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec, err := run(t, mw, ok)
	assertLimited(t, err)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestMiddleware_Defaults(t *testing.T) {
	cfg := &Config{}
	mw := Middleware(cfg)

	assert.NotNil(t, cfg.Store)
	assert.Equal(t, 10, cfg.Rate)
	assert.Equal(t, time.Minute, cfg.Period)
	assert.Equal(t, config.CountAll, cfg.CountMode)
	assert.NotNil(t, cfg.KeyGenerator)
	assert.NotNil(t, cfg.OnLimitReached)

	rec, err := run(t, mw, ok)
	require.NoError(t, err)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestMiddleware_CountFailures(t *testing.T) {
	mw := Middleware(&Config{Store: NewMemoryStore(), Rate: 1, Period: time.Minute, CountMode: config.CountFailures, KeyGenerator: fixedKey})

	for i := 0; i < 3; i++ {
		_, err := run(t, mw, ok)
		require.NoError(t, err, "successes are not counted")
	}

	failing := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad")
	}
	_, err := run(t, mw, failing)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)

	_, err = run(t, mw, ok)
	assertLimited(t, err)
}

func TestMiddleware_CountSuccess(t *testing.T) {
	mw := Middleware(&Config{Store: NewMemoryStore(), Rate: 1, Period: time.Minute, CountMode: config.CountSuccess, KeyGenerator: fixedKey})

	failing := func(c echo.Context) error {
		return c.NoContent(http.StatusUnauthorized)
	}
	for i := 0; i < 3; i++ {
		_, err := run(t, mw, failing)
		require.NoError(t, err)
	}

	_, err := run(t, mw, ok)
	require.NoError(t, err)

	_, err = run(t, mw, ok)
	assertLimited(t, err)
}

type brokenStore struct{}

func (brokenStore) Increment(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}

func (brokenStore) Peek(context.Context, string) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}

func TestMiddleware_FailsOpen(t *testing.T) {
	mw := Middleware(&Config{Store: brokenStore{}, Rate: 1, KeyGenerator: fixedKey})

	for i := 0; i < 3; i++ {
		rec, err := run(t, mw, ok)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddleware_CustomLimitHandler(t *testing.T) {
	mw := Middleware(&Config{
		Store:        NewMemoryStore(),
		Rate:         1,
		KeyGenerator: fixedKey,
		OnLimitReached: func(c echo.Context) error {
			return c.String(http.StatusTooManyRequests, "slow down")
		},
	})

	_, err := run(t, mw, ok)
	require.NoError(t, err)

	rec, err := run(t, mw, ok)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "slow down", rec.Body.String())
}

func TestDefaultKeyGenerator(t *testing.T) {
	e := echo.New()

	t.Run("ip and route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set("X-Real-IP", "192.168.1.1")
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetPath("/api/auth/login")

		assert.Equal(t, "rate_limit:192.168.1.1:/api/auth/login", DefaultKeyGenerator(c))
	})

	t.Run("routes have separate budgets", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/code", nil)
		req.Header.Set("X-Real-IP", "192.168.1.1")
		c := e.NewContext(req, httptest.NewRecorder())

		assert.Equal(t, "rate_limit:192.168.1.1:/api/auth/code", DefaultKeyGenerator(c))
	})
}

func TestDefaultOnLimitReached(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assertLimited(t, DefaultOnLimitReached(c))
}
