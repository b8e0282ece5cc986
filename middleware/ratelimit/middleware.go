package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}

	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)

			var (
				count     int
				resetTime time.Time
				err       error
			)
			if cfg.CountMode == config.CountAll {
				count, resetTime, err = cfg.Store.Increment(ctx, key, cfg.Period)
				count--
			} else {
				count, resetTime, err = cfg.Store.Peek(ctx, key)
			}
			if err != nil {
				// Fail open: an unavailable counter must not lock users out.
				cfg.Logger.Warn("rate limit store unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			if resetTime.IsZero() {
				resetTime = time.Now().Add(cfg.Period)
			}

			if count >= cfg.Rate {
				setHeaders(c, cfg.Rate, 0, resetTime)
				cfg.Logger.Warn("rate limit reached", zap.String("key", key), zap.Int("limit", cfg.Rate))
				return cfg.OnLimitReached(c)
			}

			setHeaders(c, cfg.Rate, max(cfg.Rate-count-1, 0), resetTime)

			err = next(c)

			if cfg.CountMode != config.CountAll && shouldCount(cfg.CountMode, responseStatus(c, err)) {
				if _, _, incErr := cfg.Store.Increment(ctx, key, cfg.Period); incErr != nil {
					cfg.Logger.Warn("rate limit store unavailable", zap.String("key", key), zap.Error(incErr))
				}
			}

			return err
		}
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

// responseStatus is the status the request will end with, including errors
// the HTTP error handler has not rendered yet.
func responseStatus(c echo.Context, err error) int {
	if c.Response().Committed {
		return c.Response().Status
	}
	if err == nil {
		return http.StatusOK
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	if sc, ok := err.(interface{ StatusCode() int }); ok {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

func shouldCount(mode config.CountingMode, status int) bool {
	switch mode {
	case config.CountFailures:
		return status >= 400
	case config.CountSuccess:
		return status < 400
	default:
		return true
	}
}

// DefaultKeyGenerator keys windows by client IP and route, so each limited
// endpoint has its own budget.
func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	route := c.Path()
	if route == "" {
		route = c.Request().URL.Path
	}

	return "rate_limit:" + realIP + ":" + route
}

func DefaultOnLimitReached(c echo.Context) error {
	return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
}
