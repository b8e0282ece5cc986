package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/handlers/response"
	jwtmiddleware "github.com/xanderlab/labauth/middleware/jwt"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/session"
	"go.uber.org/zap"
)

// Paths that are not worth a request log line.
var quietPaths = []string{"/health"}

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service
}

// New builds the echo instance with the global middleware chain. The order
// is CORS, authentication gate, request logger, panic recovery: preflight
// requests are answered before anything else, and the logger runs inside
// the gate so it can see the caller.
func New(cfg *config.Config, logger *logging.Service, manager *session.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = response.ErrorHandler(logger)

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSAllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderAccept},
		ExposeHeaders: []string{
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
	}))
	e.Use(jwtmiddleware.NewGate(manager, logger))
	e.Use(logging.RequestLogger(logger.Named("http"), quietPaths...))
	e.Use(middleware.Recover())

	return &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}
}

// Start binds the listener synchronously, so address errors fail startup,
// and serves in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.echo.Listener = ln

	s.logger.Info("starting server", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped unexpectedly", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the bound listener address, or empty before Start.
func (s *Server) Addr() string {
	if s.echo.Listener == nil {
		return ""
	}
	return s.echo.Listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.Server.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("shutting down server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}
