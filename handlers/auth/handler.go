package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xanderlab/labauth/handlers/response"
	"github.com/xanderlab/labauth/openapi"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/session"
)

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type HealthStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Handler exposes the session manager over HTTP.
type Handler struct {
	manager *session.Manager
	appName string
	logger  *logging.Service
	now     func() time.Time
}

func NewHandler(manager *session.Manager, appName string, logger *logging.Service) *Handler {
	return &Handler{
		manager: manager,
		appName: appName,
		logger:  logger,
		now:     time.Now,
	}
}

// Register mounts the auth routes. limiter may be nil; it guards only the
// endpoints that send mail or check credentials.
func (h *Handler) Register(e *echo.Echo, limiter echo.MiddlewareFunc, doc *openapi.Document) {
	var limited []echo.MiddlewareFunc
	if limiter != nil {
		limited = append(limited, limiter)
	}

	g := e.Group("/api/auth")
	g.GET("/code", h.SendCode, limited...)
	g.POST("/login", h.Login, limited...)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me)
	g.GET("/validate", h.Validate)
	e.GET("/health", h.Health)

	if doc != nil {
		describe(doc)
	}
}

func (h *Handler) SendCode(c echo.Context) error {
	if err := h.manager.SendCode(c.Request().Context(), c.QueryParam("email")); err != nil {
		return err
	}
	return response.OK(c, nil)
}

func (h *Handler) Login(c echo.Context) error {
	var req session.LoginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	pair, err := h.manager.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.OK(c, pair)
}

func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	pair, err := h.manager.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return response.OK(c, pair)
}

// Logout always succeeds; the body, and the token in it, are optional.
func (h *Handler) Logout(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Debug("ignoring unreadable logout body")
	}

	h.manager.Logout(c.Request().Context(), req.RefreshToken)
	return response.OK(c, nil)
}

func (h *Handler) Me(c echo.Context) error {
	info, err := h.manager.GetCurrentUser(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}
	return response.OK(c, info)
}

// Validate answers whether the caller's bearer token is a usable access
// token. It never fails.
func (h *Handler) Validate(c echo.Context) error {
	token, ok := session.ParseBearer(c.Request().Header.Get(echo.HeaderAuthorization))
	return response.OK(c, ok && h.manager.ValidateAccessToken(token))
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthStatus{
		Status:    "UP",
		Message:   h.appName + " is running",
		Timestamp: h.now().UnixMilli(),
	})
}
