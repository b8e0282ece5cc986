package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/session"
	"go.uber.org/zap"
)

// Envelope is the body of every API response. Code is 200 on success and a
// stable application code otherwise.
type Envelope struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Application codes returned for session failures.
const (
	CodeInvalidCredentials      = 1001
	CodeAccountDisabled         = 1002
	CodeInvalidToken            = 1003
	CodeTokenRevoked            = 1004
	CodeMalformedHeader         = 1005
	CodeUserNotFound            = 1006
	CodeMailDeliveryFailed      = 1007
	CodeSigningKeyMisconfigured = 1008
)

const internalMessage = "internal server error"

func OK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

// statusFor maps a session error kind to its HTTP status and application code.
func statusFor(kind session.Kind) (int, int) {
	switch kind {
	case session.KindInvalidCredentials:
		return http.StatusBadRequest, CodeInvalidCredentials
	case session.KindAccountDisabled:
		return http.StatusForbidden, CodeAccountDisabled
	case session.KindInvalidToken:
		return http.StatusUnauthorized, CodeInvalidToken
	case session.KindTokenRevoked:
		return http.StatusUnauthorized, CodeTokenRevoked
	case session.KindMalformedHeader:
		return http.StatusUnauthorized, CodeMalformedHeader
	case session.KindUserNotFound:
		return http.StatusNotFound, CodeUserNotFound
	case session.KindMailDeliveryFailed:
		return http.StatusServiceUnavailable, CodeMailDeliveryFailed
	case session.KindSigningKeyMisconfigured:
		return http.StatusInternalServerError, CodeSigningKeyMisconfigured
	case session.KindValidation:
		return http.StatusUnprocessableEntity, http.StatusUnprocessableEntity
	case session.KindInternal:
		return http.StatusInternalServerError, http.StatusInternalServerError
	default:
		return http.StatusInternalServerError, http.StatusInternalServerError
	}
}

// FromError converts any handler error into a status and envelope. Internal
// causes never reach the client.
func FromError(err error) (int, Envelope) {
	var sessionErr *session.Error
	if errors.As(err, &sessionErr) {
		status, code := statusFor(sessionErr.Kind)
		message := sessionErr.Message
		if status == http.StatusInternalServerError {
			message = internalMessage
		}
		return status, Envelope{Code: code, Reason: sessionErr.Kind.String(), Message: message}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			message = m
		} else if httpErr.Message != nil {
			message = fmt.Sprint(httpErr.Message)
		}
		if httpErr.Code >= http.StatusInternalServerError {
			message = internalMessage
		}
		return httpErr.Code, Envelope{Code: httpErr.Code, Reason: http.StatusText(httpErr.Code), Message: message}
	}

	return http.StatusInternalServerError, Envelope{
		Code:    http.StatusInternalServerError,
		Reason:  session.KindInternal.String(),
		Message: internalMessage,
	}
}

// ErrorHandler renders every error as an Envelope, including routing and
// binding errors raised by echo itself.
func ErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := FromError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Error(err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error("failed to write error response", zap.Error(writeErr))
		}
	}
}
