package auth

import (
	"net/http"

	"github.com/xanderlab/labauth/handlers/response"
	"github.com/xanderlab/labauth/openapi"
	"github.com/xanderlab/labauth/session"
)

const bearerScheme = "bearerAuth"

func describe(doc *openapi.Document) {
	doc.Tag("auth", "Login, token refresh and logout").
		BearerAuth(bearerScheme, "Access token returned by login or refresh")

	doc.Operation(http.MethodGet, "/api/auth/code").
		Summary("Email a one-time login code").
		Tags("auth").
		QueryParam("email", "Address to send the code to", true).
		Response(http.StatusOK, response.Envelope{}, "Code sent").
		Response(http.StatusUnprocessableEntity, response.Envelope{}, "Invalid email").
		Response(http.StatusServiceUnavailable, response.Envelope{}, "Mail delivery failed").
		Build()

	doc.Operation(http.MethodPost, "/api/auth/login").
		Summary("Log in with a password or a login code").
		Tags("auth").
		Body(session.LoginRequest{}, "Credentials", true).
		Response(http.StatusOK, session.TokenPair{}, "Token pair, wrapped in the response envelope").
		Response(http.StatusBadRequest, response.Envelope{}, "Invalid account or credentials").
		Response(http.StatusForbidden, response.Envelope{}, "Account disabled").
		Build()

	doc.Operation(http.MethodPost, "/api/auth/refresh").
		Summary("Exchange a refresh token for a new token pair").
		Tags("auth").
		Body(RefreshRequest{}, "Refresh token", true).
		Response(http.StatusOK, session.TokenPair{}, "Token pair, wrapped in the response envelope").
		Response(http.StatusUnauthorized, response.Envelope{}, "Token invalid, expired or revoked").
		Build()

	doc.Operation(http.MethodPost, "/api/auth/logout").
		Summary("Revoke a refresh token").
		Tags("auth").
		Body(RefreshRequest{}, "Refresh token to revoke", false).
		Response(http.StatusOK, response.Envelope{}, "Logged out").
		Build()

	doc.Operation(http.MethodGet, "/api/auth/me").
		Summary("Current user").
		Tags("auth").
		Security(bearerScheme).
		Response(http.StatusOK, session.UserInfo{}, "User profile, wrapped in the response envelope").
		Response(http.StatusUnauthorized, response.Envelope{}, "Missing or invalid access token").
		Build()

	doc.Operation(http.MethodGet, "/api/auth/validate").
		Summary("Check an access token").
		Tags("auth").
		Security(bearerScheme).
		Response(http.StatusOK, response.Envelope{}, "data is true when the token is a valid access token").
		Build()

	doc.Operation(http.MethodGet, "/health").
		Summary("Liveness probe").
		Response(http.StatusOK, HealthStatus{}, "Service is up").
		Build()
}
