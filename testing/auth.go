package e2etesting

import (
	"context"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xanderlab/labauth/services/auth"
	"github.com/xanderlab/labauth/services/users"
	"github.com/xanderlab/labauth/session"
	"github.com/xanderlab/labauth/testutils"
)

var loginCodePattern = regexp.MustCompile(`\b\d{6}\b`)

type AuthHelper struct {
	HTTPClient *HTTPClient
	Users      *users.Repository
	AuthSvc    *auth.Service
	Mail       *testutils.MailRecorder
}

type TestUser struct {
	ID       uint
	Username string
	Email    string
	Password string
	Role     string
	Disabled bool
}

func NewAuthHelper(httpClient *HTTPClient, repo *users.Repository, authSvc *auth.Service, mail *testutils.MailRecorder) *AuthHelper {
	return &AuthHelper{
		HTTPClient: httpClient,
		Users:      repo,
		AuthSvc:    authSvc,
		Mail:       mail,
	}
}

// CreateTestUser inserts user directly and fills in its ID.
func (h *AuthHelper) CreateTestUser(t *testing.T, user *TestUser) {
	t.Helper()

	hashedPassword, err := h.AuthSvc.HashPassword(user.Password)
	require.NoError(t, err, "failed to hash test user password")

	role := user.Role
	if role == "" {
		role = "USER"
	}
	status := users.StatusEnabled
	if user.Disabled {
		status = users.StatusDisabled
	}

	record := &users.User{
		Username: user.Username,
		Email:    user.Email,
		Password: hashedPassword,
		Nickname: user.Username,
		Role:     role,
		Status:   status,
	}
	require.NoError(t, h.Users.Insert(context.Background(), record), "failed to create test user")

	user.ID = record.ID
}

func (h *AuthHelper) RequestCode(email string) (*Response, error) {
	return h.HTTPClient.Get("/api/auth/code?email=" + url.QueryEscape(email))
}

// LastCode returns the login code from the most recent mail sent to email.
func (h *AuthHelper) LastCode(t *testing.T, email string) string {
	t.Helper()

	sent, ok := h.Mail.Last()
	require.True(t, ok, "no mail was sent")
	require.Equal(t, email, sent.To, "last mail went to a different address")

	code := loginCodePattern.FindString(sent.Body)
	require.NotEmpty(t, code, "mail body has no login code: %s", sent.Body)
	return code
}

func (h *AuthHelper) LoginWithPassword(account, password string) (*Response, error) {
	return h.HTTPClient.Post("/api/auth/login", session.LoginRequest{
		Type:     string(session.LoginTypePassword),
		Account:  account,
		Password: password,
	})
}

func (h *AuthHelper) LoginWithCode(email, code string) (*Response, error) {
	return h.HTTPClient.Post("/api/auth/login", session.LoginRequest{
		Type:    string(session.LoginTypeCode),
		Account: email,
		Code:    code,
	})
}

func (h *AuthHelper) Refresh(refreshToken string) (*Response, error) {
	return h.HTTPClient.Post("/api/auth/refresh", map[string]string{"refreshToken": refreshToken})
}

func (h *AuthHelper) Logout(refreshToken string) (*Response, error) {
	return h.HTTPClient.Post("/api/auth/logout", map[string]string{"refreshToken": refreshToken})
}

func (h *AuthHelper) Me(accessToken string) (*Response, error) {
	return h.HTTPClient.GetWithToken("/api/auth/me", accessToken)
}

func (h *AuthHelper) Validate(accessToken string) (*Response, error) {
	return h.HTTPClient.GetWithToken("/api/auth/validate", accessToken)
}

// MustLogin logs in with a password and returns the issued pair.
func (h *AuthHelper) MustLogin(t *testing.T, account, password string) session.TokenPair {
	t.Helper()

	resp, err := h.LoginWithPassword(account, password)
	require.NoError(t, err)
	resp.AssertStatus(t, 200)

	var pair session.TokenPair
	resp.DecodeData(t, &pair)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

// MustLoginWithCode requests a code for email and logs in with it.
func (h *AuthHelper) MustLoginWithCode(t *testing.T, email string) session.TokenPair {
	t.Helper()

	resp, err := h.RequestCode(email)
	require.NoError(t, err)
	resp.AssertStatus(t, 200)

	resp, err = h.LoginWithCode(email, h.LastCode(t, email))
	require.NoError(t, err)
	resp.AssertStatus(t, 200)

	var pair session.TokenPair
	resp.DecodeData(t, &pair)
	return pair
}

func (h *AuthHelper) AssertUserExists(t *testing.T, email string) *users.User {
	t.Helper()

	user, err := h.Users.FindByEmail(context.Background(), email)
	require.NoError(t, err, "failed to look up user")
	require.NotNil(t, user, "user should exist")
	return user
}

func (h *AuthHelper) AssertUserNotExists(t *testing.T, email string) {
	t.Helper()

	user, err := h.Users.FindByEmail(context.Background(), email)
	require.NoError(t, err, "failed to look up user")
	require.Nil(t, user, "user should not exist")
}
