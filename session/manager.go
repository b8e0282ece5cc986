package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xanderlab/labauth/config"
	"github.com/xanderlab/labauth/services/credentials"
	"github.com/xanderlab/labauth/services/jwt"
	"github.com/xanderlab/labauth/services/logging"
	"github.com/xanderlab/labauth/services/revocation"
	"github.com/xanderlab/labauth/services/users"
	"go.uber.org/zap"
)

const bearerPrefix = "Bearer "

// UserRepository resolves and creates users. Lookups that find nothing
// return (nil, nil).
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*users.User, error)
	FindByUsername(ctx context.Context, username string) (*users.User, error)
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	FindByUsernameOrEmail(ctx context.Context, account string) (*users.User, error)
	Insert(ctx context.Context, user *users.User) error
}

type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type PasswordService interface {
	VerifyPassword(hashedPassword, password string) error
	NewPlaceholderHash() (string, error)
}

// Manager owns the login, refresh and logout lifecycle of bearer tokens.
type Manager struct {
	appName       string
	defaultRole   string
	avatarBaseURL string

	tokens      *jwt.Service
	store       credentials.Store
	revocations *revocation.Service
	users       UserRepository
	passwords   PasswordService
	mailer      MailSender
	logger      *logging.Service
}

func NewManager(
	cfg *config.Config,
	tokens *jwt.Service,
	store credentials.Store,
	revocations *revocation.Service,
	userRepo UserRepository,
	passwords PasswordService,
	mailer MailSender,
	logger *logging.Service,
) *Manager {
	return &Manager{
		appName:       cfg.App.Name,
		defaultRole:   cfg.Auth.DefaultRole,
		avatarBaseURL: cfg.Auth.AvatarBaseURL,
		tokens:        tokens,
		store:         store,
		revocations:   revocations,
		users:         userRepo,
		passwords:     passwords,
		mailer:        mailer,
		logger:        logger,
	}
}

// SendCode stores a fresh login code for email and mails it. A failed
// delivery leaves the stored code in place until it expires.
func (m *Manager) SendCode(ctx context.Context, email string) error {
	req := SendCodeRequest{Email: strings.TrimSpace(email)}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}

	code, err := newCode()
	if err != nil {
		return m.internal("failed to generate login code", err)
	}

	if err := m.store.SetWithTTL(ctx, credentials.NamespaceCode, req.Email, code, CodeTTL); err != nil {
		return m.internal("failed to store login code", err)
	}

	if err := m.mailer.Send(ctx, req.Email, codeMailSubject(m.appName), codeMailBody(code)); err != nil {
		m.logger.Error("failed to deliver login code", zap.String("email", req.Email), zap.Error(err))
		return newError(ErrMailDeliveryFailed, err)
	}

	m.logger.Info("login code sent", zap.String("email", req.Email))
	return nil
}

func (m *Manager) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	req.Account = strings.TrimSpace(req.Account)
	if err := req.Validate(); err != nil {
		return nil, validationError(err)
	}

	var (
		user *users.User
		err  error
	)
	switch req.loginType() {
	case LoginTypeCode:
		user, err = m.loginWithCode(ctx, req.Account, req.Code)
	default:
		user, err = m.loginWithPassword(ctx, req.Account, req.Password)
	}
	if err != nil {
		return nil, err
	}

	if !user.Enabled() {
		m.logger.Warn("login rejected for disabled account", zap.Uint("user_id", user.ID))
		return nil, ErrAccountDisabled
	}

	pair, err := m.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	m.logger.Info("user logged in", zap.Uint("user_id", user.ID), zap.String("type", string(req.loginType())))
	return pair, nil
}

func (m *Manager) loginWithCode(ctx context.Context, email, code string) (*users.User, error) {
	stored, found, err := m.store.Get(ctx, credentials.NamespaceCode, email)
	if err != nil {
		return nil, m.internal("failed to read login code", err)
	}
	if !found || subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return nil, ErrInvalidCredentials
	}

	if err := m.store.Delete(ctx, credentials.NamespaceCode, email); err != nil {
		return nil, m.internal("failed to consume login code", err)
	}

	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, m.internal("failed to look up user", err)
	}
	if user != nil {
		return user, nil
	}

	return m.provision(ctx, email)
}

// provisionAttempts bounds how many usernames provision tries before giving
// up.
const provisionAttempts = 3

// provision creates an enabled account for an email that has just proven
// ownership with a login code. The stored password is a random placeholder
// hash, so the account can only sign in by code until a password is set.
// The username is the email unless another account already holds it, in
// which case a suffixed nickname is used instead.
func (m *Manager) provision(ctx context.Context, email string) (*users.User, error) {
	placeholder, err := m.passwords.NewPlaceholderHash()
	if err != nil {
		return nil, m.internal("failed to create placeholder password", err)
	}

	nickname := email
	if at := strings.Index(email, "@"); at > 0 {
		nickname = email[:at]
	}

	username := email
	for attempt := 1; ; attempt++ {
		user := &users.User{
			Username: username,
			Email:    email,
			Password: placeholder,
			Nickname: nickname,
			Avatar:   m.avatarBaseURL + "?seed=" + url.QueryEscape(email),
			Role:     m.defaultRole,
			Status:   users.StatusEnabled,
		}

		insertErr := m.users.Insert(ctx, user)
		if insertErr == nil {
			m.logger.Info("user provisioned from login code", zap.Uint("user_id", user.ID), zap.String("username", username))
			return user, nil
		}
		if !errors.Is(insertErr, users.ErrDuplicateUser) {
			return nil, m.internal("failed to create user", insertErr)
		}

		// A concurrent login may have created the account first.
		existing, err := m.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, m.internal("failed to look up user", err)
		}
		if existing != nil {
			return existing, nil
		}

		// The email is free, so the username belongs to another account.
		if attempt == provisionAttempts {
			return nil, m.internal("failed to create user", insertErr)
		}
		m.logger.Warn("username taken during provisioning, deriving another",
			zap.String("email", email), zap.String("username", username))

		suffix, err := newCode()
		if err != nil {
			return nil, m.internal("failed to derive username", err)
		}
		username = nickname + "-" + suffix
	}
}

func (m *Manager) loginWithPassword(ctx context.Context, account, password string) (*users.User, error) {
	user, err := m.users.FindByUsernameOrEmail(ctx, account)
	if err != nil {
		return nil, m.internal("failed to look up user", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := m.passwords.VerifyPassword(user.Password, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Refresh trades a refresh token for a new pair. Each refresh token can be
// exchanged once; a concurrent second exchange loses and sees TokenRevoked.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := m.tokens.Verify(refreshToken)
	if err != nil || claims.Type != jwt.TypeRefresh {
		return nil, ErrInvalidToken
	}

	revoked, err := m.revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return nil, m.internal("failed to check token revocation", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := m.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, m.internal("failed to look up user", err)
	}
	if !user.Enabled() {
		return nil, ErrAccountDisabled
	}

	rotated, err := m.revocations.RevokeOnce(ctx, refreshToken, m.tokens.RemainingLifetime(claims))
	if err != nil {
		return nil, m.internal("failed to revoke refresh token", err)
	}
	if !rotated {
		m.logger.Warn("refresh token reused", zap.Uint("user_id", user.ID))
		return nil, ErrTokenRevoked
	}

	return m.issue(ctx, user)
}

// Logout blacklists refreshToken for the full refresh lifetime. It never
// fails; storage errors are logged.
func (m *Manager) Logout(ctx context.Context, refreshToken string) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken != "" {
		if err := m.revocations.Revoke(ctx, refreshToken, m.tokens.RefreshExpiry()); err != nil {
			m.logger.Error("failed to blacklist refresh token on logout", zap.Error(err))
		}
	}
	m.logger.Info("user logged out")
}

// GetCurrentUser resolves the user behind an Authorization header value.
func (m *Manager) GetCurrentUser(ctx context.Context, header string) (*UserInfo, error) {
	token, ok := ParseBearer(header)
	if !ok {
		return nil, ErrMalformedHeader
	}

	claims, err := m.tokens.Verify(token)
	if err != nil || claims.Type != jwt.TypeAccess {
		return nil, ErrInvalidToken
	}

	user, err := m.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, m.internal("failed to look up user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	info := NewUserInfo(user)
	return &info, nil
}

// ValidateAccessToken reports whether token verifies as an access token.
func (m *Manager) ValidateAccessToken(token string) bool {
	return m.tokens.IsAccessToken(token)
}

// VerifyAccessToken returns the claims of a valid access token.
func (m *Manager) VerifyAccessToken(token string) (*jwt.Claims, error) {
	claims, err := m.tokens.Verify(token)
	if err != nil || claims.Type != jwt.TypeAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsSessionActive reports whether userID holds an unexpired active marker.
func (m *Manager) IsSessionActive(ctx context.Context, userID string) (bool, error) {
	return m.store.Exists(ctx, credentials.NamespaceActiveToken, userID)
}

func (m *Manager) issue(ctx context.Context, user *users.User) (*TokenPair, error) {
	subject := strconv.FormatUint(uint64(user.ID), 10)

	accessToken, err := m.tokens.IssueAccess(subject, map[string]any{jwt.ClaimRole: user.Role})
	if err != nil {
		return nil, m.mintError(err)
	}
	refreshToken, err := m.tokens.IssueRefresh(subject)
	if err != nil {
		return nil, m.mintError(err)
	}

	if err := m.store.SetWithTTL(ctx, credentials.NamespaceActiveToken, subject, accessToken, m.tokens.AccessExpiry()); err != nil {
		return nil, m.internal("failed to record active session", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(m.tokens.AccessExpiry() / time.Second),
		UserInfo:     NewUserInfo(user),
	}, nil
}

func (m *Manager) mintError(err error) error {
	m.logger.Error("failed to mint token", zap.Error(err))
	if errors.Is(err, jwt.ErrSigningKeyMisconfigured) {
		return newError(ErrSigningKeyMisconfigured, err)
	}
	return newError(ErrInternal, err)
}

func (m *Manager) internal(msg string, err error) error {
	m.logger.Error(msg, zap.Error(err))
	return newError(ErrInternal, err)
}

// ParseBearer extracts the token from an Authorization header value. Only
// the exact "Bearer " prefix is accepted.
func ParseBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
