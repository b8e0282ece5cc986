package session

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/xanderlab/labauth/services/users"
)

type LoginType string

const (
	LoginTypePassword LoginType = "password"
	LoginTypeCode     LoginType = "code"
)

const TokenTypeBearer = "Bearer"

type LoginRequest struct {
	Type     string `json:"type"`
	Account  string `json:"account"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// loginType resolves the requested flow; blank means password.
func (r LoginRequest) loginType() LoginType {
	switch t := strings.ToLower(strings.TrimSpace(r.Type)); t {
	case "":
		return LoginTypePassword
	default:
		return LoginType(t)
	}
}

func (r LoginRequest) Validate() error {
	loginType := r.loginType()
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type,
			validation.By(func(any) error {
				if loginType != LoginTypePassword && loginType != LoginTypeCode {
					return errors.New("must be either password or code")
				}
				return nil
			})),
		validation.Field(&r.Account, validation.Required, validation.Length(1, 255)),
	)
}

type SendCodeRequest struct {
	Email string `json:"email"`
}

func (r SendCodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
	)
}

// UserInfo is the public projection of a user. It never carries the
// password hash.
type UserInfo struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
}

func NewUserInfo(u *users.User) UserInfo {
	return UserInfo{
		Username: u.Username,
		Nickname: u.Nickname,
		Avatar:   u.Avatar,
		Role:     u.Role,
	}
}

type TokenPair struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	TokenType    string   `json:"tokenType"`
	ExpiresIn    int64    `json:"expiresIn"`
	UserInfo     UserInfo `json:"userInfo"`
}
