package session

import "errors"

// Kind classifies every failure a session operation can report.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidCredentials
	KindAccountDisabled
	KindInvalidToken
	KindTokenRevoked
	KindMalformedHeader
	KindUserNotFound
	KindMailDeliveryFailed
	KindSigningKeyMisconfigured
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindAccountDisabled:
		return "AccountDisabled"
	case KindInvalidToken:
		return "InvalidToken"
	case KindTokenRevoked:
		return "TokenRevoked"
	case KindMalformedHeader:
		return "MalformedHeader"
	case KindUserNotFound:
		return "UserNotFound"
	case KindMailDeliveryFailed:
		return "MailDeliveryFailed"
	case KindSigningKeyMisconfigured:
		return "SigningKeyMisconfigured"
	default:
		return "Internal"
	}
}

// Error is returned by every Manager operation. Message is safe to show to
// clients; Err holds the underlying cause and never is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTokenRevoked)
// works regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCredentials      = &Error{Kind: KindInvalidCredentials, Message: "invalid account or credentials"}
	ErrAccountDisabled         = &Error{Kind: KindAccountDisabled, Message: "account is disabled"}
	ErrInvalidToken            = &Error{Kind: KindInvalidToken, Message: "token is invalid or expired"}
	ErrTokenRevoked            = &Error{Kind: KindTokenRevoked, Message: "token has been revoked"}
	ErrMalformedHeader         = &Error{Kind: KindMalformedHeader, Message: "authorization header is missing or malformed"}
	ErrUserNotFound            = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrMailDeliveryFailed      = &Error{Kind: KindMailDeliveryFailed, Message: "failed to send verification code"}
	ErrSigningKeyMisconfigured = &Error{Kind: KindSigningKeyMisconfigured, Message: "token signing is misconfigured"}
	ErrInternal                = &Error{Kind: KindInternal, Message: "internal error"}
)

func newError(base *Error, cause error) *Error {
	return &Error{Kind: base.Kind, Message: base.Message, Err: cause}
}

func validationError(cause error) *Error {
	return &Error{Kind: KindValidation, Message: cause.Error(), Err: cause}
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var sessionErr *Error
	if errors.As(err, &sessionErr) {
		return sessionErr.Kind
	}
	return KindInternal
}
