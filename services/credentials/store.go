// Package credentials holds the short-lived, TTL-bounded records behind the
// login flow: one-time codes, active session markers and the refresh token
// blacklist. Every operation touches a single key.
package credentials

import (
	"context"
	"errors"
	"time"
)

type Namespace string

const (
	NamespaceCode        Namespace = "code:"
	NamespaceActiveToken Namespace = "activeToken:"
	NamespaceBlacklist   Namespace = "blacklist:"
)

var (
	ErrInvalidTTL   = errors.New("credential TTL must be positive")
	ErrEmptyKey     = errors.New("credential key must not be empty")
	ErrUnknownStore = errors.New("unsupported credential store type")
)

// Store is a TTL key-value store. Expired entries behave as absent on every
// operation. Implementations are safe for concurrent use.
type Store interface {
	SetWithTTL(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) error
	Get(ctx context.Context, ns Namespace, key string) (string, bool, error)
	Exists(ctx context.Context, ns Namespace, key string) (bool, error)
	Delete(ctx context.Context, ns Namespace, key string) error
	// SetIfAbsent stores value only when no live entry exists for the key and
	// reports whether it did. Exactly one of several concurrent callers wins.
	SetIfAbsent(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) (bool, error)
}

// Sweeper is implemented by stores that reclaim expired entries themselves.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

func fullKey(prefix string, ns Namespace, key string) string {
	return prefix + string(ns) + key
}

func checkEntry(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
