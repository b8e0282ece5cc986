// Package identity carries the authenticated user of a single request.
//
// A Scope is allocated by the authentication gate for every request and
// cleared when the request finishes, so a user id can never be observed by a
// later request that reuses the same goroutine or pooled context.
package identity

import (
	"context"
	"sync"
)

type Scope struct {
	mu     sync.RWMutex
	userID string
	set    bool
}

func New() *Scope {
	return &Scope{}
}

func (s *Scope) Set(userID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.userID = userID
	s.set = userID != ""
	s.mu.Unlock()
}

// Get returns the user id and whether one is set.
func (s *Scope) Get() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.set
}

func (s *Scope) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.userID = ""
	s.set = false
	s.mu.Unlock()
}

type contextKey struct{}

func WithContext(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, scope)
}

func FromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	scope, ok := ctx.Value(contextKey{}).(*Scope)
	return scope, ok && scope != nil
}

// UserID is shorthand for FromContext followed by Get.
func UserID(ctx context.Context) (string, bool) {
	scope, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return scope.Get()
}
