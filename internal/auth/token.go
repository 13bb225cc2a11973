package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionToken is the client's view of its access token. The client
// cannot verify the signature; it only reads the expiry to decide whether
// the session counts as authenticated.
type SessionToken struct {
	mu   sync.RWMutex
	raw  string
	now  func() time.Time
	skew time.Duration
}

// NewSessionToken wraps a raw token string. An empty string is a
// signed-out session.
func NewSessionToken(raw string) *SessionToken {
	return &SessionToken{raw: raw, now: time.Now, skew: 30 * time.Second}
}

// Token returns the raw bearer token
func (t *SessionToken) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.raw
}

// Set replaces the token, as after login or logout
func (t *SessionToken) Set(raw string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.raw = raw
}

// Authenticated reports whether a token is present and not about to expire
func (t *SessionToken) Authenticated() bool {
	claims, ok := t.Claims()
	if !ok {
		return false
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return t.now().Add(t.skew).Before(claims.ExpiresAt.Time)
}

// Claims decodes the token payload without verifying the signature
func (t *SessionToken) Claims() (*Claims, bool) {
	raw := t.Token()
	if raw == "" {
		return nil, false
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, false
	}
	return claims, true
}
