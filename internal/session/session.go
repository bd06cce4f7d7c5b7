// Package session holds the access token of one API client.
//
// The token lives in a Store under a fixed key; its absence means the
// client is unauthenticated. The refresh cookie is saved in the same
// Store by CookieJar. Nothing in this package renews the token:
// renewal is reactive and owned by the transport's refresh path.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// TokenKey is the storage key of the access token
	TokenKey = "accessToken"

	// DeviceKey is the storage key of the client's device id
	DeviceKey = "deviceUuid"
)

// Session is the single source of truth for a client's access token
type Session struct {
	store Store
	mu    sync.Mutex

	jarOnce sync.Once
	jar     *CookieJar
	jarErr  error
}

// New creates a session over store. A nil store means in-memory storage.
func New(store Store) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Session{store: store}
}

// Token returns the stored access token. Storage read errors are treated
// as "no token".
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok, err := s.store.Get(TokenKey)
	if err != nil || !ok || token == "" {
		return "", false
	}
	return token, true
}

// SetToken persists token, overwriting any previous one
func (s *Session) SetToken(token string) error {
	if token == "" {
		return errors.New("empty access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(TokenKey, token); err != nil {
		return errors.Wrap(err, "failed to store access token")
	}
	return nil
}

// ClearToken erases the stored token
func (s *Session) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(TokenKey); err != nil {
		return errors.Wrap(err, "failed to clear access token")
	}
	return nil
}

// CookieJar returns the jar holding the refresh cookie, created on first
// use from the cookies saved in the session's store
func (s *Session) CookieJar() (*CookieJar, error) {
	s.jarOnce.Do(func() {
		s.jar, s.jarErr = NewCookieJar(s.store)
	})
	return s.jar, s.jarErr
}

// ClearCookies drops the saved cookies, refresh cookie included
func (s *Session) ClearCookies() error {
	jar, _ := s.CookieJar()
	if jar == nil {
		return nil
	}
	return jar.Clear()
}

// IsAuthenticated reports whether a token is stored
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// DeviceID returns a stable id for this client, generating and storing
// one on first use.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok, err := s.store.Get(DeviceKey); err == nil && ok && id != "" {
		return id
	}

	id := uuid.New().String()
	_ = s.store.Set(DeviceKey, id)
	return id
}

// Claims is the informational payload of an access token
type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the token's exp claim is in the past. A token
// without exp never expires.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Claims decodes the stored token without verifying its signature.
// The result is for display only and never drives renewal.
func (s *Session) Claims() (*Claims, error) {
	token, ok := s.Token()
	if !ok {
		return nil, errors.New("no access token")
	}
	return ParseClaims(token)
}

// ParseClaims decodes an access token's payload without verification
func ParseClaims(token string) (*Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, errors.Wrap(err, "failed to decode access token")
	}

	claims := &Claims{}
	if sub, err := mc.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if email, ok := mc["email"].(string); ok {
		claims.Email = email
	}
	if role, ok := mc["role"].(string); ok {
		claims.Role = role
	}
	if claims.Subject == "" {
		if id, ok := mc["id"].(string); ok {
			claims.Subject = id
		}
	}
	return claims, nil
}
