package pluginhub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eshaffer321/pluginhub-go/internal/session"
	"github.com/eshaffer321/pluginhub-go/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTransport is a mock implementation of Transport
type MockTransport struct {
	mock.Mock
	sess *session.Session
}

func (m *MockTransport) Execute(ctx context.Context, req *transport.Request, result interface{}) error {
	args := m.Called(ctx, req, result)

	// If mock provides result data, unmarshal it
	if args.Get(0) != nil && result != nil {
		resultJSON := args.Get(0).(string)
		if err := json.Unmarshal([]byte(resultJSON), result); err != nil {
			return err
		}
	}

	return args.Error(1)
}

func (m *MockTransport) Session() *session.Session {
	return m.sess
}

// newTestClient returns a signed-in client over a MockTransport
func newTestClient(t *testing.T) (*Client, *MockTransport) {
	t.Helper()

	mockTransport := &MockTransport{sess: session.New(nil)}
	require.NoError(t, mockTransport.sess.SetToken("test-token"))

	client := &Client{
		transport: mockTransport,
		options:   &ClientOptions{},
		baseURL:   "https://api.test.com",
	}
	client.initServices()

	return client, mockTransport
}

// request matches a transport request by method and path
func request(method, path string) interface{} {
	return mock.MatchedBy(func(r *transport.Request) bool {
		return r.Method == method && r.Path == path
	})
}

type rejectingLimiter struct{}

func (rejectingLimiter) Wait(ctx context.Context) error {
	return context.DeadlineExceeded
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.NotNil(t, client.httpClient.Jar)
	assert.False(t, client.IsAuthenticated())
	assert.NotNil(t, client.Auth)
	assert.NotNil(t, client.Plugins)
	assert.NotNil(t, client.Subscriptions)
	assert.NotNil(t, client.Affiliates)
	assert.NotNil(t, client.Chat)
	assert.False(t, client.Chat.Enabled())
}

func TestNewClientWithToken(t *testing.T) {
	client, err := NewClientWithToken("abc")
	require.NoError(t, err)

	token, ok := client.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	require.NoError(t, client.ClearToken())
	assert.False(t, client.IsAuthenticated())
}

func TestNewClient_SessionFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	first, err := NewClient(&ClientOptions{SessionFile: path})
	require.NoError(t, err)
	require.NoError(t, first.SetToken("persisted"))

	second, err := NewClient(&ClientOptions{SessionFile: path})
	require.NoError(t, err)
	token, ok := second.Token()
	assert.True(t, ok)
	assert.Equal(t, "persisted", token)
}

func TestNewClient_LeavesCallerHTTPClientAlone(t *testing.T) {
	custom := &http.Client{}

	client, err := NewClient(&ClientOptions{HTTPClient: custom, Timeout: 5 * time.Second})
	require.NoError(t, err)

	assert.Nil(t, custom.Jar)
	assert.Zero(t, custom.Timeout)
	assert.NotSame(t, custom, client.httpClient)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.NotNil(t, client.httpClient.Jar)
}

func TestClient_RateLimiterError(t *testing.T) {
	client, mockTransport := newTestClient(t)
	client.options.RateLimiter = rejectingLimiter{}

	_, err := client.Plugins.Get(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	mockTransport.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

// TestClient_RefreshesExpiredToken runs a login, an expired-token 401 and
// the cookie-based refresh against a real HTTP server.
func TestClient_RefreshesExpiredToken(t *testing.T) {
	var refreshes int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/", HttpOnly: true})
		_, _ = w.Write([]byte(`{"success":true,"data":{"accessToken":"stale","user":{"_id":"u1","email":"ada@example.com"}}}`))
	})
	mux.HandleFunc("/api/auth/generaterefreshtoken", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		if c, err := r.Cookie("refreshToken"); err != nil || c.Value != "r1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"no refresh token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"accessToken":"fresh"}}`))
	})
	mux.HandleFunc("/api/plugin/getplugin/p1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"jwt expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"p1","name":"Glow"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(&ClientOptions{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)

	_, err = client.Auth.Login(context.Background(), "ada@example.com", "hunter22")
	require.NoError(t, err)

	plugin, err := client.Plugins.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Glow", plugin.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))

	token, _ := client.Token()
	assert.Equal(t, "fresh", token)
}

func TestClient_RefreshFailureKeepsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/generaterefreshtoken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/api/subscription/current", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(&ClientOptions{BaseURL: srv.URL + "/api", Token: "old"})
	require.NoError(t, err)

	_, err = client.Subscriptions.Current(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRefreshFailed))
	assert.True(t, IsAuthError(err))

	var refreshErr *RefreshError
	assert.True(t, errors.As(err, &refreshErr))

	token, ok := client.Token()
	assert.True(t, ok)
	assert.Equal(t, "old", token)
}

func TestClient_TokenClaims(t *testing.T) {
	// {"sub":"u1","email":"ada@example.com","exp":4102444800}
	const token = "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." +
		"eyJzdWIiOiJ1MSIsImVtYWlsIjoiYWRhQGV4YW1wbGUuY29tIiwiZXhwIjo0MTAyNDQ0ODAwfQ." +
		"c2lnbmF0dXJl"

	client, err := NewClientWithToken(token)
	require.NoError(t, err)

	claims, err := client.TokenClaims()
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsAuthError(ErrNotAuthenticated))
	assert.True(t, IsAuthError(&Error{Code: "UNAUTHORIZED", StatusCode: 401, Err: ErrUnauthorized}))
	assert.False(t, IsAuthError(ErrNotFound))

	assert.True(t, IsRetryable(&Error{Code: "SERVER_ERROR", StatusCode: 502, Err: ErrServerError}))
	assert.True(t, IsRetryable(&Error{Code: "RATE_LIMITED", StatusCode: 429}))
	assert.False(t, IsRetryable(&Error{Code: "FORBIDDEN", StatusCode: 403, Err: ErrForbidden}))
	assert.False(t, IsRetryable(&ValidationError{Field: "x"}))
	assert.True(t, errors.Is(&ValidationError{Field: "x"}, ErrInvalidRequest))
}
