package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/eshaffer321/pluginhub-go/internal/session"
	"github.com/eshaffer321/pluginhub-go/internal/types"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

const (
	// RefreshEndpoint mints a new access token from the refresh cookie
	RefreshEndpoint = "/auth/generaterefreshtoken"

	authHeaderKey   = "Authorization"
	deviceHeaderKey = "X-Device-Id"
	contentType     = "application/json"
)

// AuthPolicy selects how a request reacts to a 401
type AuthPolicy int

const (
	// AuthStandard refreshes the access token once on 401 and retries
	AuthStandard AuthPolicy = iota

	// AuthNoRefresh returns a 401 as-is. Used by the auth endpoints
	// themselves so they never recurse into a refresh.
	AuthNoRefresh
)

func (p AuthPolicy) String() string {
	switch p {
	case AuthStandard:
		return "standard"
	case AuthNoRefresh:
		return "no-refresh"
	default:
		return fmt.Sprintf("AuthPolicy(%d)", int(p))
	}
}

// Request describes one API call relative to the base URL
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
	Policy  AuthPolicy
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// envelope wraps every backend response
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RESTTransport sends requests with the session's bearer token and
// recovers from an expired token with a single refresh-and-retry.
type RESTTransport struct {
	baseURL      string
	httpClient   *http.Client
	retryClient  *retryablehttp.Client
	headers      map[string]string
	session      *session.Session
	logger       types.Logger
	hooks        *types.Hooks
	coalesce     bool
	refreshGroup singleflight.Group
}

// Options for the REST transport
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Headers     map[string]string
	Session     *session.Session
	RetryConfig *types.RetryConfig
	Logger      types.Logger
	Hooks       *types.Hooks

	// CoalesceRefresh shares one in-flight refresh call between all
	// requests that hit a 401 at the same time.
	CoalesceRefresh bool
}

// NewRESTTransport creates a new REST transport
func NewRESTTransport(opts *Options) *RESTTransport {
	if opts == nil {
		opts = &Options{}
	}

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = types.DefaultBaseURL
	}

	if opts.Session == nil {
		opts.Session = session.New(nil)
	}

	httpClient := &http.Client{Timeout: types.DefaultTimeout}
	if opts.HTTPClient != nil {
		// Copy so the caller's client is never modified
		c := *opts.HTTPClient
		httpClient = &c
	}

	// The refresh token travels in an HTTP-only cookie, so the client
	// needs a jar for the refresh call to carry credentials. The
	// session's jar saves it next to the access token.
	if httpClient.Jar == nil {
		httpClient.Jar = sessionJar(opts.Session, opts.Logger)
	}

	// Create retry client if configured
	var retryClient *retryablehttp.Client
	if opts.RetryConfig != nil {
		retryClient = retryablehttp.NewClient()
		retryClient.HTTPClient = httpClient
		retryClient.RetryMax = opts.RetryConfig.MaxRetries
		retryClient.RetryWaitMin = opts.RetryConfig.RetryWait
		retryClient.RetryWaitMax = opts.RetryConfig.MaxWait
		retryClient.CheckRetry = connectionRetryPolicy
		retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

		if opts.Logger != nil {
			retryClient.Logger = &retryLogger{logger: opts.Logger}
		} else {
			retryClient.Logger = nil
		}
	}

	// Set default headers
	headers := map[string]string{
		"Accept":     contentType,
		"User-Agent": types.UserAgent,
	}

	// Merge custom headers
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &RESTTransport{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  httpClient,
		retryClient: retryClient,
		headers:     headers,
		session:     opts.Session,
		logger:      opts.Logger,
		hooks:       opts.Hooks,
		coalesce:    opts.CoalesceRefresh,
	}
}

// Session returns the session the transport reads tokens from
func (t *RESTTransport) Session() *session.Session {
	return t.session
}

// HTTPClient returns the client requests are sent with
func (t *RESTTransport) HTTPClient() *http.Client {
	return t.httpClient
}

// BaseURL returns the API base URL
func (t *RESTTransport) BaseURL() string {
	return t.baseURL
}

// Execute performs req and decodes the envelope's data into result
func (t *RESTTransport) Execute(ctx context.Context, req *Request, result interface{}) error {
	resp, err := t.Do(ctx, req)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, result)
}

// Do performs req. A 401 on a refresh-eligible request triggers exactly
// one refresh; the retried attempt's outcome is final, so a second 401
// is returned rather than refreshed again.
func (t *RESTTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	resp, err := t.send(ctx, req, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && req.Policy == AuthStandard {
		if t.logger != nil {
			t.logger.Info("Access token rejected, refreshing", "method", req.Method, "path", req.Path)
		}

		if _, err := t.Refresh(ctx); err != nil {
			return nil, err
		}

		resp, err = t.send(ctx, req, body)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, t.handleHTTPError(resp.StatusCode, resp.Body)
	}

	return resp, nil
}

// Refresh mints a new access token from the refresh cookie and stores it.
// Any failure is returned as *types.RefreshError; the stored token is
// left untouched in that case.
func (t *RESTTransport) Refresh(ctx context.Context) (string, error) {
	if !t.coalesce {
		return t.refresh(ctx)
	}

	// The shared call must outlive any one waiter, so it runs detached
	// from the caller that started it and each waiter honours its own ctx.
	ch := t.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.refreshTimeout())
		defer cancel()
		return t.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return "", &types.RefreshError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// refreshTimeout bounds a coalesced refresh
func (t *RESTTransport) refreshTimeout() time.Duration {
	if t.httpClient.Timeout > 0 {
		return t.httpClient.Timeout
	}
	return types.DefaultTimeout
}

func (t *RESTTransport) refresh(ctx context.Context) (string, error) {
	token, err := t.requestRefresh(ctx)
	if err != nil {
		if t.logger != nil {
			t.logger.Error("Token refresh failed", "error", err)
		}
		return "", &types.RefreshError{Err: err}
	}

	if err := t.session.SetToken(token); err != nil {
		if t.logger != nil {
			t.logger.Error("Failed to persist refreshed token", "error", err)
		}
		return "", &types.RefreshError{Err: err}
	}

	if t.logger != nil {
		t.logger.Info("Access token refreshed")
	}
	return token, nil
}

// requestRefresh calls the refresh endpoint directly, outside the 401
// interception path.
func (t *RESTTransport) requestRefresh(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+RefreshEndpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create refresh request")
	}
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set(deviceHeaderKey, t.session.DeviceID())

	resp, err := t.roundTrip(ctx, httpReq)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", t.handleHTTPError(resp.StatusCode, resp.Body)
	}

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := decodeEnvelope(resp, &data); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", errors.New("refresh response missing access token")
	}
	return data.AccessToken, nil
}

// send builds and performs one attempt of req. The bearer token is read
// from the session at send time so a retry picks up a refreshed token.
func (t *RESTTransport) send(ctx context.Context, req *Request, body []byte) (*Response, error) {
	u := t.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	// Set headers
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set(deviceHeaderKey, t.session.DeviceID())

	// Set auth header
	if token, ok := t.session.Token(); ok {
		httpReq.Header.Set(authHeaderKey, "Bearer "+token)
	}

	// Log request
	if t.logger != nil {
		t.logger.Debug("API request", "method", method, "path", req.Path, "policy", req.Policy.String())
	}

	return t.roundTrip(ctx, httpReq)
}

// roundTrip performs httpReq with hooks and reads the whole body
func (t *RESTTransport) roundTrip(ctx context.Context, httpReq *http.Request) (*Response, error) {
	// Call request hook
	if t.hooks != nil && t.hooks.OnRequest != nil {
		t.hooks.OnRequest(ctx, httpReq)
	}

	// Execute request
	start := time.Now()
	resp, err := t.doRequest(httpReq)
	duration := time.Since(start)

	if err != nil {
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, err)
		}
		return nil, errors.Wrapf(err, "%s %s failed", httpReq.Method, httpReq.URL.Path)
	}
	defer resp.Body.Close()

	// Call response hook
	if t.hooks != nil && t.hooks.OnResponse != nil {
		t.hooks.OnResponse(ctx, resp, duration)
	}

	// Read response
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	// Log response
	if t.logger != nil {
		t.logger.Debug("API response", "status", resp.StatusCode, "duration", duration, "size", len(respBody))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// doRequest executes the HTTP request with retry if configured
func (t *RESTTransport) doRequest(req *http.Request) (*http.Response, error) {
	if t.retryClient != nil {
		// Convert to retryable request
		retryReq, err := retryablehttp.FromRequest(req)
		if err != nil {
			return nil, err
		}
		return t.retryClient.Do(retryReq)
	}
	return t.httpClient.Do(req)
}

// connectionRetryPolicy retries transport failures only. Every HTTP
// status, 5xx included, is returned to the caller on the first attempt.
func connectionRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func encodeBody(body interface{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}
	return data, nil
}

func decodeEnvelope(resp *Response, result interface{}) error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}

	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = "request was not successful"
		}
		return &types.Error{
			Code:       "API_ERROR",
			Message:    msg,
			StatusCode: resp.StatusCode,
		}
	}

	if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(env.Data, result); err != nil {
		return errors.Wrap(err, "failed to unmarshal result")
	}
	return nil
}

// handleHTTPError maps a non-2xx response to an error
func (t *RESTTransport) handleHTTPError(statusCode int, body []byte) error {
	// Try to parse error response
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
	}

	_ = json.Unmarshal(body, &errResp)

	msg := errResp.Message
	if msg == "" {
		msg = errResp.Error
	}

	withDefault := func(def string) string {
		if msg != "" {
			return msg
		}
		return def
	}

	// Map status codes to errors
	switch statusCode {
	case http.StatusUnauthorized:
		return &types.Error{
			Code:       "UNAUTHORIZED",
			Message:    withDefault("unauthorized"),
			StatusCode: statusCode,
			Err:        types.ErrUnauthorized,
		}
	case http.StatusForbidden:
		return &types.Error{
			Code:       "FORBIDDEN",
			Message:    withDefault("forbidden"),
			StatusCode: statusCode,
			Err:        types.ErrForbidden,
		}
	case http.StatusNotFound:
		return &types.Error{
			Code:       "NOT_FOUND",
			Message:    withDefault("resource not found"),
			StatusCode: statusCode,
			Err:        types.ErrNotFound,
		}
	case http.StatusTooManyRequests:
		return &types.Error{
			Code:       "RATE_LIMITED",
			Message:    withDefault("rate limited"),
			StatusCode: statusCode,
			Err:        types.ErrRateLimited,
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &types.Error{
			Code:       "TIMEOUT",
			Message:    withDefault("request timeout"),
			StatusCode: statusCode,
			Err:        types.ErrTimeout,
		}
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		code := errResp.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		return &types.Error{
			Code:       code,
			Message:    withDefault(fmt.Sprintf("HTTP error: %d", statusCode)),
			StatusCode: statusCode,
		}
	default:
		if statusCode >= 500 {
			// Create base message with status code and description
			baseMsg := fmt.Sprintf("server error: %d", statusCode)
			if desc := httpStatusDescription(statusCode); desc != "" {
				baseMsg = fmt.Sprintf("server error: %d (%s)", statusCode, desc)
			}

			// Append parsed error message if available
			if msg != "" {
				baseMsg = fmt.Sprintf("%s: %s", baseMsg, msg)
			}

			return &types.Error{
				Code:       "SERVER_ERROR",
				Message:    baseMsg,
				StatusCode: statusCode,
				Err:        types.ErrServerError,
			}
		}
		return &types.Error{
			Code:       "HTTP_ERROR",
			Message:    withDefault(fmt.Sprintf("HTTP error: %d", statusCode)),
			StatusCode: statusCode,
		}
	}
}

// httpStatusDescription returns a human-readable description for common HTTP status codes.
// Covers the Cloudflare-specific 52x range the API sits behind.
func httpStatusDescription(statusCode int) string {
	descriptions := map[int]string{
		500: "Internal Server Error",
		501: "Not Implemented",
		502: "Bad Gateway",
		503: "Service Unavailable",
		504: "Gateway Timeout",
		520: "Web Server Error",
		521: "Web Server Is Down",
		522: "Connection Timed Out",
		523: "Origin Is Unreachable",
		524: "A Timeout Occurred",
		525: "SSL Handshake Failed",
		526: "Invalid SSL Certificate",
		530: "Origin DNS Error",
	}
	return descriptions[statusCode]
}

// sessionJar returns the session's store-backed cookie jar, falling back
// to an in-memory jar when it cannot be created
func sessionJar(sess *session.Session, logger types.Logger) http.CookieJar {
	jar, err := sess.CookieJar()
	if err != nil && logger != nil {
		logger.Warn("Failed to load saved cookies", "error", err)
	}
	if jar != nil {
		if logger != nil {
			jar.OnError(func(err error) {
				logger.Warn("Failed to save cookies", "error", err)
			})
		}
		return jar
	}

	fallback, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		if logger != nil {
			logger.Error("Failed to create cookie jar, token refresh will not carry credentials", "error", err)
		}
		return nil
	}
	return fallback
}

// retryLogger adapts our logger to retryablehttp
type retryLogger struct {
	logger types.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
