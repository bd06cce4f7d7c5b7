package pluginhub

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/eshaffer321/pluginhub-go/internal/auth"
	"github.com/eshaffer321/pluginhub-go/internal/session"
	"github.com/eshaffer321/pluginhub-go/internal/transport"
	internalTypes "github.com/eshaffer321/pluginhub-go/internal/types"
	"github.com/getsentry/sentry-go"
)

const (
	// DefaultBaseURL is the default marketplace API base URL
	DefaultBaseURL = internalTypes.DefaultBaseURL

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// UserAgent is the user agent string
	UserAgent = internalTypes.UserAgent
)

// Client is the main marketplace API client
type Client struct {
	// Service interfaces
	Auth          AuthService
	Plugins       PluginService
	Subscriptions SubscriptionService
	Affiliates    AffiliateService
	Chat          ChatService

	// Internal fields
	baseURL    string
	httpClient *http.Client
	transport  Transport
	options    *ClientOptions
}

// ClientOptions configures the client
type ClientOptions struct {
	// BaseURL overrides the default API base URL
	BaseURL string

	// HTTPClient allows using a custom HTTP client. A cookie jar is added
	// when it has none, since token refresh relies on a cookie.
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout
	Timeout time.Duration

	// Token provides a direct access token
	Token string

	// SessionFile persists the access token across runs
	SessionFile string

	// SessionStore overrides SessionFile with custom token storage
	SessionStore SessionStore

	// Logger for debug logging
	Logger Logger

	// RetryConfig retries connection failures. HTTP error statuses are
	// never retried.
	RetryConfig *RetryConfig

	// CoalesceRefresh makes concurrent 401s share one refresh call
	CoalesceRefresh bool

	// RateLimiter for rate limiting
	RateLimiter RateLimiter

	// Hooks for observability
	Hooks *Hooks

	// Chat configures the support chat widget's completion API
	Chat *ChatOptions

	// SentryDSN enables Sentry error tracking when set
	SentryDSN string

	// SentryOptions allows custom Sentry configuration
	SentryOptions *sentry.ClientOptions
}

// Logger interface for logging
type Logger = internalTypes.Logger

// RetryConfig configures retry of connection-level failures
type RetryConfig = internalTypes.RetryConfig

// Hooks provides lifecycle hooks for every HTTP round trip
type Hooks = internalTypes.Hooks

// SessionStore is persistent key/value storage for the access token
type SessionStore = session.Store

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Transport handles HTTP communication with the API
type Transport interface {
	Execute(ctx context.Context, req *transport.Request, result interface{}) error
	Session() *session.Session
}

// NewMemorySessionStore returns token storage that lives as long as the process
func NewMemorySessionStore() SessionStore {
	return session.NewMemoryStore()
}

// NewFileSessionStore returns token storage backed by a JSON file
func NewFileSessionStore(path string) SessionStore {
	return session.NewFileStore(path)
}

// NewClient creates a new marketplace client
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	// Initialize Sentry if DSN is provided
	if opts.SentryDSN != "" || opts.SentryOptions != nil {
		sentryOpts := sentry.ClientOptions{}

		// Use provided options if available, otherwise create new ones
		if opts.SentryOptions != nil {
			sentryOpts = *opts.SentryOptions
		}

		// Override DSN if provided separately
		if opts.SentryDSN != "" {
			sentryOpts.Dsn = opts.SentryDSN
		}

		// Set default environment if not provided
		if sentryOpts.Environment == "" {
			sentryOpts.Environment = "production"
		}

		// Initialize Sentry
		if err := sentry.Init(sentryOpts); err != nil {
			// Log error but don't fail client creation
			if opts.Logger != nil {
				opts.Logger.Error("Failed to initialize Sentry", "error", err)
			}
		}
	}

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	httpClient := &http.Client{Timeout: DefaultTimeout}
	if opts.HTTPClient != nil {
		// Copy so the caller's client is never modified
		c := *opts.HTTPClient
		httpClient = &c
	}

	if opts.Timeout > 0 {
		httpClient.Timeout = opts.Timeout
	}

	store := opts.SessionStore
	if store == nil && opts.SessionFile != "" {
		store = session.NewFileStore(opts.SessionFile)
	}
	sess := session.New(store)

	// Set auth if token provided
	if opts.Token != "" {
		if err := sess.SetToken(opts.Token); err != nil {
			return nil, err
		}
	}

	trans := transport.NewRESTTransport(&transport.Options{
		BaseURL:         opts.BaseURL,
		HTTPClient:      httpClient,
		Session:         sess,
		RetryConfig:     opts.RetryConfig,
		Logger:          opts.Logger,
		Hooks:           opts.Hooks,
		CoalesceRefresh: opts.CoalesceRefresh,
	})

	c := &Client{
		baseURL:    trans.BaseURL(),
		httpClient: trans.HTTPClient(),
		transport:  trans,
		options:    opts,
	}

	// Initialize services
	c.initServices()

	return c, nil
}

// NewClientWithToken creates a client with an access token
func NewClientWithToken(token string) (*Client, error) {
	return NewClient(&ClientOptions{
		Token: token,
	})
}

// initServices initializes all service implementations
func (c *Client) initServices() {
	c.Auth = newAuthService(c)
	c.Plugins = &pluginService{client: c}
	c.Subscriptions = &subscriptionService{client: c}
	c.Affiliates = &affiliateService{client: c}
	c.Chat = newChatService(c)
}

// SetToken stores an access token, replacing any current one
func (c *Client) SetToken(token string) error {
	return c.transport.Session().SetToken(token)
}

// Token returns the stored access token
func (c *Client) Token() (string, bool) {
	return c.transport.Session().Token()
}

// ClearToken erases the stored access token without calling the API
func (c *Client) ClearToken() error {
	return c.transport.Session().ClearToken()
}

// IsAuthenticated reports whether an access token is stored. It does not
// check the token's expiry; an expired token is renewed on first use.
func (c *Client) IsAuthenticated() bool {
	return c.transport.Session().IsAuthenticated()
}

// TokenClaims decodes the stored access token for display
func (c *Client) TokenClaims() (*TokenClaims, error) {
	return c.transport.Session().Claims()
}

// executeREST executes an API request
func (c *Client) executeREST(ctx context.Context, req *transport.Request) error {
	return c.executeRESTInto(ctx, req, nil)
}

// executeRESTInto executes an API request and decodes its data into result
func (c *Client) executeRESTInto(ctx context.Context, req *transport.Request, result interface{}) error {
	// Rate limiting
	if c.options.RateLimiter != nil {
		if err := c.options.RateLimiter.Wait(ctx); err != nil {
			// Capture rate limiter errors in Sentry
			if hub := sentry.GetHubFromContext(ctx); hub != nil {
				hub.CaptureException(err)
			} else {
				sentry.CaptureException(err)
			}
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	// Execute request
	start := time.Now()
	err := c.transport.Execute(ctx, req, result)
	duration := time.Since(start)

	// Capture errors in Sentry
	if err != nil {
		capture := func(hub *sentry.Hub) {
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("api.method", req.Method)
				scope.SetTag("api.path", req.Path)
				scope.SetTag("api.auth_policy", req.Policy.String())
				scope.SetContext("api", map[string]interface{}{
					"query":    req.Query.Encode(),
					"status":   internalTypes.StatusCode(err),
					"duration": duration.String(),
				})
				hub.CaptureException(err)
			})
		}

		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			capture(hub)
		} else {
			capture(sentry.CurrentHub())
		}
	}

	return err
}

// Close flushes any pending Sentry events and performs cleanup
func (c *Client) Close() {
	// Flush Sentry events with a 2 second timeout
	sentry.Flush(2 * time.Second)
}

// clientExecutor routes the auth service's calls through executeRESTInto
// so they get rate limiting and error capture too.
type clientExecutor struct {
	client *Client
}

func (e clientExecutor) Execute(ctx context.Context, req *transport.Request, result interface{}) error {
	return e.client.executeRESTInto(ctx, req, result)
}

func (e clientExecutor) Session() *session.Session {
	return e.client.transport.Session()
}

var _ auth.Executor = clientExecutor{}
