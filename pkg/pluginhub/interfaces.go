package pluginhub

import (
	"context"
	"time"
)

// AuthService handles authentication operations
type AuthService interface {
	// Login performs email/password authentication and stores the token
	Login(ctx context.Context, email, password string) (*User, error)

	// Register creates an account; the token is stored when one is issued
	Register(ctx context.Context, params *RegisterParams) (*User, error)

	// VerifyEmail confirms an email address with the mailed token
	VerifyEmail(ctx context.Context, token string) (*User, error)

	// ExchangeOAuthCode trades a provider authorization code for a session
	ExchangeOAuthCode(ctx context.Context, provider, code string) (*User, error)

	// ForgotPassword requests a password reset mail
	ForgotPassword(ctx context.Context, email string) error

	// ResetPassword sets a new password with a reset token
	ResetPassword(ctx context.Context, token, password string) error

	// Logout ends the session and always erases the local token
	Logout(ctx context.Context) error

	// Me returns the signed-in user's profile
	Me(ctx context.Context) (*User, error)

	// IsAuthenticated reports whether an access token is stored
	IsAuthenticated() bool
}

// PluginService handles the plugin catalog
type PluginService interface {
	// Query returns a catalog query builder
	Query() PluginQueryBuilder

	// Get retrieves a single plugin
	Get(ctx context.Context, pluginID string) (*Plugin, error)

	// Categories lists catalog categories
	Categories(ctx context.Context) ([]*PluginCategory, error)

	// DownloadURL returns a download link; requires an active subscription
	DownloadURL(ctx context.Context, pluginID string) (*PluginDownload, error)
}

// PluginQueryBuilder provides a fluent interface for catalog queries
type PluginQueryBuilder interface {
	Search(text string) PluginQueryBuilder
	Category(category string) PluginQueryBuilder
	Page(page int) PluginQueryBuilder
	Limit(limit int) PluginQueryBuilder
	SortBy(field string) PluginQueryBuilder
	Execute(ctx context.Context) (*PluginPage, error)
	Stream(ctx context.Context) (<-chan *Plugin, <-chan error)
}

// SubscriptionService handles plans and the hosted checkout
type SubscriptionService interface {
	// Plans lists purchasable plans
	Plans(ctx context.Context) ([]*Plan, error)

	// Current returns the user's subscription, or nil when there is none
	Current(ctx context.Context) (*Subscription, error)

	// CreateCheckout starts a hosted checkout session
	CreateCheckout(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error)

	// CreatePortal opens the billing portal
	CreatePortal(ctx context.Context, returnURL string) (*PortalSession, error)

	// Cancel cancels the subscription at the end of the period
	Cancel(ctx context.Context) (*Subscription, error)

	// WatchCheckout returns a job that polls until the subscription is active
	WatchCheckout(ctx context.Context) (CheckoutJob, error)

	// WaitForActive polls until the subscription is active or timeout
	WaitForActive(ctx context.Context, timeout time.Duration) (*Subscription, error)
}

// CheckoutJob tracks a subscription becoming active after checkout
type CheckoutJob interface {
	ID() string
	Status() CheckoutStatus
	Wait(ctx context.Context, timeout time.Duration) error
	IsComplete(ctx context.Context) (bool, error)
	Cancel(ctx context.Context) error
	Subscription() *Subscription
	GetMetrics() CheckoutJobMetrics
}

// AffiliateService handles the affiliate program
type AffiliateService interface {
	// Apply submits an affiliate application
	Apply(ctx context.Context, application *AffiliateApplication) (*Affiliate, error)

	// Me returns the user's own affiliate record, or nil if never applied
	Me(ctx context.Context) (*Affiliate, error)

	// Dashboard returns an approved affiliate's earnings
	Dashboard(ctx context.Context) (*AffiliateDashboard, error)

	// List lists affiliates (admin)
	List(ctx context.Context, params *AffiliateListParams) (*AffiliateList, error)

	// SetStatus changes one affiliate's status (admin)
	SetStatus(ctx context.Context, affiliate *Affiliate, status AffiliateStatus, reason string) (*Affiliate, error)

	// Approve, Reject, Suspend and Reactivate are SetStatus shorthands
	Approve(ctx context.Context, affiliate *Affiliate) (*Affiliate, error)
	Reject(ctx context.Context, affiliate *Affiliate, reason string) (*Affiliate, error)
	Suspend(ctx context.Context, affiliate *Affiliate, reason string) (*Affiliate, error)
	Reactivate(ctx context.Context, affiliate *Affiliate) (*Affiliate, error)

	// BulkSetStatus changes many affiliates at once, skipping disallowed ones (admin)
	BulkSetStatus(ctx context.Context, affiliates []*Affiliate, status AffiliateStatus, reason string) (*BulkResult, error)
}

// ChatService talks to the support chat's completion API
type ChatService interface {
	// Enabled reports whether a completion API key is configured
	Enabled() bool

	// NewConversation starts a conversation with an optional system prompt
	NewConversation(systemPrompt string) *Conversation

	// Complete sends messages and returns the assistant reply
	Complete(ctx context.Context, messages []ChatMessage) (*ChatMessage, error)
}
