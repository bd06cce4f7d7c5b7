package pluginhub

import (
	"time"

	"github.com/eshaffer321/pluginhub-go/internal/auth"
	"github.com/eshaffer321/pluginhub-go/internal/session"
	internalTypes "github.com/eshaffer321/pluginhub-go/internal/types"
)

// User is a marketplace account
type User = internalTypes.User

// TokenClaims are the decoded, unverified claims of the access token
type TokenClaims = session.Claims

// RegisterParams are the fields of the sign-up form
type RegisterParams = auth.RegisterParams

// Plugin is a catalog entry
type Plugin struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug,omitempty"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Version       string    `json:"version,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	ImageURL      string    `json:"image,omitempty"`
	VideoURL      string    `json:"video,omitempty"`
	Downloads     int       `json:"downloads"`
	Rating        float64   `json:"rating,omitempty"`
	IsFree        bool      `json:"isFree"`
	RequiresPlan  bool      `json:"requiresSubscription"`
	Compatibility []string  `json:"compatibility,omitempty"`
	ReleasedAt    *Date     `json:"releaseDate,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PluginPage is one page of a catalog query
type PluginPage struct {
	Plugins    []*Plugin `json:"plugins"`
	Page       int       `json:"currentPage"`
	Limit      int       `json:"limit"`
	TotalCount int       `json:"totalPlugins"`
	TotalPages int       `json:"totalPages"`
	HasMore    bool      `json:"-"`
	NextPage   int       `json:"-"`
}

// PluginCategory is a catalog category with its plugin count
type PluginCategory struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PluginDownload is a short-lived download link
type PluginDownload struct {
	URL       string     `json:"url"`
	FileName  string     `json:"fileName,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// SubscriptionStatus mirrors the payment provider's subscription states
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

// IsActive reports whether the status grants access to paid plugins
func (s SubscriptionStatus) IsActive() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Plan is a purchasable subscription plan
type Plan struct {
	ID       string   `json:"id"`
	PriceID  string   `json:"priceId"`
	Name     string   `json:"name"`
	Interval string   `json:"interval"`
	Amount   int64    `json:"amount"`
	Currency string   `json:"currency"`
	Features []string `json:"features,omitempty"`
}

// Subscription is the signed-in user's subscription
type Subscription struct {
	ID                string             `json:"id"`
	Status            SubscriptionStatus `json:"status"`
	PlanID            string             `json:"planId"`
	PlanName          string             `json:"planName,omitempty"`
	CurrentPeriodEnd  *time.Time         `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool               `json:"cancelAtPeriodEnd"`
	CreatedAt         *time.Time         `json:"createdAt,omitempty"`
}

// CheckoutParams starts a hosted checkout. SuccessURL and CancelURL are
// optional and the backend falls back to its own pages when they are
// empty; a URL that is set must be an absolute http(s) URL.
type CheckoutParams struct {
	PriceID       string `json:"priceId"`
	SuccessURL    string `json:"successUrl,omitempty"`
	CancelURL     string `json:"cancelUrl,omitempty"`
	AffiliateCode string `json:"affiliateCode,omitempty"`
}

// CheckoutSession is a payment provider hosted checkout page
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// PortalSession is a payment provider billing portal page
type PortalSession struct {
	URL string `json:"url"`
}

// AffiliateStatus is the review state of an affiliate
type AffiliateStatus string

const (
	AffiliateStatusPending   AffiliateStatus = "pending"
	AffiliateStatusApproved  AffiliateStatus = "approved"
	AffiliateStatusRejected  AffiliateStatus = "rejected"
	AffiliateStatusSuspended AffiliateStatus = "suspended"
)

// Affiliate is an affiliate program member or applicant
type Affiliate struct {
	ID             string          `json:"_id"`
	UserID         string          `json:"userId"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Status         AffiliateStatus `json:"status"`
	ReferralCode   string          `json:"referralCode,omitempty"`
	Website        string          `json:"website,omitempty"`
	Audience       string          `json:"audience,omitempty"`
	CommissionRate float64         `json:"commissionRate"`
	StatusReason   string          `json:"statusReason,omitempty"`
	AppliedAt      time.Time       `json:"createdAt"`
	ReviewedAt     *time.Time      `json:"reviewedAt,omitempty"`
}

// AffiliateApplication is the affiliate sign-up form
type AffiliateApplication struct {
	Website  string   `json:"website"`
	Audience string   `json:"audience"`
	Channels []string `json:"channels,omitempty"`
	Message  string   `json:"message,omitempty"`
	PayPal   string   `json:"paypalEmail,omitempty"`
}

// AffiliateDashboard is an approved affiliate's earnings summary
type AffiliateDashboard struct {
	ReferralCode    string          `json:"referralCode"`
	ReferralLink    string          `json:"referralLink"`
	Status          AffiliateStatus `json:"status"`
	Clicks          int             `json:"clicks"`
	Signups         int             `json:"signups"`
	Conversions     int             `json:"conversions"`
	TotalEarnings   float64         `json:"totalEarnings"`
	PendingEarnings float64         `json:"pendingEarnings"`
	PaidEarnings    float64         `json:"paidEarnings"`
	Referrals       []*Referral     `json:"recentReferrals,omitempty"`
}

// Referral is a user who signed up through an affiliate link
type Referral struct {
	UserEmail  string    `json:"userEmail"`
	PlanName   string    `json:"planName,omitempty"`
	Commission float64   `json:"commission"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AffiliateListParams filters the admin affiliate list
type AffiliateListParams struct {
	Status AffiliateStatus
	Search string
	Page   int
	Limit  int
}

// AffiliateList is one page of the admin affiliate list
type AffiliateList struct {
	Affiliates []*Affiliate `json:"affiliates"`
	Page       int          `json:"currentPage"`
	TotalPages int          `json:"totalPages"`
	TotalCount int          `json:"totalAffiliates"`
}

// BulkResult reports a bulk status change. Skipped maps affiliate ID to
// the reason it was not sent.
type BulkResult struct {
	Updated []string          `json:"updated"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// ChatMessage is one turn of a chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
