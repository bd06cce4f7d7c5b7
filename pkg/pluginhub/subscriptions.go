package pluginhub

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eshaffer321/pluginhub-go/internal/transport"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	plansEndpoint    = "/subscription/plans"
	currentEndpoint  = "/subscription/current"
	checkoutEndpoint = "/subscription/create-checkout-session"
	portalEndpoint   = "/subscription/create-portal-session"
	cancelEndpoint   = "/subscription/cancel"

	idempotencyHeader = "Idempotency-Key"
)

// subscriptionService implements the SubscriptionService interface
type subscriptionService struct {
	client *Client
}

// Plans lists purchasable plans
func (s *subscriptionService) Plans(ctx context.Context) ([]*Plan, error) {
	var plans []*Plan
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   plansEndpoint,
	}, &plans)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list plans")
	}
	return plans, nil
}

// Current returns the user's subscription. A user who never subscribed
// gets (nil, nil).
func (s *subscriptionService) Current(ctx context.Context) (*Subscription, error) {
	if !s.client.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	var sub *Subscription
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   currentEndpoint,
	}, &sub)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get subscription")
	}
	return sub, nil
}

// CreateCheckout starts a hosted checkout session. Each call carries a
// fresh idempotency key so a retried request cannot open two sessions.
func (s *subscriptionService) CreateCheckout(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error) {
	if params == nil || strings.TrimSpace(params.PriceID) == "" {
		return nil, &ValidationError{Field: "priceId", Message: "is required"}
	}
	for field, raw := range map[string]string{"successUrl": params.SuccessURL, "cancelUrl": params.CancelURL} {
		if err := validateURL(field, raw); err != nil {
			return nil, err
		}
	}
	if !s.client.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	var session CheckoutSession
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method:  http.MethodPost,
		Path:    checkoutEndpoint,
		Body:    params,
		Headers: map[string]string{idempotencyHeader: uuid.NewString()},
	}, &session)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create checkout session")
	}

	if session.URL == "" {
		return nil, errors.New("no checkout URL returned")
	}

	return &session, nil
}

// CreatePortal opens the billing portal
func (s *subscriptionService) CreatePortal(ctx context.Context, returnURL string) (*PortalSession, error) {
	if err := validateURL("returnUrl", returnURL); err != nil {
		return nil, err
	}

	body := map[string]string{}
	if returnURL != "" {
		body["returnUrl"] = returnURL
	}

	var portal PortalSession
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   portalEndpoint,
		Body:   body,
	}, &portal)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create portal session")
	}

	if portal.URL == "" {
		return nil, errors.New("no portal URL returned")
	}

	return &portal, nil
}

// Cancel cancels the subscription at the end of the current period
func (s *subscriptionService) Cancel(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   cancelEndpoint,
	}, &sub)
	if err != nil {
		return nil, errors.Wrap(err, "failed to cancel subscription")
	}
	return &sub, nil
}

// WatchCheckout returns a job that polls until the subscription is active
func (s *subscriptionService) WatchCheckout(ctx context.Context) (CheckoutJob, error) {
	if !s.client.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	return newCheckoutJob(s), nil
}

// WaitForActive polls until the subscription is active or timeout. It is
// used after the user returns from the hosted checkout, since the
// payment provider's webhook may land after the redirect.
func (s *subscriptionService) WaitForActive(ctx context.Context, timeout time.Duration) (*Subscription, error) {
	job, err := s.WatchCheckout(ctx)
	if err != nil {
		return nil, err
	}

	if err := job.Wait(ctx, timeout); err != nil {
		return nil, err
	}

	return job.Subscription(), nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an absolute http(s) URL", Value: raw}
	}
	return nil
}
