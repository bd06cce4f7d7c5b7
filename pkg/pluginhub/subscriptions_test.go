package pluginhub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/eshaffer321/pluginhub-go/internal/transport"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fastPolling shortens the checkout polling interval for one test
func fastPolling(t *testing.T) {
	t.Helper()
	initial, maxInterval := checkoutInitialInterval, checkoutMaxInterval
	checkoutInitialInterval, checkoutMaxInterval = 5*time.Millisecond, 10*time.Millisecond
	t.Cleanup(func() {
		checkoutInitialInterval, checkoutMaxInterval = initial, maxInterval
	})
}

func TestSubscriptionService_Plans(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodGet, plansEndpoint), mock.Anything).
		Return(`[
			{"id": "monthly", "priceId": "price_m", "name": "Monthly", "interval": "month", "amount": 999, "currency": "usd"},
			{"id": "yearly", "priceId": "price_y", "name": "Yearly", "interval": "year", "amount": 9900, "currency": "usd"}
		]`, nil)

	plans, err := client.Subscriptions.Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "price_y", plans[1].PriceID)
	assert.Equal(t, int64(9900), plans[1].Amount)
}

func TestSubscriptionService_Current(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		client, mockTransport := newTestClient(t)

		mockTransport.On("Execute", mock.Anything, request(http.MethodGet, currentEndpoint), mock.Anything).
			Return(`{"id": "sub_1", "status": "active", "planId": "monthly", "cancelAtPeriodEnd": false}`, nil)

		sub, err := client.Subscriptions.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, SubscriptionStatusActive, sub.Status)
		assert.True(t, sub.Status.IsActive())
	})

	t.Run("never subscribed", func(t *testing.T) {
		client, mockTransport := newTestClient(t)

		mockTransport.On("Execute", mock.Anything, request(http.MethodGet, currentEndpoint), mock.Anything).
			Return(`null`, nil)

		sub, err := client.Subscriptions.Current(context.Background())
		require.NoError(t, err)
		assert.Nil(t, sub)
	})

	t.Run("signed out", func(t *testing.T) {
		client, _ := newTestClient(t)
		require.NoError(t, client.ClearToken())

		_, err := client.Subscriptions.Current(context.Background())
		assert.True(t, errors.Is(err, ErrNotAuthenticated))
	})
}

func TestSubscriptionStatus_IsActive(t *testing.T) {
	assert.True(t, SubscriptionStatusActive.IsActive())
	assert.True(t, SubscriptionStatusTrialing.IsActive())
	assert.False(t, SubscriptionStatusPastDue.IsActive())
	assert.False(t, SubscriptionStatusCanceled.IsActive())
	assert.False(t, SubscriptionStatusIncomplete.IsActive())
}

func TestSubscriptionService_CreateCheckout(t *testing.T) {
	client, mockTransport := newTestClient(t)

	var keys []string
	mockTransport.On("Execute", mock.Anything, mock.MatchedBy(func(r *transport.Request) bool {
		params, ok := r.Body.(*CheckoutParams)
		return ok && r.Method == http.MethodPost && r.Path == checkoutEndpoint && params.PriceID == "price_m"
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			keys = append(keys, args.Get(1).(*transport.Request).Headers[idempotencyHeader])
		}).
		Return(`{"sessionId": "cs_1", "url": "https://checkout.example.com/cs_1"}`, nil)

	params := &CheckoutParams{PriceID: "price_m", SuccessURL: "https://app.example.com/success"}

	session, err := client.Subscriptions.CreateCheckout(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "https://checkout.example.com/cs_1", session.URL)

	_, err = client.Subscriptions.CreateCheckout(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, keys, 2)
	for _, k := range keys {
		_, parseErr := uuid.Parse(k)
		assert.NoError(t, parseErr)
	}
	assert.NotEqual(t, keys[0], keys[1])
}

func TestSubscriptionService_CreateCheckoutValidation(t *testing.T) {
	client, mockTransport := newTestClient(t)

	_, err := client.Subscriptions.CreateCheckout(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = client.Subscriptions.CreateCheckout(context.Background(), &CheckoutParams{PriceID: "p", CancelURL: "/relative"})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "cancelUrl", vErr.Field)

	mockTransport.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubscriptionService_CreateCheckoutOptionalURLs(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodPost, checkoutEndpoint), mock.Anything).
		Return(`{"sessionId": "cs_2", "url": "https://checkout.example.com/cs_2"}`, nil)

	params := &CheckoutParams{PriceID: "price_y"}
	session, err := client.Subscriptions.CreateCheckout(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "cs_2", session.ID)

	body, err := json.Marshal(params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"priceId":"price_y"}`, string(body))

	_, err = client.Subscriptions.CreateCheckout(context.Background(), &CheckoutParams{PriceID: "price_y", SuccessURL: "ftp://app.example.com/done"})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "successUrl", vErr.Field)

	mockTransport.AssertNumberOfCalls(t, "Execute", 1)
}

func TestSubscriptionService_CreatePortalAndCancel(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodPost, portalEndpoint), mock.Anything).
		Return(`{"url": "https://billing.example.com/p_1"}`, nil)
	mockTransport.On("Execute", mock.Anything, request(http.MethodPost, cancelEndpoint), mock.Anything).
		Return(`{"id": "sub_1", "status": "active", "cancelAtPeriodEnd": true}`, nil)

	portal, err := client.Subscriptions.CreatePortal(context.Background(), "https://app.example.com/account")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.example.com/p_1", portal.URL)

	sub, err := client.Subscriptions.Cancel(context.Background())
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	mockTransport.AssertExpectations(t)
}

func TestSubscriptionService_WaitForActive(t *testing.T) {
	fastPolling(t)
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodGet, currentEndpoint), mock.Anything).
		Return(`null`, nil).Once()
	mockTransport.On("Execute", mock.Anything, request(http.MethodGet, currentEndpoint), mock.Anything).
		Return(nil, &Error{Code: "SERVER_ERROR", StatusCode: 503, Err: ErrServerError}).Once()
	mockTransport.On("Execute", mock.Anything, request(http.MethodGet, currentEndpoint), mock.Anything).
		Return(`{"id": "sub_1", "status": "incomplete"}`, nil).Once()
	mockTransport.On("Execute", mock.Anything, request(http.MethodGet, currentEndpoint), mock.Anything).
		Return(`{"id": "sub_1", "status": "trialing"}`, nil)

	sub, err := client.Subscriptions.WaitForActive(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionStatusTrialing, sub.Status)
}

func TestCheckoutJob_Timeout(t *testing.T) {
	fastPolling(t)
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodGet, currentEndpoint), mock.Anything).
		Return(`{"id": "sub_1", "status": "incomplete"}`, nil)

	job, err := client.Subscriptions.WatchCheckout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CheckoutStatusPending, job.Status())

	err = job.Wait(context.Background(), 50*time.Millisecond)
	assert.True(t, errors.Is(err, ErrCheckoutTimeout))
	assert.Equal(t, CheckoutStatusTimeout, job.Status())

	metrics := job.GetMetrics()
	assert.Greater(t, metrics.CheckCount, 0)
	assert.Equal(t, SubscriptionStatusIncomplete, metrics.SubscriptionStatus)
	assert.NotNil(t, metrics.EndTime)
}

func TestCheckoutJob_FailsOnAuthError(t *testing.T) {
	fastPolling(t)
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodGet, currentEndpoint), mock.Anything).
		Return(nil, &RefreshError{Err: errors.New("refresh cookie expired")})

	job, err := client.Subscriptions.WatchCheckout(context.Background())
	require.NoError(t, err)

	err = job.Wait(context.Background(), time.Second)
	assert.True(t, errors.Is(err, ErrRefreshFailed))
	assert.Equal(t, CheckoutStatusFailed, job.Status())

	complete, err := job.IsComplete(context.Background())
	assert.False(t, complete)
	assert.Error(t, err)
}

func TestCheckoutJob_Cancel(t *testing.T) {
	fastPolling(t)
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodGet, currentEndpoint), mock.Anything).
		Return(`null`, nil)

	job, err := client.Subscriptions.WatchCheckout(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- job.Wait(context.Background(), 5*time.Second) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, job.Cancel(context.Background()))

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cancelled")
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Cancel")
	}
	assert.Equal(t, CheckoutStatusCancelled, job.Status())
}
