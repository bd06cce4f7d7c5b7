package pluginhub

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/eshaffer321/pluginhub-go/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	statuses := []AffiliateStatus{
		AffiliateStatusPending,
		AffiliateStatusApproved,
		AffiliateStatusRejected,
		AffiliateStatusSuspended,
	}

	allowed := map[[2]AffiliateStatus]bool{
		{AffiliateStatusPending, AffiliateStatusApproved}:   true,
		{AffiliateStatusPending, AffiliateStatusRejected}:   true,
		{AffiliateStatusApproved, AffiliateStatusSuspended}: true,
		{AffiliateStatusSuspended, AffiliateStatusApproved}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]AffiliateStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s → %s", from, to)
		}
	}

	assert.True(t, AffiliateStatusRejected.Terminal())
	assert.False(t, AffiliateStatusSuspended.Terminal())
	assert.ElementsMatch(t, []AffiliateStatus{AffiliateStatusApproved, AffiliateStatusRejected}, AffiliateStatusPending.Next())
	assert.False(t, AffiliateStatus("banned").Valid())
}

func TestAffiliateService_Apply(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, mock.MatchedBy(func(r *transport.Request) bool {
		app, ok := r.Body.(*AffiliateApplication)
		return ok && r.Method == http.MethodPost && r.Path == affiliateApplyEndpoint && app.Audience == "music producers"
	}), mock.Anything).Return(`{"_id": "a1", "status": "pending", "website": "https://blog.example.com"}`, nil)

	affiliate, err := client.Affiliates.Apply(context.Background(), &AffiliateApplication{
		Website:  "https://blog.example.com",
		Audience: "music producers",
	})
	require.NoError(t, err)
	assert.Equal(t, AffiliateStatusPending, affiliate.Status)

	_, err = client.Affiliates.Apply(context.Background(), &AffiliateApplication{Website: "blog", Audience: "x"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = client.Affiliates.Apply(context.Background(), &AffiliateApplication{Website: "https://blog.example.com"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestAffiliateService_Me(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		client, mockTransport := newTestClient(t)
		mockTransport.On("Execute", mock.Anything, request(http.MethodGet, affiliateMeEndpoint), mock.Anything).
			Return(`{"_id": "a1", "status": "approved", "referralCode": "ADA10"}`, nil)

		affiliate, err := client.Affiliates.Me(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ADA10", affiliate.ReferralCode)
	})

	t.Run("never applied", func(t *testing.T) {
		client, mockTransport := newTestClient(t)
		mockTransport.On("Execute", mock.Anything, request(http.MethodGet, affiliateMeEndpoint), mock.Anything).
			Return(nil, &Error{Code: "NOT_FOUND", StatusCode: 404, Err: ErrNotFound})

		affiliate, err := client.Affiliates.Me(context.Background())
		require.NoError(t, err)
		assert.Nil(t, affiliate)
	})
}

func TestAffiliateService_Dashboard(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodGet, affiliateDashboardEndpoint), mock.Anything).
		Return(`{
			"referralCode": "ADA10",
			"referralLink": "https://example.com/?ref=ADA10",
			"status": "approved",
			"clicks": 120,
			"signups": 9,
			"conversions": 4,
			"totalEarnings": 80.5,
			"pendingEarnings": 20,
			"recentReferrals": [{"userEmail": "b***@example.com", "commission": 20, "status": "pending", "createdAt": "2025-02-01T10:00:00Z"}]
		}`, nil)

	dashboard, err := client.Affiliates.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, dashboard.Conversions)
	assert.Equal(t, 80.5, dashboard.TotalEarnings)
	require.Len(t, dashboard.Referrals, 1)
	assert.Equal(t, 20.0, dashboard.Referrals[0].Commission)
}

func TestAffiliateService_List(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, mock.MatchedBy(func(r *transport.Request) bool {
		return r.Path == affiliateListEndpoint && r.Query.Get("status") == "pending" &&
			r.Query.Get("search") == "ada" && r.Query.Get("page") == "2" && r.Query.Get("limit") == "100"
	}), mock.Anything).Return(`{"affiliates": [{"_id": "a1", "status": "pending"}], "currentPage": 2, "totalPages": 2, "totalAffiliates": 101}`, nil)

	list, err := client.Affiliates.List(context.Background(), &AffiliateListParams{
		Status: AffiliateStatusPending,
		Search: " ada ",
		Page:   2,
		Limit:  500,
	})
	require.NoError(t, err)
	assert.Equal(t, 101, list.TotalCount)
	assert.Len(t, list.Affiliates, 1)

	_, err = client.Affiliates.List(context.Background(), &AffiliateListParams{Status: "banned"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestAffiliateService_SetStatus(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, mock.MatchedBy(func(r *transport.Request) bool {
		body, ok := r.Body.(map[string]string)
		return ok && r.Method == http.MethodPatch && r.Path == "/affiliate/admin/a1/status" &&
			body["status"] == "suspended" && body["reason"] == "spam"
	}), mock.Anything).Return(`{"_id": "a1", "status": "suspended", "statusReason": "spam"}`, nil)

	updated, err := client.Affiliates.Suspend(context.Background(), &Affiliate{ID: "a1", Status: AffiliateStatusApproved}, " spam ")
	require.NoError(t, err)
	assert.Equal(t, AffiliateStatusSuspended, updated.Status)
	mockTransport.AssertExpectations(t)
}

func TestAffiliateService_SetStatusRejectsInvalidTransition(t *testing.T) {
	client, mockTransport := newTestClient(t)
	ctx := context.Background()

	rejected := &Affiliate{ID: "a1", Status: AffiliateStatusRejected}
	pending := &Affiliate{ID: "a2", Status: AffiliateStatusPending}
	approved := &Affiliate{ID: "a3", Status: AffiliateStatusApproved}

	_, err := client.Affiliates.Approve(ctx, rejected)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = client.Affiliates.Suspend(ctx, pending, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = client.Affiliates.Reactivate(ctx, pending)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = client.Affiliates.Reject(ctx, approved, "late")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = client.Affiliates.SetStatus(ctx, approved, "banned", "")
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = client.Affiliates.Approve(ctx, nil)
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	mockTransport.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestAffiliateService_SetStatusFillsEmptyResponse(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodPatch, "/affiliate/admin/a1/status"), mock.Anything).
		Return(nil, nil)

	updated, err := client.Affiliates.Reactivate(context.Background(), &Affiliate{ID: "a1", Name: "Ada", Status: AffiliateStatusSuspended})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.Name)
	assert.Equal(t, AffiliateStatusApproved, updated.Status)
}

func TestAffiliateService_BulkSetStatus(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, mock.MatchedBy(func(r *transport.Request) bool {
		body, ok := r.Body.(map[string]interface{})
		if !ok || r.Method != http.MethodPost || r.Path != affiliateBulkEndpoint {
			return false
		}
		ids, _ := body["ids"].([]string)
		return body["status"] == "approved" && len(ids) == 2 && ids[0] == "a1" && ids[1] == "a4"
	}), mock.Anything).Return(`{"updated": ["a1"], "failed": {"a4": "affiliate was deleted"}}`, nil)

	result, err := client.Affiliates.BulkSetStatus(context.Background(), []*Affiliate{
		{ID: "a1", Status: AffiliateStatusPending},
		{ID: "a2", Status: AffiliateStatusRejected},
		{ID: "a3", Status: AffiliateStatusApproved},
		{ID: "a4", Status: AffiliateStatusSuspended},
		{ID: "a1", Status: AffiliateStatusPending},
		nil,
	}, AffiliateStatusApproved, "")

	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, result.Updated)
	assert.Len(t, result.Skipped, 3)
	assert.Contains(t, result.Skipped["a2"], "rejected")
	assert.Contains(t, result.Skipped, "a3")
	assert.Equal(t, "affiliate was deleted", result.Skipped["a4"])
	mockTransport.AssertExpectations(t)
}

func TestAffiliateService_BulkSetStatusAllSkipped(t *testing.T) {
	client, mockTransport := newTestClient(t)

	result, err := client.Affiliates.BulkSetStatus(context.Background(), []*Affiliate{
		{ID: "a1", Status: AffiliateStatusRejected},
	}, AffiliateStatusSuspended, "")

	require.NoError(t, err)
	assert.Empty(t, result.Updated)
	assert.Len(t, result.Skipped, 1)
	mockTransport.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestAffiliateService_BulkSetStatusLegacyResponse(t *testing.T) {
	client, mockTransport := newTestClient(t)

	mockTransport.On("Execute", mock.Anything, request(http.MethodPost, affiliateBulkEndpoint), mock.Anything).
		Return(`{"modifiedCount": 2}`, nil)

	result, err := client.Affiliates.BulkSetStatus(context.Background(), []*Affiliate{
		{ID: "a1", Status: AffiliateStatusApproved},
		{ID: "a2", Status: AffiliateStatusApproved},
	}, AffiliateStatusSuspended, "policy")

	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, result.Updated)
	assert.Empty(t, result.Skipped)
}
