package pluginhub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/eshaffer321/pluginhub-go/internal/transport"
	"github.com/pkg/errors"
)

const (
	affiliateApplyEndpoint     = "/affiliate/apply"
	affiliateMeEndpoint        = "/affiliate/me"
	affiliateDashboardEndpoint = "/affiliate/dashboard"
	affiliateListEndpoint      = "/affiliate/admin/affiliates"
	affiliateAdminEndpoint     = "/affiliate/admin/"
	affiliateBulkEndpoint      = "/affiliate/admin/bulk-status"
)

// affiliateTransitions lists the statuses reachable from each status.
// Rejected is terminal.
var affiliateTransitions = map[AffiliateStatus][]AffiliateStatus{
	AffiliateStatusPending:   {AffiliateStatusApproved, AffiliateStatusRejected},
	AffiliateStatusApproved:  {AffiliateStatusSuspended},
	AffiliateStatusSuspended: {AffiliateStatusApproved},
}

// Valid reports whether s is a known status
func (s AffiliateStatus) Valid() bool {
	switch s {
	case AffiliateStatusPending, AffiliateStatusApproved, AffiliateStatusRejected, AffiliateStatusSuspended:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s AffiliateStatus) Terminal() bool {
	return len(affiliateTransitions[s]) == 0
}

// Next lists the statuses reachable from s
func (s AffiliateStatus) Next() []AffiliateStatus {
	return append([]AffiliateStatus(nil), affiliateTransitions[s]...)
}

// CanTransition reports whether an affiliate in status from may be moved to to
func CanTransition(from, to AffiliateStatus) bool {
	for _, next := range affiliateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns an error wrapping ErrInvalidTransition when
// from → to is not allowed
func checkTransition(from, to AffiliateStatus) error {
	if !to.Valid() {
		return &ValidationError{Field: "status", Message: "unknown affiliate status", Value: string(to)}
	}
	if !CanTransition(from, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s → %s", from, to)
	}
	return nil
}

// affiliateService implements the AffiliateService interface
type affiliateService struct {
	client *Client
}

// Apply submits an affiliate application
func (s *affiliateService) Apply(ctx context.Context, application *AffiliateApplication) (*Affiliate, error) {
	if application == nil {
		return nil, &ValidationError{Field: "application", Message: "is required"}
	}
	if err := validateURL("website", application.Website); err != nil {
		return nil, err
	}
	if strings.TrimSpace(application.Audience) == "" {
		return nil, &ValidationError{Field: "audience", Message: "is required"}
	}
	if !s.client.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	var affiliate Affiliate
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   affiliateApplyEndpoint,
		Body:   application,
	}, &affiliate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to submit affiliate application")
	}
	return &affiliate, nil
}

// Me returns the user's own affiliate record, or nil if they never applied
func (s *affiliateService) Me(ctx context.Context) (*Affiliate, error) {
	var affiliate *Affiliate
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   affiliateMeEndpoint,
	}, &affiliate)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get affiliate status")
	}
	return affiliate, nil
}

// Dashboard returns an approved affiliate's earnings
func (s *affiliateService) Dashboard(ctx context.Context) (*AffiliateDashboard, error) {
	var dashboard AffiliateDashboard
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   affiliateDashboardEndpoint,
	}, &dashboard)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get affiliate dashboard")
	}
	return &dashboard, nil
}

// List lists affiliates (admin)
func (s *affiliateService) List(ctx context.Context, params *AffiliateListParams) (*AffiliateList, error) {
	query := url.Values{}
	if params != nil {
		if params.Status != "" {
			if !params.Status.Valid() {
				return nil, &ValidationError{Field: "status", Message: "unknown affiliate status", Value: string(params.Status)}
			}
			query.Set("status", string(params.Status))
		}
		if search := strings.TrimSpace(params.Search); search != "" {
			query.Set("search", search)
		}
		if params.Page > 0 {
			query.Set("page", strconv.Itoa(params.Page))
		}
		if params.Limit > 0 {
			limit := params.Limit
			if limit > MaxPageSize {
				limit = MaxPageSize
			}
			query.Set("limit", strconv.Itoa(limit))
		}
	}

	var list AffiliateList
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   affiliateListEndpoint,
		Query:  query,
	}, &list)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list affiliates")
	}
	return &list, nil
}

// SetStatus moves one affiliate to status after checking the transition
// locally; disallowed transitions never reach the API
func (s *affiliateService) SetStatus(ctx context.Context, affiliate *Affiliate, status AffiliateStatus, reason string) (*Affiliate, error) {
	if affiliate == nil || affiliate.ID == "" {
		return nil, &ValidationError{Field: "affiliate", Message: "is required"}
	}
	if err := checkTransition(affiliate.Status, status); err != nil {
		return nil, err
	}

	body := map[string]string{"status": string(status)}
	if reason = strings.TrimSpace(reason); reason != "" {
		body["reason"] = reason
	}

	var updated Affiliate
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodPatch,
		Path:   affiliateAdminEndpoint + url.PathEscape(affiliate.ID) + "/status",
		Body:   body,
	}, &updated)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to set affiliate %s to %s", affiliate.ID, status)
	}

	if updated.ID == "" {
		updated = *affiliate
		updated.Status = status
		updated.StatusReason = reason
	}
	return &updated, nil
}

// Approve approves a pending or suspended affiliate
func (s *affiliateService) Approve(ctx context.Context, affiliate *Affiliate) (*Affiliate, error) {
	return s.SetStatus(ctx, affiliate, AffiliateStatusApproved, "")
}

// Reject rejects a pending application
func (s *affiliateService) Reject(ctx context.Context, affiliate *Affiliate, reason string) (*Affiliate, error) {
	return s.SetStatus(ctx, affiliate, AffiliateStatusRejected, reason)
}

// Suspend suspends an approved affiliate
func (s *affiliateService) Suspend(ctx context.Context, affiliate *Affiliate, reason string) (*Affiliate, error) {
	return s.SetStatus(ctx, affiliate, AffiliateStatusSuspended, reason)
}

// Reactivate approves a suspended affiliate again
func (s *affiliateService) Reactivate(ctx context.Context, affiliate *Affiliate) (*Affiliate, error) {
	if affiliate != nil && affiliate.Status != AffiliateStatusSuspended {
		return nil, errors.Wrapf(ErrInvalidTransition, "only suspended affiliates can be reactivated, got %s", affiliate.Status)
	}
	return s.SetStatus(ctx, affiliate, AffiliateStatusApproved, "")
}

// BulkSetStatus moves many affiliates to status. Affiliates whose
// transition is not allowed are skipped with a reason; the rest are sent
// in one request. Nothing is sent when every affiliate is skipped.
func (s *affiliateService) BulkSetStatus(ctx context.Context, affiliates []*Affiliate, status AffiliateStatus, reason string) (*BulkResult, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown affiliate status", Value: string(status)}
	}

	result := &BulkResult{Skipped: map[string]string{}}
	ids := make([]string, 0, len(affiliates))
	seen := make(map[string]bool, len(affiliates))

	for _, a := range affiliates {
		if a == nil || a.ID == "" {
			continue
		}
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true

		if err := checkTransition(a.Status, status); err != nil {
			result.Skipped[a.ID] = fmt.Sprintf("cannot move from %s to %s", a.Status, status)
			continue
		}
		ids = append(ids, a.ID)
	}

	if len(ids) == 0 {
		return result, nil
	}

	body := map[string]interface{}{
		"ids":    ids,
		"status": string(status),
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		body["reason"] = reason
	}

	var resp struct {
		Updated []string          `json:"updated"`
		Failed  map[string]string `json:"failed"`
	}
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   affiliateBulkEndpoint,
		Body:   body,
	}, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "bulk status update failed")
	}

	// Older backends answer without a per-ID report
	if resp.Updated == nil && resp.Failed == nil {
		resp.Updated = ids
	}

	result.Updated = resp.Updated
	for id, why := range resp.Failed {
		result.Skipped[id] = why
	}

	return result, nil
}
