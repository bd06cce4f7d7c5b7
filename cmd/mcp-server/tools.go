package main

import (
	"context"
	"fmt"
	"time"

	"github.com/eshaffer321/pluginhub-go/pkg/pluginhub"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// hubTools holds the marketplace client and implements the tool handlers
type hubTools struct {
	client *pluginhub.Client
}

// SearchPlugins tool - queries the catalog
type SearchPluginsInput struct {
	Query    string `json:"query,omitempty" jsonschema:"Free-text search (optional)"`
	Category string `json:"category,omitempty" jsonschema:"Category filter (optional)"`
	Page     int    `json:"page,omitempty" jsonschema:"Page number (default: 1)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Plugins per page (default: 12, max: 100)"`
}

type PluginEntry struct {
	ID           string   `json:"id" jsonschema:"Plugin ID"`
	Name         string   `json:"name" jsonschema:"Plugin name"`
	Category     string   `json:"category" jsonschema:"Catalog category"`
	Version      string   `json:"version,omitempty" jsonschema:"Latest version"`
	Description  string   `json:"description,omitempty" jsonschema:"Plugin description"`
	Downloads    int      `json:"downloads" jsonschema:"Download count"`
	IsFree       bool     `json:"isFree" jsonschema:"Whether the plugin is free"`
	RequiresPlan bool     `json:"requiresSubscription" jsonschema:"Whether downloading needs an active subscription"`
	Tags         []string `json:"tags,omitempty" jsonschema:"Plugin tags"`
	ReleaseDate  string   `json:"releaseDate,omitempty" jsonschema:"Release date in YYYY-MM-DD format"`
}

type SearchPluginsOutput struct {
	Plugins    []PluginEntry `json:"plugins" jsonschema:"Matching plugins"`
	Page       int           `json:"page" jsonschema:"Current page"`
	TotalPages int           `json:"totalPages" jsonschema:"Number of pages"`
	TotalCount int           `json:"totalCount" jsonschema:"Number of matching plugins"`
}

func toPluginEntry(p *pluginhub.Plugin) PluginEntry {
	entry := PluginEntry{
		ID:           p.ID,
		Name:         p.Name,
		Category:     p.Category,
		Version:      p.Version,
		Description:  p.Description,
		Downloads:    p.Downloads,
		IsFree:       p.IsFree,
		RequiresPlan: p.RequiresPlan,
		Tags:         p.Tags,
	}
	if p.ReleasedAt != nil {
		entry.ReleaseDate = p.ReleasedAt.String()
	}
	return entry
}

func (t *hubTools) SearchPlugins(ctx context.Context, req *mcp.CallToolRequest, input SearchPluginsInput) (*mcp.CallToolResult, SearchPluginsOutput, error) {
	query := t.client.Plugins.Query().
		Search(input.Query).
		Category(input.Category)
	if input.Page > 0 {
		query = query.Page(input.Page)
	}
	if input.Limit > 0 {
		query = query.Limit(input.Limit)
	}

	result, err := query.Execute(ctx)
	if err != nil {
		return nil, SearchPluginsOutput{}, fmt.Errorf("failed to search plugins: %w", err)
	}

	entries := make([]PluginEntry, 0, len(result.Plugins))
	for _, p := range result.Plugins {
		entries = append(entries, toPluginEntry(p))
	}

	return nil, SearchPluginsOutput{
		Plugins:    entries,
		Page:       result.Page,
		TotalPages: result.TotalPages,
		TotalCount: result.TotalCount,
	}, nil
}

// GetPlugin tool - one plugin by ID
type GetPluginInput struct {
	ID string `json:"id" jsonschema:"Plugin ID"`
}

type GetPluginOutput struct {
	Plugin PluginEntry `json:"plugin" jsonschema:"Plugin details"`
}

func (t *hubTools) GetPlugin(ctx context.Context, req *mcp.CallToolRequest, input GetPluginInput) (*mcp.CallToolResult, GetPluginOutput, error) {
	if input.ID == "" {
		return nil, GetPluginOutput{}, fmt.Errorf("id is required")
	}

	plugin, err := t.client.Plugins.Get(ctx, input.ID)
	if err != nil {
		return nil, GetPluginOutput{}, fmt.Errorf("failed to fetch plugin: %w", err)
	}

	return nil, GetPluginOutput{Plugin: toPluginEntry(plugin)}, nil
}

// GetSubscription tool - the signed-in user's subscription
type GetSubscriptionInput struct {
	// No input parameters needed
}

type GetSubscriptionOutput struct {
	Subscribed        bool   `json:"subscribed" jsonschema:"Whether the user has an active or trialing subscription"`
	Status            string `json:"status,omitempty" jsonschema:"Subscription status (e.g. active, past_due, canceled)"`
	Plan              string `json:"plan,omitempty" jsonschema:"Plan name"`
	CurrentPeriodEnd  string `json:"currentPeriodEnd,omitempty" jsonschema:"End of the current billing period (RFC 3339)"`
	CancelAtPeriodEnd bool   `json:"cancelAtPeriodEnd" jsonschema:"Whether the subscription ends at the period end"`
}

func (t *hubTools) GetSubscription(ctx context.Context, req *mcp.CallToolRequest, input GetSubscriptionInput) (*mcp.CallToolResult, GetSubscriptionOutput, error) {
	sub, err := t.client.Subscriptions.Current(ctx)
	if err != nil {
		return nil, GetSubscriptionOutput{}, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	if sub == nil {
		return nil, GetSubscriptionOutput{}, nil
	}

	output := GetSubscriptionOutput{
		Subscribed:        sub.Status.IsActive(),
		Status:            string(sub.Status),
		Plan:              sub.PlanName,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if output.Plan == "" {
		output.Plan = sub.PlanID
	}
	if sub.CurrentPeriodEnd != nil {
		output.CurrentPeriodEnd = sub.CurrentPeriodEnd.UTC().Format(time.RFC3339)
	}
	return nil, output, nil
}

// GetAffiliateDashboard tool - referral stats and earnings
type GetAffiliateDashboardInput struct {
	// No input parameters needed
}

type GetAffiliateDashboardOutput struct {
	ReferralLink    string  `json:"referralLink" jsonschema:"Link to share"`
	Status          string  `json:"status" jsonschema:"Affiliate status"`
	Clicks          int     `json:"clicks" jsonschema:"Referral link clicks"`
	Signups         int     `json:"signups" jsonschema:"Sign-ups from referrals"`
	Conversions     int     `json:"conversions" jsonschema:"Paid subscriptions from referrals"`
	TotalEarnings   float64 `json:"totalEarnings" jsonschema:"Lifetime commission"`
	PendingEarnings float64 `json:"pendingEarnings" jsonschema:"Commission not yet paid out"`
}

func (t *hubTools) GetAffiliateDashboard(ctx context.Context, req *mcp.CallToolRequest, input GetAffiliateDashboardInput) (*mcp.CallToolResult, GetAffiliateDashboardOutput, error) {
	d, err := t.client.Affiliates.Dashboard(ctx)
	if err != nil {
		return nil, GetAffiliateDashboardOutput{}, fmt.Errorf("failed to fetch affiliate dashboard: %w", err)
	}

	return nil, GetAffiliateDashboardOutput{
		ReferralLink:    d.ReferralLink,
		Status:          string(d.Status),
		Clicks:          d.Clicks,
		Signups:         d.Signups,
		Conversions:     d.Conversions,
		TotalEarnings:   d.TotalEarnings,
		PendingEarnings: d.PendingEarnings,
	}, nil
}
