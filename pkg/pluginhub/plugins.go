package pluginhub

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/eshaffer321/pluginhub-go/internal/transport"
	"github.com/pkg/errors"
)

const (
	// DefaultPageSize matches the catalog page of the website
	DefaultPageSize = 12

	// MaxPageSize is the largest page the backend serves
	MaxPageSize = 100

	pluginListEndpoint     = "/plugin/getallplugins"
	pluginGetEndpoint      = "/plugin/getplugin/"
	pluginCategoryEndpoint = "/plugin/categories"
	pluginDownloadEndpoint = "/plugin/download/"
)

// pluginService implements the PluginService interface
type pluginService struct {
	client *Client
}

// Query returns a catalog query builder
func (s *pluginService) Query() PluginQueryBuilder {
	return &pluginQueryBuilder{
		client: s.client,
		page:   1,
		limit:  DefaultPageSize,
	}
}

// Get retrieves a single plugin
func (s *pluginService) Get(ctx context.Context, pluginID string) (*Plugin, error) {
	if strings.TrimSpace(pluginID) == "" {
		return nil, &ValidationError{Field: "pluginID", Message: "is required"}
	}

	var plugin *Plugin
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   pluginGetEndpoint + url.PathEscape(pluginID),
	}, &plugin)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get plugin")
	}

	if plugin == nil {
		return nil, ErrNotFound
	}

	return plugin, nil
}

// Categories lists catalog categories
func (s *pluginService) Categories(ctx context.Context) ([]*PluginCategory, error) {
	var categories []*PluginCategory
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   pluginCategoryEndpoint,
	}, &categories)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list categories")
	}
	return categories, nil
}

// DownloadURL returns a download link. Users without an active
// subscription get an error matching ErrForbidden.
func (s *pluginService) DownloadURL(ctx context.Context, pluginID string) (*PluginDownload, error) {
	if strings.TrimSpace(pluginID) == "" {
		return nil, &ValidationError{Field: "pluginID", Message: "is required"}
	}
	if !s.client.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	var download PluginDownload
	err := s.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   pluginDownloadEndpoint + url.PathEscape(pluginID),
	}, &download)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get download link")
	}

	if download.URL == "" {
		return nil, errors.New("no download URL returned")
	}

	return &download, nil
}

// pluginQueryBuilder implements PluginQueryBuilder
type pluginQueryBuilder struct {
	client   *Client
	search   string
	category string
	sortBy   string
	page     int
	limit    int
}

// Search filters by free text
func (b *pluginQueryBuilder) Search(text string) PluginQueryBuilder {
	b.search = strings.TrimSpace(text)
	return b
}

// Category filters by category; "all" and "" clear the filter
func (b *pluginQueryBuilder) Category(category string) PluginQueryBuilder {
	category = strings.TrimSpace(category)
	if strings.EqualFold(category, "all") {
		category = ""
	}
	b.category = category
	return b
}

// Page selects a 1-based page
func (b *pluginQueryBuilder) Page(page int) PluginQueryBuilder {
	if page < 1 {
		page = 1
	}
	b.page = page
	return b
}

// Limit sets the page size, clamped to [1, MaxPageSize]
func (b *pluginQueryBuilder) Limit(limit int) PluginQueryBuilder {
	switch {
	case limit < 1:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	b.limit = limit
	return b
}

// SortBy orders results, e.g. "newest", "popular", "name"
func (b *pluginQueryBuilder) SortBy(field string) PluginQueryBuilder {
	b.sortBy = strings.TrimSpace(field)
	return b
}

// values encodes the builder as query parameters
func (b *pluginQueryBuilder) values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(b.page))
	v.Set("limit", strconv.Itoa(b.limit))
	if b.search != "" {
		v.Set("search", b.search)
	}
	if b.category != "" {
		v.Set("category", b.category)
	}
	if b.sortBy != "" {
		v.Set("sort", b.sortBy)
	}
	return v
}

// Execute runs the query
func (b *pluginQueryBuilder) Execute(ctx context.Context) (*PluginPage, error) {
	var result PluginPage
	err := b.client.executeRESTInto(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   pluginListEndpoint,
		Query:  b.values(),
	}, &result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query plugins")
	}

	if result.Page == 0 {
		result.Page = b.page
	}
	if result.Limit == 0 {
		result.Limit = b.limit
	}
	if result.TotalPages == 0 && result.TotalCount > 0 {
		result.TotalPages = (result.TotalCount + result.Limit - 1) / result.Limit
	}

	// Calculate pagination info
	result.HasMore = result.Page < result.TotalPages
	if result.HasMore {
		result.NextPage = result.Page + 1
	}

	return &result, nil
}

// Stream returns results as a channel, walking every page from the
// builder's current page on
func (b *pluginQueryBuilder) Stream(ctx context.Context) (<-chan *Plugin, <-chan error) {
	pluginChan := make(chan *Plugin)
	errChan := make(chan error, 1)

	go func() {
		defer close(pluginChan)
		defer close(errChan)

		page := b.page

		for {
			// Copy of builder at the current page
			queryBuilder := &pluginQueryBuilder{
				client:   b.client,
				search:   b.search,
				category: b.category,
				sortBy:   b.sortBy,
				page:     page,
				limit:    b.limit,
			}

			result, err := queryBuilder.Execute(ctx)
			if err != nil {
				errChan <- err
				return
			}

			for _, plugin := range result.Plugins {
				select {
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				case pluginChan <- plugin:
				}
			}

			if !result.HasMore || len(result.Plugins) == 0 {
				return
			}

			page = result.NextPage
		}
	}()

	return pluginChan, errChan
}
