// Package wordpress reads pages and posts from a site's REST API and
// returns them sanitised, as plain text, and tagged with a page type.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/seovimalraj/locations/internal/cache"
	"github.com/seovimalraj/locations/internal/content"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/metrics"
	"github.com/seovimalraj/locations/pkg/resilience"
)

const (
	DefaultMaxPages = 5
	DefaultTimeout  = 25 * time.Second
	DefaultCacheTTL = 5 * time.Minute
	perPage         = 10
)

// DefaultRetryDelays is the wait schedule between request attempts.
var DefaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Page is one sanitised page or post.
type Page struct {
	ID          int    `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Path        string `json:"path"`
	ContentHTML string `json:"contentHtml"`
	ContentText string `json:"contentText"`
	PageType    string `json:"pageType,omitempty"`
}

// Content is the combined result of FetchContent.
type Content struct {
	SiteURL   string    `json:"siteUrl"`
	Pages     []Page    `json:"pages"`
	FetchedAt time.Time `json:"fetchedAt"`
	PageCount int       `json:"pageCount"`
}

// Options configures a Client. Zero values take the package defaults.
type Options struct {
	SiteURL     string
	APIKey      string
	OAuthToken  string
	MaxPages    int
	Timeout     time.Duration
	CacheTTL    time.Duration
	RetryDelays []time.Duration
	HTTPClient  *http.Client
	Metrics     *metrics.Metrics
}

// Client fetches content from one site. Clients derived with ForSite share
// the page cache.
type Client struct {
	opts    Options
	http    *http.Client
	cache   *cache.Expiring[[]Page]
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(opts Options) *Client {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if len(opts.RetryDelays) == 0 {
		opts.RetryDelays = DefaultRetryDelays
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		opts:    opts,
		http:    httpClient,
		cache:   cache.NewExpiring[[]Page](opts.CacheTTL),
		metrics: opts.Metrics,
		logger:  slog.Default().With("component", "wordpress-client"),
	}
	c.retry = resilience.FixedDelays(opts.RetryDelays...)
	c.retry.OnRetry = func(int, time.Duration, error) { c.metrics.Retry("wordpress") }
	return c
}

// ForSite returns a client for siteURL that shares c's cache and
// credentials. A positive maxPages overrides the configured limit.
func (c *Client) ForSite(siteURL string, maxPages int) *Client {
	clone := *c
	clone.opts.SiteURL = siteURL
	if maxPages > 0 {
		clone.opts.MaxPages = maxPages
	}
	return &clone
}

// FetchSite is ForSite(siteURL, maxPages).FetchContent(ctx, pattern).
func (c *Client) FetchSite(ctx context.Context, siteURL string, maxPages int, pattern *regexp.Regexp) (*Content, error) {
	return c.ForSite(siteURL, maxPages).FetchContent(ctx, pattern)
}

// FetchPages returns the site's pages whose path matches pattern (all pages
// when pattern is nil).
func (c *Client) FetchPages(ctx context.Context, pattern *regexp.Regexp) ([]Page, error) {
	return c.fetchResource(ctx, "pages", pattern)
}

// FetchPosts is FetchPages for posts.
func (c *Client) FetchPosts(ctx context.Context, pattern *regexp.Regexp) ([]Page, error) {
	return c.fetchResource(ctx, "posts", pattern)
}

// FetchContent returns pages followed by posts.
func (c *Client) FetchContent(ctx context.Context, pattern *regexp.Regexp) (*Content, error) {
	pages, err := c.FetchPages(ctx, pattern)
	if err != nil {
		return nil, err
	}
	posts, err := c.FetchPosts(ctx, pattern)
	if err != nil {
		return nil, err
	}
	combined := append(pages, posts...)
	return &Content{
		SiteURL:   c.opts.SiteURL,
		Pages:     combined,
		FetchedAt: time.Now().UTC(),
		PageCount: len(combined),
	}, nil
}

func (c *Client) fetchResource(ctx context.Context, resource string, pattern *regexp.Regexp) ([]Page, error) {
	patternKey := "all"
	if pattern != nil {
		patternKey = pattern.String()
	}
	cacheKey := fmt.Sprintf("%s|%s:%s:%d", c.opts.SiteURL, resource, patternKey, c.opts.MaxPages)
	if cached, ok := c.cache.Get(cacheKey); ok {
		c.metrics.CacheLookup("wordpress", true)
		return append([]Page(nil), cached...), nil
	}
	c.metrics.CacheLookup("wordpress", false)

	results, err := resilience.WithTimeout(ctx, c.opts.Timeout, "wordpress "+resource, func(ctx context.Context) ([]Page, error) {
		var results []Page
		for page := 1; page <= c.opts.MaxPages; page++ {
			var items []rawItem
			err := resilience.Retry(ctx, "wordpress", c.retry, func() error {
				var err error
				items, err = c.request(ctx, paginatePath(resource, page))
				return err
			})
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				break
			}
			for _, item := range items {
				p := sanitizePage(item)
				if pattern == nil || pattern.MatchString(p.Path) {
					results = append(results, p)
				}
			}
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []Page{}
	}
	c.cache.Set(cacheKey, results)
	c.logger.Info("fetched content", "site", c.opts.SiteURL, "resource", resource, "count", len(results))
	return append([]Page(nil), results...), nil
}

func paginatePath(resource string, page int) string {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("per_page", fmt.Sprint(perPage))
	return "/wp-json/wp/v2/" + resource + "?" + q.Encode()
}

type rawItem struct {
	ID    int    `json:"id"`
	Slug  string `json:"slug"`
	Link  string `json:"link"`
	Title *struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Content *struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
}

func (c *Client) request(ctx context.Context, path string) ([]rawItem, error) {
	endpoint := strings.TrimRight(c.opts.SiteURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building wordpress request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream("wordpress", time.Since(start), err)
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = apperrors.Newf(apperrors.ErrUpstream, apperrors.SourceWordPress, resp.StatusCode,
			"WordPress API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	c.metrics.ObserveUpstream("wordpress", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	var items []rawItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, apperrors.Newf(apperrors.ErrUpstream, apperrors.SourceWordPress, 0,
			"decoding %s: %v", path, err)
	}
	return items, nil
}

// bearer picks the OAuth token over the API key.
func (c *Client) bearer() string {
	if c.opts.OAuthToken != "" {
		return c.opts.OAuthToken
	}
	return c.opts.APIKey
}

func sanitizePage(raw rawItem) Page {
	var rendered string
	if raw.Content != nil {
		rendered = raw.Content.Rendered
	}
	safe, err := content.Sanitize(rendered)
	if err != nil {
		safe = ""
	}
	text, err := content.HTMLToText(safe)
	if err != nil {
		text = ""
	}
	title := "Untitled"
	if raw.Title != nil {
		title = raw.Title.Rendered
	}
	return Page{
		ID:          raw.ID,
		Slug:        raw.Slug,
		Title:       title,
		Path:        raw.Link,
		ContentHTML: safe,
		ContentText: text,
		PageType:    content.InferPageType(raw.Link),
	}
}
