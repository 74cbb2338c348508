package wordpress

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id int, link string) string {
	return fmt.Sprintf(`{"id":%d,"slug":"s%d","link":%q,"title":{"rendered":"Page %d"},`+
		`"content":{"rendered":"<p>Body %d<script>x()</script></p>"}}`, id, id, link, id, id)
}

func newSite(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "Bearer oauth-token", r.Header.Get("Authorization"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		page := r.URL.Query().Get("page")
		switch r.URL.Path + "?" + page {
		case "/wp-json/wp/v2/pages?1":
			fmt.Fprintf(w, "[%s,%s]", item(1, "https://site.test/services/drains"), item(2, "https://site.test/about-us"))
		case "/wp-json/wp/v2/posts?1":
			fmt.Fprintf(w, "[%s]", item(3, "https://site.test/blog/leaks"))
		default:
			w.Write([]byte("[]"))
		}
	}))
}

func fastClient(siteURL string) *Client {
	return New(Options{
		SiteURL:     siteURL,
		APIKey:      "api-key",
		OAuthToken:  "oauth-token",
		RetryDelays: []time.Duration{time.Millisecond, time.Millisecond},
	})
}

func TestFetchContent(t *testing.T) {
	var requests atomic.Int32
	srv := newSite(t, &requests)
	defer srv.Close()

	c := fastClient(srv.URL)
	got, err := c.FetchContent(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 3, got.PageCount)
	assert.Equal(t, srv.URL, got.SiteURL)

	first := got.Pages[0]
	assert.Equal(t, "Page 1", first.Title)
	assert.Equal(t, "<p>Body 1</p>", first.ContentHTML)
	assert.Equal(t, "Body 1", first.ContentText)
	assert.Equal(t, "service", first.PageType)
	assert.Equal(t, "about", got.Pages[1].PageType)
	assert.Equal(t, "blog", got.Pages[2].PageType)

	before := requests.Load()
	_, err = c.FetchContent(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, before, requests.Load(), "served from cache")
}

func TestFetchPagesFiltersByPattern(t *testing.T) {
	var requests atomic.Int32
	srv := newSite(t, &requests)
	defer srv.Close()

	pages, err := fastClient(srv.URL).FetchPages(context.Background(), regexp.MustCompile(`services`))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].ID)
}

func TestFetchStopsAtMaxPages(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprintf(w, "[%s]", item(int(requests.Load()), "/p"))
	}))
	defer srv.Close()

	pages, err := fastClient(srv.URL).ForSite(srv.URL, 2).FetchPages(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, int32(2), requests.Load())
}

func TestFetchReportsAPIError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).FetchPages(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WordPress API error 403: forbidden")
	assert.Equal(t, int32(2), requests.Load(), "one attempt per retry delay")
}

func TestSanitizePageDefaults(t *testing.T) {
	p := sanitizePage(rawItem{ID: 9})
	assert.Equal(t, "Untitled", p.Title)
	assert.Empty(t, p.ContentText)
	assert.Empty(t, p.PageType)
}

func TestBearerPrefersOAuth(t *testing.T) {
	assert.Equal(t, "oauth", New(Options{APIKey: "key", OAuthToken: "oauth"}).bearer())
	assert.Equal(t, "key", New(Options{APIKey: "key"}).bearer())
}
