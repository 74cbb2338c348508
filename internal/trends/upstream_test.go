package trends

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrendsServer(t *testing.T, explores *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trends/api/explore":
			explores.Add(1)
			assert.Contains(t, r.URL.Query().Get("req"), `"keyword":"plumbing"`)
			w.Write([]byte(")]}'\n" + `{"widgets":[` +
				`{"id":"TIMESERIES","token":"ts-token","request":{"time":"2024-01-01 2025-01-01"}},` +
				`{"id":"RELATED_QUERIES","token":"rq-token","request":{"restriction":{}}}]}`))
		case "/trends/api/widgetdata/multiline":
			assert.Equal(t, "ts-token", r.URL.Query().Get("token"))
			w.Write([]byte(")]}',\n" + `{"default":{"timelineData":[{"time":"1","value":[12]},{"time":"2","value":[48]}]}}`))
		case "/trends/api/widgetdata/relatedsearches":
			assert.Equal(t, "rq-token", r.URL.Query().Get("token"))
			w.Write([]byte(")]}',\n" + `{"default":{"rankedList":[{"rankedKeyword":[{"query":"plumbing near me","value":100},{"value":3}]}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestHTTPUpstreamProtocol(t *testing.T) {
	var explores atomic.Int32
	srv := newTrendsServer(t, &explores)
	defer srv.Close()

	up, err := NewHTTPUpstream(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	timeline, err := up.InterestOverTime(context.Background(), "plumbing")
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, []float64{48}, timeline[1].Value)

	related, err := up.RelatedQueries(context.Background(), "plumbing")
	require.NoError(t, err)
	assert.Equal(t, []RelatedQuery{{Query: "plumbing near me", Value: 100}}, related)
	assert.Equal(t, int32(1), explores.Load(), "explore widgets are reused")
}

func TestHTTPUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	up, err := NewHTTPUpstream(HTTPConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = up.InterestOverTime(context.Background(), "plumbing")
	assert.ErrorContains(t, err, "trends error 429")
}

func TestDefensiveParsing(t *testing.T) {
	assert.Empty(t, parseTimeline([]byte(`{}`)))
	assert.Empty(t, parseTimeline([]byte(`{"default":{"timelineData":[]}}`)))
	assert.Empty(t, parseRelated([]byte(`{"default":{"rankedList":[]}}`)))
	assert.Equal(t, []byte(`{"a":1}`), stripXSSIPrefix([]byte(")]}',\n{\"a\":1}")))
	assert.Equal(t, widget{}, findWidget([]byte(`{"widgets":[]}`), widgetTimeseries))
}

func TestNewHTTPUpstreamRejectsBadProxy(t *testing.T) {
	_, err := NewHTTPUpstream(HTTPConfig{Proxy: "://bad"})
	assert.Error(t, err)
}
