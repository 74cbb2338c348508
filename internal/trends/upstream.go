package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/seovimalraj/locations/internal/cache"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
)

// TimelinePoint is one sample of interest over time.
type TimelinePoint struct {
	Time  string
	Value []float64
}

// RelatedQuery is a query the upstream ranks as related to a phrase.
type RelatedQuery struct {
	Query string
	Value float64
}

// Upstream is the trend data provider.
type Upstream interface {
	InterestOverTime(ctx context.Context, phrase string) ([]TimelinePoint, error)
	RelatedQueries(ctx context.Context, phrase string) ([]RelatedQuery, error)
}

// HTTPConfig configures HTTPUpstream.
type HTTPConfig struct {
	BaseURL  string
	Proxy    string
	Language string
	Window   time.Duration
	Timeout  time.Duration
}

// HTTPUpstream speaks the Trends web API: an explore call yields widget
// tokens, which are then exchanged for widget data.
type HTTPUpstream struct {
	cfg     HTTPConfig
	client  *http.Client
	widgets *cache.Expiring[exploreWidgets]
	now     func() time.Time
}

type widget struct {
	Token   string
	Request string
}

type exploreWidgets struct {
	Timeseries widget
	Related    widget
}

const (
	xssiPrefix       = ")]}'"
	widgetTimeseries = "TIMESERIES"
	widgetRelated    = "RELATED_QUERIES"
)

// NewHTTPUpstream builds the upstream. A configured proxy is applied to the
// transport.
func NewHTTPUpstream(cfg HTTPConfig) (*HTTPUpstream, error) {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Window <= 0 {
		cfg.Window = 365 * 24 * time.Hour
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parsing trends proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &HTTPUpstream{
		cfg:     cfg,
		client:  &http.Client{Transport: transport, Timeout: cfg.Timeout},
		widgets: cache.NewExpiring[exploreWidgets](5 * time.Minute),
		now:     time.Now,
	}, nil
}

func (u *HTTPUpstream) InterestOverTime(ctx context.Context, phrase string) ([]TimelinePoint, error) {
	w, err := u.explore(ctx, phrase)
	if err != nil {
		return nil, err
	}
	if w.Timeseries.Token == "" {
		return []TimelinePoint{}, nil
	}
	body, err := u.get(ctx, "/trends/api/widgetdata/multiline", w.Timeseries)
	if err != nil {
		return nil, err
	}
	return parseTimeline(body), nil
}

func (u *HTTPUpstream) RelatedQueries(ctx context.Context, phrase string) ([]RelatedQuery, error) {
	w, err := u.explore(ctx, phrase)
	if err != nil {
		return nil, err
	}
	if w.Related.Token == "" {
		return []RelatedQuery{}, nil
	}
	body, err := u.get(ctx, "/trends/api/widgetdata/relatedsearches", w.Related)
	if err != nil {
		return nil, err
	}
	return parseRelated(body), nil
}

func (u *HTTPUpstream) explore(ctx context.Context, phrase string) (exploreWidgets, error) {
	if w, ok := u.widgets.Get(phrase); ok {
		return w, nil
	}
	end := u.now().UTC()
	start := end.Add(-u.cfg.Window)
	req, err := json.Marshal(map[string]any{
		"comparisonItem": []map[string]string{{
			"keyword": phrase,
			"geo":     "",
			"time":    start.Format(time.DateOnly) + " " + end.Format(time.DateOnly),
		}},
		"category": 0,
		"property": "",
	})
	if err != nil {
		return exploreWidgets{}, fmt.Errorf("encoding explore request: %w", err)
	}
	body, err := u.get(ctx, "/trends/api/explore", widget{Request: string(req)})
	if err != nil {
		return exploreWidgets{}, err
	}
	w := exploreWidgets{
		Timeseries: findWidget(body, widgetTimeseries),
		Related:    findWidget(body, widgetRelated),
	}
	u.widgets.Set(phrase, w)
	return w, nil
}

func findWidget(body []byte, id string) widget {
	res := gjson.GetBytes(body, fmt.Sprintf(`widgets.#(id==%q)`, id))
	if !res.Exists() {
		return widget{}
	}
	return widget{Token: res.Get("token").String(), Request: res.Get("request").Raw}
}

func (u *HTTPUpstream) get(ctx context.Context, path string, w widget) ([]byte, error) {
	q := url.Values{}
	q.Set("hl", u.cfg.Language)
	q.Set("tz", "0")
	q.Set("req", w.Request)
	if w.Token != "" {
		q.Set("token", w.Token)
	}
	endpoint := strings.TrimRight(u.cfg.BaseURL, "/") + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building trends request: %w", err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.Newf(apperrors.ErrUpstream, apperrors.SourceTrends, resp.StatusCode,
			"trends error %d on %s", resp.StatusCode, path)
	}
	body = stripXSSIPrefix(body)
	if !gjson.ValidBytes(body) {
		return nil, apperrors.Newf(apperrors.ErrUpstream, apperrors.SourceTrends, 0,
			"trends returned malformed JSON on %s", path)
	}
	return body, nil
}

// stripXSSIPrefix removes the anti-hijacking line the API prepends.
func stripXSSIPrefix(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if rest, ok := bytes.CutPrefix(body, []byte(xssiPrefix)); ok {
		rest = bytes.TrimLeft(rest, ",")
		return bytes.TrimSpace(rest)
	}
	return body
}

func parseTimeline(body []byte) []TimelinePoint {
	points := []TimelinePoint{}
	gjson.GetBytes(body, "default.timelineData").ForEach(func(_, p gjson.Result) bool {
		pt := TimelinePoint{Time: p.Get("time").String(), Value: []float64{}}
		p.Get("value").ForEach(func(_, v gjson.Result) bool {
			pt.Value = append(pt.Value, v.Float())
			return true
		})
		points = append(points, pt)
		return true
	})
	return points
}

func parseRelated(body []byte) []RelatedQuery {
	out := []RelatedQuery{}
	gjson.GetBytes(body, "default.rankedList.0.rankedKeyword").ForEach(func(_, k gjson.Result) bool {
		q := k.Get("query").String()
		if q != "" {
			out = append(out, RelatedQuery{Query: q, Value: k.Get("value").Float()})
		}
		return true
	})
	return out
}
