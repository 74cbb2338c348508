package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/seovimalraj/locations/pkg/errors"
)

// Upstream maps a seed phrase to candidate phrases.
type Upstream interface {
	Suggest(ctx context.Context, seed string) ([]string, error)
}

// HTTPUpstream calls the public autocomplete endpoint, which answers with
// a JSON array of the form [seed, [phrase, ...], ...].
type HTTPUpstream struct {
	baseURL string
	client  *http.Client
}

// NewHTTPUpstream creates an upstream rooted at baseURL. A nil client gets
// one with the given timeout.
func NewHTTPUpstream(baseURL string, client *http.Client, timeout time.Duration) *HTTPUpstream {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPUpstream{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (u *HTTPUpstream) Suggest(ctx context.Context, seed string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/complete/search?client=firefox&q=%s", u.baseURL, url.QueryEscape(seed))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building suggestion request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting suggestions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperrors.Newf(apperrors.ErrUpstream, apperrors.SourceKeywords, resp.StatusCode,
			"suggestion error: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading suggestion response: %w", err)
	}
	return parsePhrases(body)
}

// parsePhrases reads the second element of the response array. A missing
// element or non-string entries are tolerated.
func parsePhrases(body []byte) ([]string, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.Newf(apperrors.ErrUpstream, apperrors.SourceKeywords, 0,
			"decoding suggestion response: %v", err)
	}
	if len(envelope) < 2 {
		return []string{}, nil
	}
	var items []any
	if err := json.Unmarshal(envelope[1], &items); err != nil {
		return []string{}, nil
	}
	phrases := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			phrases = append(phrases, s)
		}
	}
	return phrases, nil
}
