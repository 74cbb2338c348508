package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"github.com/seovimalraj/locations/internal/ratelimit"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/metrics"
)

// RateLimit enforces the per-client limit on /api/ routes. Clients are
// keyed by keys; a nil keys uses the remote address only.
func RateLimit(limiter *ratelimit.Keyed, keys *ClientKeys, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(keys.Key(r)) {
				m.RateLimited("inbound")
				retry := int(math.Ceil(limiter.RetryAfter().Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": apperrors.Body{
						Source:  apperrors.SourceSystem,
						Message: "rate limit exceeded",
						Status:  http.StatusTooManyRequests,
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKeys derives the rate-limit key of a request. X-Forwarded-For is
// only read when the direct peer is a trusted proxy, so clients cannot pick
// their own key.
type ClientKeys struct {
	trusted []netip.Prefix
}

// NewClientKeys parses trusted proxy addresses or CIDR ranges.
func NewClientKeys(trustedProxies []string) (*ClientKeys, error) {
	k := &ClientKeys{}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			k.trusted = append(k.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		k.trusted = append(k.trusted, prefix.Masked())
	}
	return k, nil
}

// Key is the remote address, unless it is a trusted proxy. Then the
// X-Forwarded-For chain is walked from the right and the first address not
// belonging to a trusted proxy is used.
func (k *ClientKeys) Key(r *http.Request) string {
	remote := remoteHost(r)
	if k == nil || !k.isTrusted(remote) {
		return remote
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !k.isTrusted(hop) {
			return hop
		}
		remote = hop
	}
	return remote
}

func (k *ClientKeys) isTrusted(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range k.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
