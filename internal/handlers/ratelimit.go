package handlers

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/pawpals/backend/internal/auth"
	"github.com/pawpals/backend/internal/logging"
	"github.com/pawpals/backend/internal/metrics"
)

// Limiter scopes. Search and trending share the expensive budget; keys are
// built as "<scope>:user:<id>" or "<scope>:ip:<addr>".
const (
	ScopeSearch = "search"
	ScopeLookup = "lookup"
)

// RateLimiter is the minimal interface required to guard gateway endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

// TrustedProxies lists the peers whose X-Forwarded-For header is believed.
// Requests from any other peer are keyed on their socket address.
type TrustedProxies []netip.Prefix

// allowRequest reports whether the request may proceed. When it may not, a 429
// has already been written.
func allowRequest(limiter RateLimiter, proxies TrustedProxies, w http.ResponseWriter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	key := rateLimitKey(r, proxies, scope)
	if limiter.Allow(key) {
		return true
	}

	metrics.RateLimited.WithLabelValues(scope).Inc()
	ctx := r.Context()
	logging.FromContext(ctx).Info("request rate limited", "scope", scope, "key", key)
	respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
	return false
}

func rateLimitKey(r *http.Request, proxies TrustedProxies, scope string) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return scope + ":user:" + identity.UserID
	}
	return scope + ":ip:" + clientIP(r, proxies)
}

// clientIP returns the peer address, or, when the peer is a trusted proxy, the
// nearest untrusted hop in X-Forwarded-For.
func clientIP(r *http.Request, proxies TrustedProxies) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		remote = host
	}
	if !proxies.contains(remote) {
		return remote
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	client := remote
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			break
		}
		client = hop
		if !proxies.contains(hop) {
			break
		}
	}
	return client
}

func (p TrustedProxies) contains(raw string) bool {
	if len(p) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies accepts addresses and CIDR prefixes.
func ParseTrustedProxies(values []string) (TrustedProxies, error) {
	proxies := make(TrustedProxies, 0, len(values))
	for _, raw := range values {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, err
			}
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies, nil
}
