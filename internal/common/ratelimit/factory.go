package ratelimit

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"pipeline-hub/internal/common/errors"
)

// New creates the limiter selected by config.Type. A nil redisClient is
// allowed for the local backend.
func New(config Config, redisClient RedisInterface) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case BackendLocal:
		return NewLocalLimiter(config)
	case BackendDistributed:
		return NewDistributedLimiter(config, redisClient)
	default:
		return nil, fmt.Errorf("unsupported rate limiter backend type: %s", config.Type)
	}
}

// HTTPMiddleware rejects requests over the limit with 429. An empty key
// from keyFunc bypasses the limiter.
func HTTPMiddleware(limiter Limiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" || limiter.Allow(r.Context(), key) {
				next.ServeHTTP(w, r)
				return
			}

			if requests, ok := limiter.Stats()["requests"].(int); ok {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requests))
				w.Header().Set("X-RateLimit-Remaining", "0")
			}
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			appErr := errors.RateLimitError(r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{
				"error": appErr.Message,
				"type":  string(appErr.Type),
			})
		})
	}
}

// IPKey returns the address of the direct peer. Forwarding headers are
// ignored; use ClientIPKey behind a reverse proxy.
func IPKey(r *http.Request) string {
	return clientIP(r, nil)
}

// ClientIPKey returns a key function for the client address. Forwarding
// headers are honored only when the direct peer is a trusted proxy, and the
// client is then the right-most X-Forwarded-For hop that is not trusted.
// trusted holds CIDRs or bare IPs.
func ClientIPKey(trusted []string) (func(*http.Request) string, error) {
	prefixes, err := ParseTrustedProxies(trusted)
	if err != nil {
		return nil, err
	}
	return func(r *http.Request) string {
		return clientIP(r, prefixes)
	}, nil
}

// ParseTrustedProxies parses CIDRs or bare IPs into prefixes.
func ParseTrustedProxies(trusted []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(trusted))
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !isTrusted(peer, trusted) {
		return peer
	}

	if forwarded := r.Header.Values("X-Forwarded-For"); len(forwarded) > 0 {
		hops := strings.Split(strings.Join(forwarded, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !isTrusted(hop, trusted) {
				return hop
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return peer
}

func isTrusted(addr string, trusted []netip.Prefix) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(ip) {
			return true
		}
	}
	return false
}
