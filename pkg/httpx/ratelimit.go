package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/tvguide/pkg/slogx"
	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit. Only the
	// in-memory limiter uses it.
	Burst int
}

// Default rate limit profiles.
var (
	// StrictLimit guards credential endpoints against brute force.
	StrictLimit = RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		Burst:             5,
	}

	// ModerateLimit for authenticated writes.
	ModerateLimit = RateLimitConfig{
		RequestsPerWindow: 20,
		Window:            time.Minute,
		Burst:             20,
	}

	// LenientLimit for public reads.
	LenientLimit = RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
		Burst:             100,
	}
)

// ParseRateLimit overrides def with a "requests:window_seconds[:burst]"
// string. An empty string returns def unchanged.
func ParseRateLimit(s string, def RateLimitConfig) (RateLimitConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return def, fmt.Errorf("httpx: rate limit %q: want requests:seconds[:burst]", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return def, fmt.Errorf("httpx: rate limit %q: %q is not a positive integer", s, p)
		}
		nums[i] = n
	}

	cfg := RateLimitConfig{
		RequestsPerWindow: nums[0],
		Window:            time.Duration(nums[1]) * time.Second,
		Burst:             nums[0],
	}
	if len(nums) == 3 {
		cfg.Burst = nums[2]
	}
	return cfg, nil
}

// Limiter decides whether the request identified by key may proceed.
// retryAfter is only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	Config() RateLimitConfig
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID, client ID, etc.)
type KeyExtractor func(*http.Request) string

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ProxyTrust lists the networks whose X-Forwarded-For and X-Real-IP headers
// are believed. A nil ProxyTrust believes nobody.
type ProxyTrust []netip.Prefix

// ParseTrustedProxies reads a comma separated list of CIDRs or bare
// addresses, e.g. "10.0.0.0/8, 127.0.0.1".
func ParseTrustedProxies(s string) (ProxyTrust, error) {
	var trust ProxyTrust
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			prefix, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("httpx: trusted proxy %q: %w", part, err)
			}
			trust = append(trust, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("httpx: trusted proxy %q: %w", part, err)
		}
		addr = addr.Unmap()
		trust = append(trust, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return trust, nil
}

func (t ProxyTrust) trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP is a KeyExtractor for the originating client address. Forwarding
// headers are only read when the peer is a trusted proxy. X-Forwarded-For is
// walked from the right, skipping trusted hops, so a client cannot prepend
// its own entries.
func (t ProxyTrust) ClientIP(r *http.Request) string {
	peer := remoteIP(r)
	if !t.trusts(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !t.trusts(hop) {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

// PrincipalKeyExtractor returns the authenticated subject, or "".
func PrincipalKeyExtractor(r *http.Request) string {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return p.Subject()
	}
	return ""
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Example: CompositeKeyExtractor(":", proxies.ClientIP, PrincipalKeyExtractor)
// would produce keys like "192.168.1.1:alice"
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// FormFieldKeyExtractor extracts a key from a form field (works for both GET and POST).
// Surrounding whitespace is trimmed so padded values share a bucket with the
// bare value. JSON bodies are left unread.
func FormFieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err == nil {
			return strings.TrimSpace(r.FormValue(fieldName))
		}
		return ""
	}
}

// MemoryLimiter is a per-process token bucket limiter keyed by string.
type MemoryLimiter struct {
	config   RateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	burst := config.Burst
	if burst <= 0 {
		burst = config.RequestsPerWindow
	}
	return &MemoryLimiter{
		config:      config,
		rate:        rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (rl *MemoryLimiter) Config() RateLimitConfig { return rl.config }

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	limiter := rl.getLimiter(key)
	if limiter.Allow() {
		return true, 0, nil
	}

	// Peek at when the next token lands without consuming it.
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()
	return false, delay, nil
}

func (rl *MemoryLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	rl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket has refilled, at most every five
// minutes, so ephemeral keys do not pile up.
func (rl *MemoryLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RedisLimiter is a fixed-window counter shared by every instance that
// talks to the same Redis.
type RedisLimiter struct {
	client *redis.Client
	config RateLimitConfig
	prefix string
}

func NewRedisLimiter(client *redis.Client, config RateLimitConfig, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, config: config, prefix: prefix}
}

func (rl *RedisLimiter) Config() RateLimitConfig { return rl.config }

// Allow increments the window counter. On Redis errors it allows the
// request and returns the error so the caller can log it.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := rl.prefix + ":" + key

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("redis rate limit: %w", err)
	}

	// First hit of a window, or a key that lost its expiry.
	if incr.Val() == 1 || ttl.Val() < 0 {
		if err := rl.client.PExpire(ctx, redisKey, rl.config.Window).Err(); err != nil {
			return true, 0, fmt.Errorf("redis rate limit: %w", err)
		}
	}

	if incr.Val() <= int64(rl.config.RequestsPerWindow) {
		return true, 0, nil
	}
	retry := ttl.Val()
	if retry <= 0 {
		retry = rl.config.Window
	}
	return false, retry, nil
}

// RateLimitMiddleware rejects requests over the limiter's budget with 429.
// Requests without a key, and limiter errors, are let through.
func RateLimitMiddleware(limiter Limiter, keyExtractor KeyExtractor) Middleware {
	config := limiter.Config()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			allowed, delay, err := limiter.Allow(ctx, key)
			if err != nil {
				log.Warn("rate limit backend failed, allowing request", slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				retryAfter := max(int((delay + time.Second - 1) / time.Second), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", config.Window.String())

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client IP address only.
func RateLimitByIP(limiter Limiter, proxies ProxyTrust) Middleware {
	return RateLimitMiddleware(limiter, proxies.ClientIP)
}

// RateLimitByUser limits by authenticated subject, falling back to IP.
func RateLimitByUser(limiter Limiter, proxies ProxyTrust) Middleware {
	return RateLimitMiddleware(limiter, CompositeKeyExtractor(":",
		PrincipalKeyExtractor,
		proxies.ClientIP,
	))
}

// RateLimitByIPAndFormField limits by IP plus a form field, e.g. login
// attempts per IP and username.
func RateLimitByIPAndFormField(limiter Limiter, proxies ProxyTrust, fieldName string) Middleware {
	return RateLimitMiddleware(limiter, CompositeKeyExtractor(":",
		proxies.ClientIP,
		FormFieldKeyExtractor(fieldName),
	))
}
