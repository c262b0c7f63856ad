package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eventops/server/internal/api/problem"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/config"
	"github.com/eventops/server/internal/metrics"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic        RateLimitTier = "public"
	TierAuthenticated RateLimitTier = "authenticated"
	TierLogin         RateLimitTier = "login" // login and registration attempts
	TierExempt        RateLimitTier = "exempt"
)

const (
	loginWindow  = 15 * time.Minute
	idleEviction = loginWindow
	sweepEvery   = 5 * time.Minute
)

type rateLimitKey struct{}

func WithRateLimitTier(ctx context.Context, tier RateLimitTier) context.Context {
	return context.WithValue(ctx, rateLimitKey{}, tier)
}

func WithRateLimitTierHandler(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithRateLimitTier(r.Context(), tier)))
		})
	}
}

// tierPolicy is a token bucket of burst tokens refilled one per interval.
type tierPolicy struct {
	burst    int
	interval time.Duration
}

func (p tierPolicy) retryAfter() string {
	return strconv.Itoa(int(math.Ceil(p.interval.Seconds())))
}

func policies(cfg config.RateLimitConfig) map[RateLimitTier]tierPolicy {
	out := map[RateLimitTier]tierPolicy{}
	perWindow := func(tier RateLimitTier, limit int, window time.Duration) {
		if limit > 0 {
			out[tier] = tierPolicy{burst: limit, interval: window / time.Duration(limit)}
		}
	}
	perWindow(TierPublic, cfg.PublicPerMinute, time.Minute)
	perWindow(TierAuthenticated, cfg.AuthenticatedPerMinute, time.Minute)
	perWindow(TierLogin, cfg.LoginPer15Minutes, loginWindow)
	return out
}

// RateLimiter applies token buckets per tier. Anonymous callers are keyed by
// client address and signed-in callers by user id, so one account shares a
// budget across devices. The tier comes from the request context; without
// one, the caller's identity picks public or authenticated.
type RateLimiter struct {
	policies map[RateLimitTier]tierPolicy
	proxies  []netip.Prefix
	buckets  *bucketStore
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		policies: policies(cfg),
		proxies:  parsePrefixes(cfg.TrustedProxyCIDRs),
		buckets:  newBucketStore(),
	}
}

// Stop ends the background eviction of idle buckets.
func (l *RateLimiter) Stop() {
	l.buckets.Stop()
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, signedIn := auth.IdentityFromContext(r.Context())
		tier := TierPublic
		if signedIn {
			tier = TierAuthenticated
		}
		if value, ok := r.Context().Value(rateLimitKey{}).(RateLimitTier); ok {
			tier = value
		}

		policy, limited := l.policies[tier]
		if tier == TierExempt || !limited {
			next.ServeHTTP(w, r)
			return
		}

		key := "ip:" + clientIP(r, l.proxies)
		if signedIn && tier == TierAuthenticated {
			key = "user:" + identity.ID
		}

		if !l.buckets.get(tier, key, policy).Allow() {
			metrics.RateLimited.WithLabelValues(string(tier)).Inc()
			w.Header().Set("Retry-After", policy.retryAfter())
			problem.WriteBody(w, problem.Body{Error: "Too many requests", Status: http.StatusTooManyRequests})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type bucketStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

func newBucketStore() *bucketStore {
	s := &bucketStore{buckets: map[string]*bucket{}, stop: make(chan struct{})}
	go s.evictLoop()
	return s
}

func (s *bucketStore) get(tier RateLimitTier, key string, policy tierPolicy) *rate.Limiter {
	id := string(tier) + "|" + key
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[id]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(policy.interval), policy.burst)}
		s.buckets[id] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (s *bucketStore) evictLoop() {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.evict(now)
		case <-s.stop:
			return
		}
	}
}

// evict drops buckets idle longer than idleEviction. A dropped bucket is
// full again on next use, which is what it would have refilled to anyway.
func (s *bucketStore) evict(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.buckets {
		if now.Sub(b.lastSeen) > idleEviction {
			delete(s.buckets, id)
		}
	}
}

func (s *bucketStore) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func parsePrefixes(cidrs []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		if prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err == nil {
			out = append(out, prefix.Masked())
		}
	}
	return out
}

// clientIP returns the peer address, or the forwarded client address when
// the peer is a trusted proxy.
func clientIP(r *http.Request, proxies []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if !fromTrustedProxy(peer, proxies) {
		return peer
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return peer
}

func fromTrustedProxy(ip string, proxies []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
