package core

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/time/rate"

	"skyline/internal/types"
)

// limiterIdleTTL is how long a client's bucket may sit unused before it is
// dropped from the limiter map.
const limiterIdleTTL = 10 * time.Minute

// compressMinSize is the smallest body gzhttp will compress.
const compressMinSize = 1024

// clientLimiter holds one token bucket per client IP. Every request that
// passes it may cost the upstream provider quota up to two calls.
type clientLimiter struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	buckets   map[string]*clientBucket
	lastSweep time.Time
	now       func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

// reserve takes a token for key. When none is available it returns false and
// the wait until the next token.
func (l *clientLimiter) reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// sweep drops idle buckets at most once per TTL. Callers hold l.mu.
func (l *clientLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterIdleTTL {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(l.buckets, k)
		}
	}
}

// size returns the number of tracked clients.
func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit enforces a per-client token bucket keyed by client IP. The health
// check and CORS preflights are exempt.
//
// If rate limiting is disabled (RATE_LIMIT_RPS=0) the middleware passes
// through.
//
// When limited, the middleware responds 429 with a Retry-After header in
// whole seconds.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || r.Method == http.MethodOptions || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		ip := extractClientIP(r, s.proxyHops)
		allowed, wait := s.limiter.reserve(ip)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(math.Ceil(wait.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}

		s.Logger.Warn("rate limit exceeded",
			slog.String("ip", ip),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeRateLimit,
			"rate limit exceeded; please retry later",
			nil,
			map[string]any{"retry_after_seconds": retryAfter},
		))
	})
}

// extractClientIP returns the address the rate limiter keys on. With no
// trusted proxies it is the peer address; the Lambda adapter sets that from
// the API Gateway source IP. With trustedHops proxies in front, it is the
// X-Forwarded-For entry appended by the outermost trusted proxy, so entries a
// client prepends itself are ignored. A header shorter than trustedHops falls
// back to the peer address.
func extractClientIP(r *http.Request, trustedHops int) string {
	if trustedHops > 0 {
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(strings.Join(xff, ","), ",")
			if i := len(hops) - trustedHops; i >= 0 {
				if ip := strings.TrimSpace(hops[i]); ip != "" {
					return ip
				}
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may not have a port (e.g., in tests).
		return r.RemoteAddr
	}
	return ip
}

// CompressMiddleware gzips responses for clients that accept it. gzhttp's
// default content-type filter leaves PNG and zip bodies alone.
func CompressMiddleware() func(http.Handler) http.Handler {
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(compressMinSize))
	if err != nil {
		// Only reachable with invalid static options.
		panic(err)
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}
}
