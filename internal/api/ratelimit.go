package api

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// throttleSweepEvery bounds how many admissions may pass between
	// sweeps of idle buckets. Sweeping on admission count instead of a
	// timer keeps the throttle free of background goroutines.
	throttleSweepEvery = 1 << 10

	throttleIdleAfter = 10 * time.Minute
)

// throttle enforces a per-client token bucket in front of the API routes.
// Buckets are keyed by the parsed client address so header injection
// cannot mint unbounded keys.
type throttle struct {
	next       http.Handler
	trustProxy bool
	logger     *slog.Logger

	perSec rate.Limit
	burst  int

	mu      sync.Mutex
	buckets map[netip.Addr]*bucket
	admits  int
}

type bucket struct {
	lim     *rate.Limiter
	touched time.Time
}

func newThrottle(next http.Handler, perSec float64, burst int, trustProxy bool, logger *slog.Logger) *throttle {
	return &throttle{
		next:       next,
		trustProxy: trustProxy,
		logger:     logger,
		perSec:     rate.Limit(perSec),
		burst:      burst,
		buckets:    make(map[netip.Addr]*bucket),
	}
}

func (t *throttle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	addr := clientAddr(r, t.trustProxy)
	if !t.admit(addr) {
		t.logger.Warn("rate limit exceeded",
			"ip", addr.String(),
			"path", r.URL.Path,
			"method", r.Method,
		)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", t.logger)
		return
	}
	t.next.ServeHTTP(w, r)
}

// admit takes one token from the bucket for addr, creating the bucket on
// first sight. Every throttleSweepEvery calls it also drops buckets idle
// longer than throttleIdleAfter.
func (t *throttle) admit(addr netip.Addr) bool {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.admits++; t.admits >= throttleSweepEvery {
		t.admits = 0
		for a, b := range t.buckets {
			if now.Sub(b.touched) > throttleIdleAfter {
				delete(t.buckets, a)
			}
		}
	}

	b := t.buckets[addr]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(t.perSec, t.burst)}
		t.buckets[addr] = b
	}
	b.touched = now
	return b.lim.Allow()
}

// clientAddr resolves the address a request is throttled under.
//
// Proxy headers are consulted only when trustProxy is set: X-Real-IP
// first, then the first hop of X-Forwarded-For, and only when the value
// parses as an address. Everything else falls back to the socket peer.
// Unparseable peers collapse onto the zero Addr and share one bucket.
func clientAddr(r *http.Request, trustProxy bool) netip.Addr {
	if trustProxy {
		for _, h := range []string{"X-Real-IP", "X-Forwarded-For"} {
			v := r.Header.Get(h)
			if v == "" {
				continue
			}
			if first, _, ok := strings.Cut(v, ","); ok {
				v = first
			}
			if addr, err := netip.ParseAddr(strings.TrimSpace(v)); err == nil {
				return addr
			}
		}
	}

	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr()
	}
	addr, _ := netip.ParseAddr(r.RemoteAddr)
	return addr
}
