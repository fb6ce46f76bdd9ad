package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	httpdto "github.com/linkloop/auth-service/app/dto/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// client tracks a rate limiter per aggregated client address.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles sensitive endpoints per client address: at most
// `requests` within `window`. IPv6 clients are aggregated to their /64
// prefix so a single host cannot dodge the limit by rotating interface ids.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	nowFunc func() time.Time // injectable clock for testing
}

func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	l := &RateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		ttl:     window,
		nowFunc: time.Now,
	}
	go l.cleanupLoop()
	return l
}

// Limit is the Echo middleware entry point.
func (l *RateLimiter) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := AggregateAddr(c.RealIP())
		if !l.allow(key) {
			logrus.WithFields(logrus.Fields{
				"client": key,
				"path":   c.Path(),
			}).Warn("Rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, httpdto.Fail("too many requests, please try again later"))
		}
		return next(c)
	}
}

func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[key]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = cl
	}
	cl.lastSeen = l.nowFunc()
	return cl.limiter.Allow()
}

func (l *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()
	for range ticker.C {
		l.cleanup()
	}
}

func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	for key, cl := range l.clients {
		if now.Sub(cl.lastSeen) > l.ttl {
			delete(l.clients, key)
		}
	}
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// AggregateAddr reduces an address to its throttling key: IPv4 addresses
// stay as-is, IPv6 addresses collapse to their /64 prefix.
func AggregateAddr(addr string) string {
	ip := net.ParseIP(addr)
	if ip == nil {
		return addr
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	masked := ip.Mask(net.CIDRMask(64, 128))
	return masked.String() + "/64"
}
