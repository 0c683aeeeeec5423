package memory

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AlwaysAllow is a RateLimiter that permits every request.
type AlwaysAllow struct{}

func (AlwaysAllow) Allow(_, _ string) bool { return true }

// RateLimiter is a per-client token bucket. Clients are keyed by token when
// one is sent, by IP otherwise. Buckets idle for longer than ttl are dropped.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	clients map[string]*client
	now     func() time.Time
}

type client struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps requests per second per client with the given burst.
func NewRateLimiter(rps float64, burst int, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

func (r *RateLimiter) Allow(ip, token string) bool {
	key := "ip:" + ip
	if token != "" {
		key = "token:" + token
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.evict(now)
	c, ok := r.clients[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = c
	}
	c.lastSeen = now
	return c.lim.AllowN(now, 1)
}

func (r *RateLimiter) evict(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for k, c := range r.clients {
		if now.Sub(c.lastSeen) > r.ttl {
			delete(r.clients, k)
		}
	}
}
