package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"banappeals/backend/internal/api/flash"
)

// limiterIdleTTL is how long a client may stay silent before its limiter
// is evicted, so the per-IP map does not grow forever.
const limiterIdleTTL = 3 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterPool struct {
	mu        sync.Mutex
	perMinute int
	clients   map[string]*clientLimiter
}

func newLimiterPool(perMinute int) *limiterPool {
	return &limiterPool{
		perMinute: perMinute,
		clients:   make(map[string]*clientLimiter),
	}
}

// allow reports whether the client may proceed, evicting idle clients
// along the way.
func (p *limiterPool) allow(ip string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr, client := range p.clients {
		if now.Sub(client.lastSeen) > limiterIdleTTL {
			delete(p.clients, addr)
		}
	}

	client, ok := p.clients[ip]
	if !ok {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(p.perMinute)/60.0), p.perMinute),
		}
		p.clients[ip] = client
	}
	client.lastSeen = now

	return client.limiter.Allow()
}

// SubmitRateLimit throttles form submissions per client IP.
func SubmitRateLimit(perMinute int) gin.HandlerFunc {
	pool := newLimiterPool(perMinute)

	return func(c *gin.Context) {
		if !pool.allow(c.ClientIP(), time.Now()) {
			flash.Redirect(c, "danger", "You are submitting too quickly. Please wait a moment and try again.", "/")
			c.Abort()
			return
		}
		c.Next()
	}
}
