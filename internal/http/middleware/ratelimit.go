package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/utils"
)

// ClientLimiter keeps one token bucket per client IP.
type ClientLimiter struct {
	mu      sync.Mutex
	perMin  int
	clients map[uint64]*clientBucket
	ttl     time.Duration
	now     func() time.Time
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewClientLimiter(perMinute int) *ClientLimiter {
	return &ClientLimiter{
		perMin:  perMinute,
		clients: map[uint64]*clientBucket{},
		ttl:     10 * time.Minute,
		now:     time.Now,
	}
}

func (l *ClientLimiter) Allow(ip string) bool {
	if l.perMin <= 0 {
		return true
	}
	key := utils.HashStringToUint64(ip)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)}
		l.clients[key] = b
		if len(l.clients)%256 == 0 {
			l.evict(now)
		}
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

func (l *ClientLimiter) evict(now time.Time) {
	for k, b := range l.clients {
		if now.Sub(b.seen) > l.ttl {
			delete(l.clients, k)
		}
	}
}

func RateLimit(l *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			_ = c.Error(apperr.RateLimited("Too many requests, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
