package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const purgeInterval = 5 * time.Minute

// windowEntry tracks requests of one IP within a fixed window.
type windowEntry struct {
	count     int
	windowEnd time.Time
}

// windowLimiter counts requests per IP. Expired entries are purged lazily
// on the first request after each purgeInterval.
type windowLimiter struct {
	limit     int
	window    time.Duration
	message   string
	mu        sync.Mutex
	entries   map[string]*windowEntry
	nextPurge time.Time
	now       func() time.Time
}

func newWindowLimiter(limit int, window time.Duration, message string) *windowLimiter {
	return &windowLimiter{
		limit:   limit,
		window:  window,
		message: message,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// allow records one request for ip and reports whether it fits the window,
// plus the time the window resets.
func (l *windowLimiter) allow(ip string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.After(l.nextPurge) {
		l.purge(now)
		l.nextPurge = now.Add(purgeInterval)
	}

	entry, ok := l.entries[ip]
	if !ok {
		entry = &windowEntry{}
		l.entries[ip] = entry
	}
	if now.After(entry.windowEnd) {
		entry.count = 0
		entry.windowEnd = now.Add(l.window)
	}
	entry.count++
	return entry.count <= l.limit, entry.windowEnd
}

func (l *windowLimiter) purge(now time.Time) {
	purged := 0
	for ip, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, ip)
			purged++
		}
	}
	if purged > 0 {
		log.Debug().Int("purged", purged).Int("remaining", len(l.entries)).Msg("rate limiter entries purged")
	}
}

func (l *windowLimiter) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, reset := l.allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", reset.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(l.message))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return newWindowLimiter(20, time.Minute, "Demasiados intentos de login. Intente en 1 minuto.").handler()
}

// RateLimiter limits every IP to limit requests per window.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newWindowLimiter(limit, window, "Demasiadas solicitudes. Intente nuevamente en un momento.").handler()
}
