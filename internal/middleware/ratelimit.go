package middleware

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"golang.org/x/time/rate"
)

// GlobalRateLimiter caps requests per IP across the HTTP surface.
// First line of defense against webhook floods and probe abuse.
func GlobalRateLimiter(maxPerMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        maxPerMinute,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": 60,
			})
		},
	})
}

// UserRateLimiter caps how many messages a single chat user can have routed
// per minute. Limiters are created lazily per user ID; user IDs are disjoint
// so there is no cross-user contention beyond the map access.
type UserRateLimiter struct {
	limiters  sync.Map // map[string]*rate.Limiter
	perMinute int
}

// NewUserRateLimiter creates a per-user message limiter
func NewUserRateLimiter(perMinute int) *UserRateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	return &UserRateLimiter{perMinute: perMinute}
}

// Allow reports whether the user may have another message routed now
func (l *UserRateLimiter) Allow(userID string) bool {
	value, _ := l.limiters.LoadOrStore(userID,
		rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute))
	return value.(*rate.Limiter).Allow()
}
