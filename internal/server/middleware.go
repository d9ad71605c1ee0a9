package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Allowed sources for the Content-Security-Policy header. The script and
// font lists admit the hosted checkout's JS and assets.
var (
	allowedScriptSources = []string{
		"'self'",
		"https://js.stripe.com",
		"https://cdn.jsdelivr.net",
		"https://code.jquery.com",
	}
	allowedStyleSources = []string{
		"'self'",
		"'unsafe-inline'",
		"https://cdn.jsdelivr.net",
		"https://fonts.googleapis.com",
	}
	allowedFontSources = []string{
		"'self'",
		"https://js.stripe.com",
		"https://cdn.jsdelivr.net",
		"https://fonts.gstatic.com",
		"data:",
	}
	allowedImgSources = []string{"'self'", "data:"}
)

func ContentSecurityPolicy() gin.HandlerFunc {
	csp := "default-src 'self'; " +
		"script-src " + strings.Join(allowedScriptSources, " ") + "; " +
		"style-src " + strings.Join(allowedStyleSources, " ") + "; " +
		"font-src " + strings.Join(allowedFontSources, " ") + "; " +
		"img-src " + strings.Join(allowedImgSources, " ") + ";"

	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", csp)
		c.Next()
	}
}

// RequestCounter decides whether a client may issue another request. The
// in-process FixedWindowCounter satisfies it; a shared counter service can
// be swapped in behind the same interface.
type RequestCounter interface {
	Allow(key string, now time.Time) bool
}

type windowCount struct {
	start time.Time
	n     int
}

type FixedWindowCounter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	clients map[string]*windowCount
}

func NewFixedWindowCounter(window time.Duration, limit int) *FixedWindowCounter {
	return &FixedWindowCounter{
		window:  window,
		limit:   limit,
		clients: make(map[string]*windowCount),
	}
}

func (c *FixedWindowCounter) Allow(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.clients[key]
	if !ok || now.Sub(w.start) >= c.window {
		if len(c.clients) > 10000 {
			c.evictStale(now)
		}
		c.clients[key] = &windowCount{start: now, n: 1}
		return true
	}

	w.n++
	return w.n <= c.limit
}

func (c *FixedWindowCounter) evictStale(now time.Time) {
	for key, w := range c.clients {
		if now.Sub(w.start) >= c.window {
			delete(c.clients, key)
		}
	}
}

func RateLimit(counter RequestCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !counter.Allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": "Too many requests.",
			})
			return
		}
		c.Next()
	}
}
