/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/toftewellness/wellness-api/pkg/metrics"
)

// CategoryAdmin labels denials from the admin token bucket.
const CategoryAdmin Category = "admin"

const msgAdminRateLimited = "Rate limit exceeded, please try again later"

// Config holds token-bucket configuration
type Config struct {
	// Rate is the number of requests allowed per second
	Rate float64
	// Burst is the maximum number of requests allowed in a burst
	Burst int
	// CleanupInterval is how often idle buckets are dropped
	CleanupInterval time.Duration
	// MaxAge is how long a bucket survives without requests
	MaxAge time.Duration
	// Now is the clock; nil means time.Now
	Now func() time.Time
}

// DefaultAdminConfig returns the default guard for the admin read endpoints:
// 5 req/s per client, burst of 20
func DefaultAdminConfig() Config {
	return Config{
		Rate:            5,
		Burst:           20,
		CleanupInterval: time.Minute,
		MaxAge:          5 * time.Minute,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client identity. It sits in front
// of the bearer check on admin reads so a client cannot grind through tokens
// or scrape the lists.
type IPRateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	config   Config
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// New starts a limiter and its idle-bucket sweeper.
func New(cfg Config) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rl := &IPRateLimiter{
		buckets: make(map[string]*bucket),
		config:  cfg,
		now:     now,
		done:    make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow takes one token from identity's bucket.
func (rl *IPRateLimiter) Allow(identity string) bool {
	if identity == "" {
		identity = UnknownIdentity
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[identity]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst)}
		rl.buckets[identity] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// retryAfter is the whole number of seconds until one token is back.
func (rl *IPRateLimiter) retryAfter() string {
	if rl.config.Rate <= 0 {
		return "60"
	}
	return strconv.Itoa(int(math.Ceil(1 / rl.config.Rate)))
}

// Middleware rejects clients whose bucket is empty with 429. Preflights pass
// through untouched.
func (rl *IPRateLimiter) Middleware(onDeny ...DenyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		identity := ClientIdentity(c.Request)
		if rl.Allow(identity) {
			c.Next()
			return
		}

		metrics.AdminRateLimited.Inc()
		c.Header("Retry-After", rl.retryAfter())
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   msgAdminRateLimited,
		})
		for _, fn := range onDeny {
			fn(c, CategoryAdmin, identity)
		}
	}
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *IPRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// Sweep drops buckets idle for longer than MaxAge and reports how many went.
func (rl *IPRateLimiter) Sweep() int {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for identity, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.config.MaxAge {
			delete(rl.buckets, identity)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (rl *IPRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Config returns the effective configuration.
func (rl *IPRateLimiter) Config() Config {
	return rl.config
}
