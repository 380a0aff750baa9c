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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/metrics"
)

// Category names an action that is rate limited independently of the others.
type Category string

const (
	CategoryLogin   Category = "login"
	CategorySignup  Category = "signup"
	CategoryContact Category = "contact"
)

// UnknownIdentity is used when no client address can be derived.
// All such clients share one window.
const UnknownIdentity = "unknown"

// Policy is the sliding-window configuration for one category.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

const (
	defaultMaxKeys         = 10000
	defaultCleanupInterval = time.Minute
)

type windowKey struct {
	category Category
	identity string
}

// Limiter admits at most Policy.MaxAttempts attempts per (category, identity)
// within the trailing Policy.Window. The table of windows is bounded by maxKeys.
type Limiter struct {
	mu       sync.Mutex
	windows  map[windowKey][]time.Time
	policies map[Category]Policy

	now             func() time.Time
	maxKeys         int
	cleanupInterval time.Duration
	log             *zap.SugaredLogger

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithMaxKeys bounds the number of windows held in memory.
func WithMaxKeys(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

// WithCleanupInterval sets how often fully stale windows are swept.
// A negative interval disables the background sweeper.
func WithCleanupInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d != 0 {
			l.cleanupInterval = d
		}
	}
}

// WithLogger sets the logger used for eviction and sweep messages.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLimiter creates a limiter for the given policies and starts its sweeper.
// Categories without a policy are always admitted.
func NewLimiter(policies map[Category]Policy, opts ...Option) *Limiter {
	l := &Limiter{
		windows:         make(map[windowKey][]time.Time),
		policies:        make(map[Category]Policy, len(policies)),
		now:             time.Now,
		maxKeys:         defaultMaxKeys,
		cleanupInterval: defaultCleanupInterval,
		log:             zap.NewNop().Sugar(),
		done:            make(chan struct{}),
	}
	for c, p := range policies {
		l.policies[c] = p
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.cleanupInterval > 0 {
		go l.cleanup()
	}
	return l
}

// Admit records an attempt for (category, identity) and reports whether it
// is within the category's limit. Denied attempts are not recorded.
func (l *Limiter) Admit(category Category, identity string) bool {
	policy, ok := l.policies[category]
	if !ok || policy.MaxAttempts <= 0 {
		return true
	}
	if identity == "" {
		identity = UnknownIdentity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := windowKey{category: category, identity: identity}
	stamps, exists := l.windows[key]
	stamps = prune(stamps, now.Add(-policy.Window))

	if len(stamps) >= policy.MaxAttempts {
		l.windows[key] = stamps
		metrics.RateLimitDecisions.WithLabelValues(string(category), "denied").Inc()
		return false
	}

	if !exists && len(l.windows) >= l.maxKeys {
		l.makeRoomLocked(now)
	}
	l.windows[key] = append(stamps, now)
	metrics.RateLimitDecisions.WithLabelValues(string(category), "admitted").Inc()
	metrics.RateLimitTrackedKeys.Set(float64(len(l.windows)))
	return true
}

// Remaining returns how many more attempts (category, identity) may make
// in the current window without recording anything.
func (l *Limiter) Remaining(category Category, identity string) int {
	policy, ok := l.policies[category]
	if !ok || policy.MaxAttempts <= 0 {
		return -1
	}
	if identity == "" {
		identity = UnknownIdentity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-policy.Window)
	n := 0
	for _, ts := range l.windows[windowKey{category: category, identity: identity}] {
		if ts.After(cutoff) {
			n++
		}
	}
	if n >= policy.MaxAttempts {
		return 0
	}
	return policy.MaxAttempts - n
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// order so the live ones are always a suffix.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	live := make([]time.Time, len(stamps)-i)
	copy(live, stamps[i:])
	return live
}

// makeRoomLocked sweeps stale windows and, if the table is still full,
// evicts the window whose latest attempt is oldest. Caller holds l.mu.
func (l *Limiter) makeRoomLocked(now time.Time) {
	if l.sweepLocked(now) > 0 && len(l.windows) < l.maxKeys {
		return
	}

	var (
		oldestKey windowKey
		oldest    time.Time
		found     bool
	)
	for k, stamps := range l.windows {
		last := latest(stamps)
		if !found || last.Before(oldest) {
			oldestKey, oldest, found = k, last, true
		}
	}
	if found {
		delete(l.windows, oldestKey)
		metrics.RateLimitEvictions.Inc()
		l.log.Debugw("Evicted rate limit window", "category", oldestKey.category, "identity", oldestKey.identity)
	}
}

// sweepLocked deletes windows with no timestamp inside their category window
// and returns how many were removed. Caller holds l.mu.
func (l *Limiter) sweepLocked(now time.Time) int {
	removed := 0
	for k, stamps := range l.windows {
		policy := l.policies[k.category]
		if !latest(stamps).After(now.Add(-policy.Window)) {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

func latest(stamps []time.Time) time.Time {
	if len(stamps) == 0 {
		return time.Time{}
	}
	return stamps[len(stamps)-1]
}

// Sweep removes stale windows immediately. The background sweeper calls it
// every cleanup interval.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := l.sweepLocked(l.now())
	metrics.RateLimitTrackedKeys.Set(float64(len(l.windows)))
	return removed
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.log.Debugw("Swept stale rate limit windows", "removed", n)
			}
		}
	}
}

// Stop ends the background sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Len returns the number of windows currently held (for testing/metrics).
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Policy returns the policy configured for category.
func (l *Limiter) Policy(category Category) (Policy, bool) {
	p, ok := l.policies[category]
	return p, ok
}
