package middleware

import (
	"sync"
	"time"
)

// RateLimiter implements a simple in-memory rate limiter. IP limits are a
// sliding window counter; key cooldowns are a fixed once-per-window gate
// used for password reset requests keyed by utorid.
type RateLimiter struct {
	ipLimits  map[string]*ipLimit
	cooldowns map[string]time.Time
	mu        sync.RWMutex

	ipMaxRequests int
	window        time.Duration
	cooldown      time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

type ipLimit struct {
	requests  int
	resetTime time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(ipMaxRequests int, window, cooldown time.Duration) *RateLimiter {
	rl := &RateLimiter{
		ipLimits:      make(map[string]*ipLimit),
		cooldowns:     make(map[string]time.Time),
		ipMaxRequests: ipMaxRequests,
		window:        window,
		cooldown:      cooldown,
		done:          make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// CheckIPLimit checks if IP has exceeded rate limit
func (rl *RateLimiter) CheckIPLimit(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.ipLimits[ip]
	if !exists || now.After(limit.resetTime) {
		rl.ipLimits[ip] = &ipLimit{
			requests:  1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	if limit.requests >= rl.ipMaxRequests {
		return false
	}

	limit.requests++
	return true
}

// CheckCooldown allows one request per cooldown window for the given key.
// It returns false while the key is still cooling down.
func (rl *RateLimiter) CheckCooldown(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	until, exists := rl.cooldowns[key]
	if exists && now.Before(until) {
		return false
	}

	rl.cooldowns[key] = now.Add(rl.cooldown)
	return true
}

// GetIPRemaining returns remaining requests for IP
func (rl *RateLimiter) GetIPRemaining(ip string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	limit, exists := rl.ipLimits[ip]
	if !exists || time.Now().After(limit.resetTime) {
		return rl.ipMaxRequests
	}

	remaining := rl.ipMaxRequests - limit.requests
	if remaining < 0 {
		return 0
	}
	return remaining
}

// cleanup removes expired entries until Stop is called
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := time.Now()

		for ip, limit := range rl.ipLimits {
			if now.After(limit.resetTime) {
				delete(rl.ipLimits, ip)
			}
		}

		for key, until := range rl.cooldowns {
			if now.After(until) {
				delete(rl.cooldowns, key)
			}
		}

		rl.mu.Unlock()
	}
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
}

// Reset clears all rate limits (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.ipLimits = make(map[string]*ipLimit)
	rl.cooldowns = make(map[string]time.Time)
}
