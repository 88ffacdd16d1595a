// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds rate limiting configuration
type Config struct {
	WindowSize    time.Duration // Time window for rate limiting
	MaxAttempts   int           // Maximum attempts per window
	CleanupPeriod time.Duration // How often to clean up old entries
	BanDuration   time.Duration // Lockout after exceeding the limit; zero means wait for the window
}

// Tier is the caller class a request is billed against.
type Tier string

const (
	TierGuest         Tier = "guest"
	TierAuthenticated Tier = "authenticated"
	TierPremium       Tier = "premium"
)

// DefaultTierConfigs are the daily diagnosis budgets per tier.
func DefaultTierConfigs() map[Tier]*Config {
	day := 24 * time.Hour
	return map[Tier]*Config{
		TierGuest:         {WindowSize: day, MaxAttempts: 3, CleanupPeriod: time.Hour},
		TierAuthenticated: {WindowSize: day, MaxAttempts: 10, CleanupPeriod: time.Hour},
		TierPremium:       {WindowSize: day, MaxAttempts: 100, CleanupPeriod: time.Hour},
	}
}

// attemptRecord tracks attempts for one identifier
type attemptRecord struct {
	Count     int
	FirstSeen time.Time
	BannedAt  *time.Time
}

// RateLimitInfo contains information about rate limit status
type RateLimitInfo struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
	Banned     bool
}

// MemoryRateLimiter is a fixed-window counter per identifier.
type MemoryRateLimiter struct {
	config    *Config
	attempts  map[string]*attemptRecord
	mu        sync.Mutex
	stopCh    chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// NewMemoryRateLimiter creates a limiter and starts its cleanup goroutine; call Close to stop it.
func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	limiter := newMemoryRateLimiter(config, time.Now)
	if config.CleanupPeriod > 0 {
		go limiter.cleanupLoop()
	}
	return limiter
}

func newMemoryRateLimiter(config *Config, now func() time.Time) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		config:   config,
		attempts: make(map[string]*attemptRecord),
		stopCh:   make(chan struct{}),
		now:      now,
	}
}

// Allow counts one attempt for identifier and reports whether it fits the budget.
func (rl *MemoryRateLimiter) Allow(identifier string) (bool, *RateLimitInfo) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	record, exists := rl.attempts[identifier]

	if exists && record.BannedAt != nil {
		if until := record.BannedAt.Add(rl.config.BanDuration); now.Before(until) {
			return false, rl.denied(until, now, true)
		}
		delete(rl.attempts, identifier)
		exists = false
	}

	if !exists || now.Sub(record.FirstSeen) >= rl.config.WindowSize {
		record = &attemptRecord{FirstSeen: now}
		rl.attempts[identifier] = record
	}

	record.Count++
	reset := record.FirstSeen.Add(rl.config.WindowSize)

	if record.Count > rl.config.MaxAttempts {
		record.Count = rl.config.MaxAttempts
		if rl.config.BanDuration > 0 {
			banTime := now
			record.BannedAt = &banTime
			return false, rl.denied(now.Add(rl.config.BanDuration), now, true)
		}
		return false, rl.denied(reset, now, false)
	}

	return true, &RateLimitInfo{
		Allowed:   true,
		Limit:     rl.config.MaxAttempts,
		Remaining: rl.config.MaxAttempts - record.Count,
		ResetTime: reset,
	}
}

func (rl *MemoryRateLimiter) denied(until, now time.Time, banned bool) *RateLimitInfo {
	return &RateLimitInfo{
		Allowed:    false,
		Limit:      rl.config.MaxAttempts,
		Remaining:  0,
		ResetTime:  until,
		RetryAfter: until.Sub(now),
		Banned:     banned,
	}
}

// Reset forgets every attempt recorded for identifier.
func (rl *MemoryRateLimiter) Reset(identifier string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, identifier)
}

func (rl *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup removes records whose window and ban have both expired
func (rl *MemoryRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for identifier, record := range rl.attempts {
		windowExpired := now.Sub(record.FirstSeen) >= rl.config.WindowSize
		banExpired := record.BannedAt == nil || now.Sub(*record.BannedAt) >= rl.config.BanDuration
		if windowExpired && banExpired {
			delete(rl.attempts, identifier)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *MemoryRateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.stopCh) })
}

// TieredLimiter keeps one window limiter per caller tier.
type TieredLimiter struct {
	limiters map[Tier]*MemoryRateLimiter
}

// NewTieredLimiter builds limiters for every tier in configs. Missing tiers fall back to DefaultTierConfigs.
func NewTieredLimiter(configs map[Tier]*Config) *TieredLimiter {
	defaults := DefaultTierConfigs()
	t := &TieredLimiter{limiters: make(map[Tier]*MemoryRateLimiter, len(defaults))}
	for tier, def := range defaults {
		cfg := def
		if c, ok := configs[tier]; ok && c != nil {
			cfg = c
		}
		t.limiters[tier] = NewMemoryRateLimiter(cfg)
	}
	return t
}

// Allow counts one request for identifier against tier. Identifiers are scoped per tier.
func (t *TieredLimiter) Allow(tier Tier, identifier string) (bool, *RateLimitInfo) {
	limiter, ok := t.limiters[tier]
	if !ok {
		limiter = t.limiters[TierGuest]
	}
	return limiter.Allow(identifier)
}

func (t *TieredLimiter) Close() {
	for _, l := range t.limiters {
		l.Close()
	}
}

// Identifier keys authenticated callers by user ID and everyone else by client IP.
func Identifier(userID uint, r *http.Request) string {
	if userID != 0 {
		return "user:" + strconv.FormatUint(uint64(userID), 10)
	}
	return "ip:" + GetClientIP(r)
}

// GetClientIP extracts the real client IP from request
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := parseFirstIP(forwarded); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// parseFirstIP extracts the first entry from a comma-separated list
func parseFirstIP(forwarded string) string {
	first, _, _ := strings.Cut(forwarded, ",")
	return strings.TrimSpace(first)
}
