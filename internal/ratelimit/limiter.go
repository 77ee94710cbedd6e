package ratelimit

import (
	"sync"
	"time"
)

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool          // Whether the request is allowed
	RetryAfter time.Duration // Suggested wait time if not allowed
	LimitType  string        // "global", "disabled", or an endpoint name
	Remaining  float64       // Remaining tokens in the relevant bucket
}

// Limiter manages rate limiting with a global bucket and one bucket
// per rate-limited HTTP API route.
type Limiter struct {
	mu              sync.RWMutex
	enabled         bool
	globalBucket    *Bucket
	endpointBuckets map[string]*Bucket
	config          *Config
	metrics         *Metrics
}

// NewLimiter creates a new rate limiter from configuration.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Limiter{
		enabled:         cfg.Enabled,
		endpointBuckets: make(map[string]*Bucket),
		config:          cfg,
		metrics:         NewMetrics(),
	}

	l.globalBucket = NewBucket(
		float64(cfg.Global.BurstSize),
		cfg.Global.RequestsPerSecond,
	)

	for _, limit := range cfg.Endpoints {
		l.endpointBuckets[limit.Name] = NewBucket(
			float64(limit.BurstSize),
			limit.RequestsPerSecond,
		)
	}

	return l
}

// Allow checks if a request against the named route is allowed.
func (l *Limiter) Allow(endpoint string) *LimitResult {
	if !l.enabled {
		return &LimitResult{
			Allowed:   true,
			LimitType: "disabled",
			Remaining: -1,
		}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.globalBucket.TryConsume(1) {
		retryAfter := l.globalBucket.TimeToWait(1)
		l.metrics.RecordRejection("global", endpoint)
		return &LimitResult{
			Allowed:    false,
			RetryAfter: retryAfter,
			LimitType:  "global",
			Remaining:  l.globalBucket.Tokens(),
		}
	}

	if bucket, exists := l.endpointBuckets[endpoint]; exists {
		if !bucket.TryConsume(1) {
			retryAfter := bucket.TimeToWait(1)
			l.metrics.RecordRejection(endpoint, endpoint)
			return &LimitResult{
				Allowed:    false,
				RetryAfter: retryAfter,
				LimitType:  endpoint,
				Remaining:  bucket.Tokens(),
			}
		}
		l.metrics.RecordAllowed(endpoint)
		return &LimitResult{
			Allowed:   true,
			LimitType: endpoint,
			Remaining: bucket.Tokens(),
		}
	}

	l.metrics.RecordAllowed(endpoint)
	return &LimitResult{
		Allowed:   true,
		LimitType: "global",
		Remaining: l.globalBucket.Tokens(),
	}
}

// IsEnabled returns whether rate limiting is enabled.
func (l *Limiter) IsEnabled() bool {
	return l.enabled
}

// SetEnabled enables or disables rate limiting.
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// GetMetrics returns the current metrics.
func (l *Limiter) GetMetrics() *Metrics {
	return l.metrics
}

// GetEndpointBucket returns the bucket for a specific route (for testing).
func (l *Limiter) GetEndpointBucket(endpoint string) *Bucket {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.endpointBuckets[endpoint]
}

// GetGlobalBucket returns the global bucket (for testing).
func (l *Limiter) GetGlobalBucket() *Bucket {
	return l.globalBucket
}

// Reset resets all buckets to full capacity.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.globalBucket.Reset()
	for _, bucket := range l.endpointBuckets {
		bucket.Reset()
	}
}

// Stats reports current limiter statistics.
type Stats struct {
	Enabled        bool               `json:"enabled"`
	GlobalTokens   float64            `json:"global_tokens"`
	EndpointTokens map[string]float64 `json:"endpoint_tokens"`
}

// GetStats returns current limiter statistics.
func (l *Limiter) GetStats() *Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{
		Enabled:        l.enabled,
		GlobalTokens:   l.globalBucket.Tokens(),
		EndpointTokens: make(map[string]float64),
	}

	for name, bucket := range l.endpointBuckets {
		stats.EndpointTokens[name] = bucket.Tokens()
	}

	return stats
}
