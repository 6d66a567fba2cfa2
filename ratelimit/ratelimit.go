// Package ratelimit throttles sensitive endpoints per client.
package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/priyxstudio/sgo/config"
)

// Buckets unused for this long are dropped by the cache janitor.
const idleExpiration = 10 * time.Minute

// Service holds one token bucket per key. It is safe for concurrent use and
// needs no explicit lifecycle; idle buckets expire on their own.
type Service struct {
	enabled bool
	limit   rate.Limit
	burst   int

	mu      sync.Mutex
	buckets *cache.Cache
}

// New returns a service allowing perMinute requests per key with the given
// burst. A disabled service allows everything.
func New(enabled bool, perMinute int, burst int) *Service {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &Service{
		enabled: enabled,
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: cache.New(idleExpiration, idleExpiration),
	}
}

// FromConfig builds a service from the throttle configuration block.
func FromConfig(c config.ThrottleConfiguration) *Service {
	return New(c.Enabled, c.PerMinute, c.Burst)
}

// Enabled reports whether requests are actually throttled.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Allow consumes a token for key and reports whether the request may
// proceed.
func (s *Service) Allow(key string) bool {
	if !s.enabled {
		return true
	}
	return s.limiter(key).Allow()
}

// Len returns the number of live buckets.
func (s *Service) Len() int {
	return s.buckets.ItemCount()
}

func (s *Service) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.buckets.Get(key); ok {
		l := v.(*rate.Limiter)
		s.buckets.SetDefault(key, l)
		return l
	}
	l := rate.NewLimiter(s.limit, s.burst)
	s.buckets.SetDefault(key, l)
	return l
}
