package usage

import (
	"sync"
	"time"
)

// RateLimiter enforces per-key requests-per-minute with an in-memory
// sliding window. State is per-instance; keys with no recent traffic are
// swept periodically.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[uint][]time.Time
}

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[uint][]time.Time),
	}
	go rl.cleanup()
	return rl
}

// Allow records the request and reports whether the key is within its RPM
// limit. A limit of zero or less means unlimited.
func (rl *RateLimiter) Allow(apiKeyID uint, limitRpm int) bool {
	if limitRpm <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-1 * time.Minute)

	recent := rl.requests[apiKeyID][:0]
	for _, reqTime := range rl.requests[apiKeyID] {
		if reqTime.After(windowStart) {
			recent = append(recent, reqTime)
		}
	}
	rl.requests[apiKeyID] = recent

	if len(recent) >= limitRpm {
		return false
	}

	rl.requests[apiKeyID] = append(recent, now)
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		windowStart := time.Now().Add(-1 * time.Minute)

		for apiKeyID, requests := range rl.requests {
			recent := requests[:0]
			for _, reqTime := range requests {
				if reqTime.After(windowStart) {
					recent = append(recent, reqTime)
				}
			}
			if len(recent) == 0 {
				delete(rl.requests, apiKeyID)
			} else {
				rl.requests[apiKeyID] = recent
			}
		}
		rl.mu.Unlock()
	}
}
