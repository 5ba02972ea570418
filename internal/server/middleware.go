package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter implements per-connection rate limiting using a sliding
// window. One impatient admin mashing "reveal next" should not affect
// other rooms' connections.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time // connectionID -> timestamps of recent requests
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow checks if a connection may send another message. Timestamps
// outside the window are dropped before counting.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionID]
	valid := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= r.maxRequests {
		r.requests[connectionID] = valid
		return false
	}

	valid = append(valid, now)
	r.requests[connectionID] = valid
	return true
}

// RemoveConnection drops rate limit data when a websocket disconnects.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// ValidateMessageType rejects unknown message types with a clear error
// instead of a silent drop.
func ValidateMessageType(msgType string) error {
	validTypes := map[string]bool{
		"ping":             true,
		"create_room":      true,
		"join_room":        true,
		"list_rooms":       true,
		"get_state":        true,
		"distribute_cards": true,
		"submit_order":     true,
		"reveal_next":      true,
		"reveal_state":     true,
		"continue_round":   true,
		"restart":          true,
	}

	if !validTypes[msgType] {
		return fmt.Errorf("INVALID_MESSAGE_TYPE: Unknown message type '%s'", msgType)
	}
	return nil
}
