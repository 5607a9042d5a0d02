// Package auth implements NIP-42 challenge/response authentication: event
// validation, privileged-event authorization, and per-IP throttling of
// repeated failed authentication attempts.
package auth

import (
	"sync"
	"time"
)

// BaseBlockDuration is how long an IP is blocked after its first offense.
// Each subsequent offense from the same IP doubles the duration.
const BaseBlockDuration = 10 * time.Minute

// offenseThreshold is the number of failed attempts that trigger a block.
const offenseThreshold = 3

// Throttle tracks failed AUTH attempts by IP address and blocks IPs that
// exceed the offense threshold, escalating the block duration on repeat
// offenses. A block persists until the IP successfully authenticates, not
// until its duration elapses - that duration only governs how long a
// client is made to wait before a retry would even be considered.
type Throttle struct {
	mu             sync.RWMutex
	failedAttempts map[string]int
	blockedUntil   map[string]time.Time
	offenseCount   map[string]int
	blockDuration  map[string]time.Duration
}

// NewThrottle returns an empty Throttle.
func NewThrottle() *Throttle {
	return &Throttle{
		failedAttempts: make(map[string]int),
		blockedUntil:   make(map[string]time.Time),
		offenseCount:   make(map[string]int),
		blockDuration:  make(map[string]time.Duration),
	}
}

// Global is the process-wide throttle shared by every connection.
var Global = NewThrottle()

// RecordFailedAttempt records a failed AUTH attempt for ip. Once it has
// failed offenseThreshold times, the IP is blocked for an escalating
// duration: BaseBlockDuration on the first offense, doubling on each
// repeat. It reports whether ip is now blocked.
func (t *Throttle) RecordFailedAttempt(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isBlockedLocked(ip) {
		return true
	}

	t.failedAttempts[ip]++
	if t.failedAttempts[ip] < offenseThreshold {
		return false
	}

	t.offenseCount[ip]++
	duration := BaseBlockDuration
	for i := 1; i < t.offenseCount[ip]; i++ {
		duration *= 2
	}
	t.blockDuration[ip] = duration
	t.blockedUntil[ip] = time.Now().Add(duration)
	return true
}

// IsBlocked reports whether ip is currently blocked.
func (t *Throttle) IsBlocked(ip string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isBlockedLocked(ip)
}

func (t *Throttle) isBlockedLocked(ip string) bool {
	_, blocked := t.blockedUntil[ip]
	return blocked
}

// BlockDurationElapsed reports whether the nominal block duration for ip
// has passed, even though it remains blocked until it authenticates.
// Useful only for surfacing a "try again around" hint to the client.
func (t *Throttle) BlockDurationElapsed(ip string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	until, ok := t.blockedUntil[ip]
	if !ok {
		return false
	}
	return time.Now().After(until)
}

// BlockedUntil returns the time ip's current block's nominal duration
// expires, or the zero Time if ip is not blocked.
func (t *Throttle) BlockedUntil(ip string) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blockedUntil[ip]
}

// Authenticate clears ip's block on a successful authentication, but keeps
// its offense count so a future offense still escalates the block
// duration from where it left off.
func (t *Throttle) Authenticate(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failedAttempts, ip)
	delete(t.blockedUntil, ip)
}

// Reset clears all tracking for ip, including its offense history.
func (t *Throttle) Reset(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failedAttempts, ip)
	delete(t.blockedUntil, ip)
	delete(t.offenseCount, ip)
	delete(t.blockDuration, ip)
}
