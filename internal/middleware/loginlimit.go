package middleware

import (
	"sync"
	"time"
)

// LoginLimiter locks a client/username pair out after repeated failed
// credential attempts. Successful logins clear the record, so only a
// sustained guessing streak trips the lockout. Expired records are
// pruned on the write path; there is no sweeper goroutine to tear down.
type LoginLimiter struct {
	mu          sync.Mutex
	failures    map[string]*failureRecord
	maxFailures int
	lockout     time.Duration
	now         func() time.Time
}

type failureRecord struct {
	count       int
	lastFailure time.Time
	lockedUntil time.Time
}

func NewLoginLimiter(maxFailures int, lockout time.Duration) *LoginLimiter {
	return NewLoginLimiterWithNow(maxFailures, lockout, time.Now)
}

func NewLoginLimiterWithNow(maxFailures int, lockout time.Duration, now func() time.Time) *LoginLimiter {
	return &LoginLimiter{
		failures:    make(map[string]*failureRecord),
		maxFailures: maxFailures,
		lockout:     lockout,
		now:         now,
	}
}

// LoginKey scopes the failure budget to one client/username pair, so a
// guessing client cannot burn the budget of everyone behind the same
// address, nor lock a single account from many addresses at once.
func LoginKey(clientIP, username string) string {
	return clientIP + "|" + username
}

// Allowed reports whether an attempt for key may proceed.
func (ll *LoginLimiter) Allowed(key string) bool {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	rec, ok := ll.failures[key]
	if !ok {
		return true
	}
	return !ll.now().Before(rec.lockedUntil)
}

// RecordFailure counts one failed attempt. A streak of maxFailures
// within the lockout window locks the key out for the lockout duration.
func (ll *LoginLimiter) RecordFailure(key string) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	now := ll.now()
	ll.pruneLocked(now)

	rec := ll.failures[key]
	if rec == nil {
		rec = &failureRecord{}
		ll.failures[key] = rec
	}
	if now.Sub(rec.lastFailure) > ll.lockout {
		rec.count = 0
	}
	rec.count++
	rec.lastFailure = now
	if rec.count >= ll.maxFailures {
		rec.lockedUntil = now.Add(ll.lockout)
		rec.count = 0
	}
}

// Reset clears the failure streak for key after a successful login.
func (ll *LoginLimiter) Reset(key string) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	delete(ll.failures, key)
}

func (ll *LoginLimiter) pruneLocked(now time.Time) {
	for key, rec := range ll.failures {
		if now.After(rec.lockedUntil) && now.Sub(rec.lastFailure) > ll.lockout {
			delete(ll.failures, key)
		}
	}
}
