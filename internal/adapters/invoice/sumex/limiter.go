package sumex

import (
	"context"
	"sync"
)

// SessionLimiter caps the number of concurrently open engine sessions.
// Every open session holds server-side state on the engine, so an unbounded
// batch would exhaust it; builds queue here until a slot frees up.
type SessionLimiter struct {
	semaphore   chan struct{} // Buffered channel with capacity = maxSessions
	maxSessions int
	mu          sync.RWMutex
	activeCount int
	waitCount   int64
	totalOpened int64
}

// NewSessionLimiter creates a new session limiter
func NewSessionLimiter(maxSessions int) *SessionLimiter {
	if maxSessions <= 0 {
		maxSessions = 8
	}

	return &SessionLimiter{
		semaphore:   make(chan struct{}, maxSessions),
		maxSessions: maxSessions,
	}
}

// Acquire acquires a session slot.
// Blocks until a slot is available or the context is cancelled.
func (l *SessionLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.waitCount++
	l.mu.Unlock()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.activeCount++
		l.totalOpened++
		l.waitCount--
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.waitCount--
		l.mu.Unlock()
		return ctx.Err()
	}
}

// Release releases a slot after a session is closed
func (l *SessionLimiter) Release() {
	<-l.semaphore
	l.mu.Lock()
	l.activeCount--
	l.mu.Unlock()
}

// ActiveCount returns the current number of open sessions
func (l *SessionLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activeCount
}

// MaxSessions returns the maximum concurrent sessions allowed
func (l *SessionLimiter) MaxSessions() int {
	return l.maxSessions
}

// LimiterStats holds statistics about the limiter
type LimiterStats struct {
	MaxSessions int
	ActiveCount int
	WaitCount   int64
	TotalOpened int64
	Available   int
}

// Stats returns current statistics
func (l *SessionLimiter) Stats() LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LimiterStats{
		MaxSessions: l.maxSessions,
		ActiveCount: l.activeCount,
		WaitCount:   l.waitCount,
		TotalOpened: l.totalOpened,
		Available:   l.maxSessions - l.activeCount,
	}
}
