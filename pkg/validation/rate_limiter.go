package validation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter holds one token bucket per client. A client may burst up to
// maxRequests and then earns tokens back evenly across window.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	every       rate.Limit

	mu      sync.RWMutex
	clients map[string]*clientLimiter
	now     func() time.Time

	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type clientLimiter struct {
	bucket *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter allowing maxRequests per window
// for each client
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	rl := &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		every:       rate.Every(window / time.Duration(maxRequests)),
		clients:     make(map[string]*clientLimiter),
		now:         time.Now,
		done:        make(chan struct{}),
	}

	rl.cleanupTick = time.NewTicker(window)
	go rl.cleanup()

	return rl
}

// Allow takes a token from clientID's bucket, reporting false when it is empty
func (rl *RateLimiter) Allow(clientID string) bool {
	now := rl.now()

	rl.mu.RLock()
	cl, exists := rl.clients[clientID]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// another request may have registered the client meanwhile
		if cl, exists = rl.clients[clientID]; !exists {
			cl = &clientLimiter{bucket: rate.NewLimiter(rl.every, rl.maxRequests)}
			rl.clients[clientID] = cl
		}
		rl.mu.Unlock()
	}

	cl.mu.Lock()
	cl.lastSeen = now
	cl.mu.Unlock()
	return cl.bucket.AllowN(now, 1)
}

// Len returns the number of clients currently tracked
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.clients)
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.removeInactiveClients()
		case <-rl.done:
			return
		}
	}
}

// removeInactiveClients drops clients not seen for two windows. Their
// buckets have refilled by then, so a returning client loses nothing.
func (rl *RateLimiter) removeInactiveClients() {
	cutoff := rl.now().Add(-2 * rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for clientID, cl := range rl.clients {
		cl.mu.Lock()
		stale := cl.lastSeen.Before(cutoff)
		cl.mu.Unlock()
		if stale {
			delete(rl.clients, clientID)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
