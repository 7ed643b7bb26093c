package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const maxTrackedClients = 100_000

// RateLimiter is a per-client token bucket in front of the endpoints that
// start work (task submission, tool invocation, A2A task creation). Each
// POST spends one token; polling reads and /health are never limited, so a
// client waiting on a task can poll as often as it likes.
type RateLimiter struct {
	rate  float64 // tokens per second
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*tokenBucket
}

type tokenBucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter refilling rate tokens per second up to burst.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:    rate,
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*tokenBucket),
	}
}

// Handler enforces the limit on POST requests.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		remaining, wait := rl.take(clientIP(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests, retry later"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take spends a token for client. A positive wait means the request is
// rejected and says when the next token is due.
func (rl *RateLimiter) take(client string) (remaining int, wait time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[client]
	if !ok {
		if len(rl.clients) >= maxTrackedClients {
			return 0, rl.refillTime(1)
		}
		b = &tokenBucket{tokens: float64(rl.burst), last: now}
		rl.clients[client] = b
	}

	b.tokens = min(float64(rl.burst), b.tokens+now.Sub(b.last).Seconds()*rl.rate)
	b.last = now

	if b.tokens < 1 {
		return 0, rl.refillTime(1 - b.tokens)
	}
	b.tokens--
	return int(b.tokens), 0
}

func (rl *RateLimiter) refillTime(tokens float64) time.Duration {
	return time.Duration(tokens / rl.rate * float64(time.Second))
}

// Run forgets clients idle for longer than maxIdle, checking every interval,
// until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.forgetIdle(maxIdle)
		}
	}
}

func (rl *RateLimiter) forgetIdle(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	for client, b := range rl.clients {
		if b.last.Before(cutoff) {
			delete(rl.clients, client)
		}
	}
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// clientIP is the host part of RemoteAddr. Forwarding headers are ignored
// since any client can set them.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
