package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/coova/internal/auth"
)

// idleTTL is how long a key may stay quiet before its limiter is forgotten.
const idleTTL = 10 * time.Minute

// LimiterStore keeps one token bucket per key (user or peer, plus method) and
// forgets buckets that have been idle for idleTTL.
type LimiterStore struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	buckets  map[string]*bucket
	stopCh   chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiterStore creates a new store for per-key rate limiters.
// limitPerMinute controls allowed events per minute; burst is the burst capacity.
func NewLimiterStore(limitPerMinute int, burst int, cleanupInterval time.Duration) *LimiterStore {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &LimiterStore{
		limit:   rate.Every(time.Minute / time.Duration(limitPerMinute)),
		burst:   burst,
		buckets: map[string]*bucket{},
		stopCh:  make(chan struct{}),
	}
	go s.cleanupLoop(cleanupInterval)
	return s
}

func (s *LimiterStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.sweep(now)
		case <-s.stopCh:
			return
		}
	}
}

// sweep drops buckets idle since before now-idleTTL.
func (s *LimiterStore) sweep(now time.Time) {
	cutoff := now.Add(-idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (s *LimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Allow reports whether one more event for key is permitted now.
func (s *LimiterStore) Allow(key string) bool {
	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = time.Now()
	s.mu.Unlock()
	return b.limiter.Allow()
}

// Len is the number of live buckets.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// KeyFor picks the limiter key for a call: the authenticated user when the
// auth interceptor has run, otherwise the remote peer address.
func KeyFor(ctx context.Context) string {
	if c, ok := auth.FromContext(ctx); ok {
		return "user:" + c.UserID
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return "peer:" + p.Addr.String()
	}
	return "unknown"
}

// RateLimitUnaryInterceptor returns a grpc.UnaryServerInterceptor that applies
// rate limiting to the supplied methods. It must be chained after the auth
// interceptor so booking requests and message sends are limited per user.
func RateLimitUnaryInterceptor(store *LimiterStore, limitedMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		// Only apply to selected methods
		if !limitedMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		if !store.Allow(fmt.Sprintf("%s|%s", KeyFor(ctx), info.FullMethod)) {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
		}

		return handler(ctx, req)
	}
}
