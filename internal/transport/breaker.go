package transport

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerFactory produces one gobreaker.CircuitBreaker per WADO
// endpoint, keyed by base URL. A run of TransientHttp failures against
// one PACS opens that endpoint's breaker so a dying origin stops
// eating worker-pool slack across every queued task that targets it.
// This is additive to, not a replacement for, the per-job retry rules.
type BreakerFactory struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewBreakerFactory() *BreakerFactory {
	return &BreakerFactory{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (f *BreakerFactory) For(endpointKey string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.breakers[endpointKey]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        endpointKey,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	f.breakers[endpointKey] = b
	return b
}

