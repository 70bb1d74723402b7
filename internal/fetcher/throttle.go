package fetcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostThrottle enforces the per-host politeness delay: at most one request
// per host per delay interval, shared by all workers.
type hostThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delays   map[string]time.Duration
	floor    time.Duration
}

func newHostThrottle(floor time.Duration) *hostThrottle {
	return &hostThrottle{
		limiters: make(map[string]*rate.Limiter),
		delays:   make(map[string]time.Duration),
		floor:    floor,
	}
}

// setDelay raises the delay for one host (never lowers it below the floor).
func (t *hostThrottle) setDelay(host string, delay time.Duration) {
	if delay < t.floor {
		delay = t.floor
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.delays[host] >= delay {
		return
	}
	t.delays[host] = delay
	t.limiters[host] = rate.NewLimiter(rate.Every(delay), 1)
}

// wait blocks until this host's limiter grants a slot or ctx is done.
func (t *hostThrottle) wait(ctx context.Context, host string) error {
	t.mu.Lock()
	lim, ok := t.limiters[host]
	if !ok {
		delay := t.floor
		if delay <= 0 {
			t.mu.Unlock()
			return nil
		}
		lim = rate.NewLimiter(rate.Every(delay), 1)
		t.limiters[host] = lim
		t.delays[host] = delay
	}
	t.mu.Unlock()
	return lim.Wait(ctx)
}
