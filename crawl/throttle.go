package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/leadscout"
	"golang.org/x/time/rate"
)

var _ leadscout.DomainLimiter = (*Throttle)(nil)

// Throttle defaults.
const (
	DefaultMinDelay = 250 * time.Millisecond
	DefaultMaxDelay = 30 * time.Second
)

const (
	// ewmaWeight is the weight of the newest latency sample.
	ewmaWeight = 0.3
	// successDecay shrinks the delay after each successful request.
	successDecay = 0.8
)

// Throttle provides adaptive per-domain pacing. Each domain gets a token
// bucket with a burst of 1 whose interval follows the observed latency of
// that domain: it doubles after a transient error, decays after a success,
// and never drops below the latency EWMA or the domain's floor. The interval
// is clamped to [Min, Max]; a floor above Max wins.
type Throttle struct {
	Min time.Duration
	Max time.Duration

	mu      sync.Mutex
	domains map[string]*domainPace
}

type domainPace struct {
	limiter *rate.Limiter
	delay   time.Duration
	ewma    time.Duration
	// floor is the site's own minimum interval, from robots.txt Crawl-delay.
	floor time.Duration
}

// NewThrottle creates a Throttle bounded by [minDelay, maxDelay].
func NewThrottle(minDelay, maxDelay time.Duration) *Throttle {
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Throttle{
		Min:     minDelay,
		Max:     maxDelay,
		domains: make(map[string]*domainPace),
	}
}

// Wait blocks until the domain's pacing allows another request.
func (t *Throttle) Wait(ctx context.Context, domain string) error {
	return t.pace(domain).limiter.Wait(ctx)
}

// Observe feeds the outcome of a request back into the domain's pacing.
func (t *Throttle) Observe(domain string, latency time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.paceLocked(domain)
	switch {
	case leadscout.IsRetryable(err):
		p.delay *= 2
	case err != nil:
		// A 404 or similar answer says nothing about server load.
		return
	default:
		if p.ewma == 0 {
			p.ewma = latency
		} else {
			p.ewma = time.Duration(ewmaWeight*float64(latency) + (1-ewmaWeight)*float64(p.ewma))
		}
		p.delay = max(time.Duration(float64(p.delay)*successDecay), p.ewma)
	}
	t.apply(p)
}

// SetFloor raises the minimum interval of a domain, for example to honor a
// robots.txt Crawl-delay. A non-positive floor removes it.
func (t *Throttle) SetFloor(domain string, floor time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.paceLocked(domain)
	p.floor = max(floor, 0)
	t.apply(p)
}

func (t *Throttle) apply(p *domainPace) {
	p.delay = max(min(max(p.delay, t.Min), t.Max), p.floor)
	p.limiter.SetLimit(rate.Every(p.delay))
}

// Delay returns the current request interval of a domain.
func (t *Throttle) Delay(domain string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paceLocked(domain).delay
}

func (t *Throttle) pace(domain string) *domainPace {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paceLocked(domain)
}

func (t *Throttle) paceLocked(domain string) *domainPace {
	p, ok := t.domains[domain]
	if !ok {
		p = &domainPace{
			limiter: rate.NewLimiter(rate.Every(t.Min), 1),
			delay:   t.Min,
		}
		t.domains[domain] = p
	}
	return p
}
