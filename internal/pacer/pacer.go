// Package pacer enforces a minimum interval between successive calls to the
// upstream feed. It blocks the caller; there is no background scheduler and
// no burst allowance.
package pacer

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval keeps the caller comfortably under the feed's per-second limit.
const DefaultInterval = 1500 * time.Millisecond

// Clock abstracts time so tests can advance it without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Pacer spaces out requests so at least Interval passes between the end of one
// request and the start of the next.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	clock    Clock
	last     time.Time
	waits    int
	waited   time.Duration
}

// New returns a Pacer. A nil clock means the wall clock; a non-positive
// interval means DefaultInterval.
func New(interval time.Duration, clock Clock) *Pacer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &Pacer{interval: interval, clock: clock}
}

// Interval returns the configured minimum spacing.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until at least Interval has elapsed since the previous request
// finished, then records the current time as the start of a new request. A
// request counts as finished when Done is called; without Done, its start is
// used. The first call never blocks.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		remaining := p.interval - p.clock.Now().Sub(p.last)
		if remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.clock.After(remaining):
			}
			p.waits++
			p.waited += remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.last = p.clock.Now()
	return nil
}

// Clock returns the clock the pacer measures with.
func (p *Pacer) Clock() Clock {
	return p.clock
}

// Done marks the end of the request started by the last Wait, so the next
// interval is measured from the moment the response arrived.
func (p *Pacer) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if now := p.clock.Now(); now.After(p.last) {
		p.last = now
	}
}

// Stats reports how many calls had to block and for how long in total.
func (p *Pacer) Stats() (waits int, waited time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits, p.waited
}
