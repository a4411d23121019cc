package request

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"locex/pkg/config"
)

// providerCooldown tracks consecutive upstream failures per provider and
// keeps an earliest-next-request mark. Wikimedia endpoints throttle hard,
// so each failure doubles the window up to the configured cap and each
// success walks it back one step.
type providerCooldown struct {
	mu    sync.Mutex
	marks map[string]*cooldownMark
	base  time.Duration
	max   time.Duration
}

type cooldownMark struct {
	strikes int
	until   time.Time
}

func newProviderCooldown(cfg config.RequestConfig) *providerCooldown {
	base := time.Duration(cfg.BackoffBase)
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := time.Duration(cfg.BackoffMax)
	if max <= 0 {
		max = 30 * time.Second
	}
	return &providerCooldown{marks: make(map[string]*cooldownMark), base: base, max: max}
}

// Wait blocks until the provider's cooldown window has passed or the
// context is done. A provider with no recorded failures never waits.
func (p *providerCooldown) Wait(ctx context.Context, provider string) error {
	p.mu.Lock()
	mark, ok := p.marks[provider]
	var until time.Time
	if ok {
		until = mark.until
	}
	p.mu.Unlock()

	if !ok || !time.Now().Before(until) {
		return nil
	}
	timer := time.NewTimer(time.Until(until))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failure extends the provider's cooldown window.
func (p *providerCooldown) Failure(provider string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark, ok := p.marks[provider]
	if !ok {
		mark = &cooldownMark{}
		p.marks[provider] = mark
	}
	mark.strikes++

	delay := p.max
	if shift := mark.strikes - 1; shift < 16 {
		if d := p.base << shift; d < p.max {
			delay = d
		}
	}
	// Up to 10% jitter keeps synchronized clients from herding.
	delay += time.Duration(rand.Int63n(int64(delay)/10 + 1))
	mark.until = time.Now().Add(delay)
}

// Success walks the strike count back; a fully recovered provider drops
// its mark entirely.
func (p *providerCooldown) Success(provider string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark, ok := p.marks[provider]
	if !ok {
		return
	}
	if mark.strikes > 0 {
		mark.strikes--
	}
	if mark.strikes == 0 {
		delete(p.marks, provider)
	}
}

func (p *providerCooldown) state(provider string) (strikes int, until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mark, ok := p.marks[provider]; ok {
		return mark.strikes, mark.until
	}
	return 0, time.Time{}
}
