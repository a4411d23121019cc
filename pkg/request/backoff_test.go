package request

import (
	"context"
	"testing"
	"time"

	"locex/pkg/config"
)

func testCooldown(base, max time.Duration) *providerCooldown {
	return newProviderCooldown(config.RequestConfig{
		BackoffBase: config.Duration(base),
		BackoffMax:  config.Duration(max),
	})
}

func TestCooldownDoublesAndCaps(t *testing.T) {
	tests := []struct {
		name      string
		strikes   int
		wantMinMs int64
		wantMaxMs int64
	}{
		{"first strike", 1, 1000, 1200},
		{"second strike", 2, 2000, 2400},
		{"third strike", 3, 4000, 4800},
		{"capped", 10, 60000, 66000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testCooldown(time.Second, time.Minute)
			for i := 0; i < tt.strikes; i++ {
				p.Failure("petscan")
			}

			strikes, until := p.state("petscan")
			if strikes != tt.strikes {
				t.Errorf("strikes = %d, want %d", strikes, tt.strikes)
			}
			windowMs := time.Until(until).Milliseconds()
			if windowMs < tt.wantMinMs || windowMs > tt.wantMaxMs {
				t.Errorf("window = %dms, want %d..%dms", windowMs, tt.wantMinMs, tt.wantMaxMs)
			}
		})
	}
}

func TestCooldownRecoversStepwise(t *testing.T) {
	p := testCooldown(time.Second, time.Minute)
	p.Failure("sparql")
	p.Failure("sparql")
	p.Failure("sparql")

	p.Success("sparql")
	if strikes, _ := p.state("sparql"); strikes != 2 {
		t.Errorf("strikes after one success = %d, want 2", strikes)
	}

	p.Success("sparql")
	p.Success("sparql")
	if strikes, until := p.state("sparql"); strikes != 0 || !until.IsZero() {
		t.Errorf("recovered provider keeps mark: strikes=%d until=%v", strikes, until)
	}
}

func TestCooldownIsolatesProviders(t *testing.T) {
	p := testCooldown(time.Second, time.Minute)
	p.Failure("petscan")
	p.Failure("petscan")

	if strikes, _ := p.state("petscan"); strikes != 2 {
		t.Errorf("petscan strikes = %d, want 2", strikes)
	}
	if strikes, _ := p.state("toolforge"); strikes != 0 {
		t.Errorf("toolforge strikes = %d, want 0", strikes)
	}
}

func TestCooldownWaitNoMark(t *testing.T) {
	p := testCooldown(time.Second, time.Minute)
	start := time.Now()
	if err := p.Wait(context.Background(), "commons"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Wait slept for an unmarked provider")
	}
}

func TestCooldownWaitHonorsContext(t *testing.T) {
	p := testCooldown(10*time.Second, time.Minute)
	p.Failure("wikidata")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx, "wikidata"); err != context.DeadlineExceeded {
		t.Errorf("Wait = %v, want context.DeadlineExceeded", err)
	}
}
