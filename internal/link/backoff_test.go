package link

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestNextBackoffDelay(t *testing.T) {
	cfg := DefaultBackoff()
	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		15 * time.Second,
		15 * time.Second,
	}

	for i, w := range want {
		if got := NextBackoffDelay(cfg, i+1, nil); got != w {
			t.Fatalf("attempt %d: got %s want %s", i+1, got, w)
		}
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	cfg := DefaultBackoff()
	cfg.Jitter = true
	rng := rand.New(rand.NewSource(1))

	for attempt := 1; attempt <= 10; attempt++ {
		base := NextBackoffDelay(DefaultBackoff(), attempt, nil)
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < base/2 || got >= base*3/2 {
			t.Fatalf("attempt %d: jittered delay %s outside [%s, %s)", attempt, got, base/2, base*3/2)
		}
	}
}

func TestNextBackoffDelayDisabled(t *testing.T) {
	if got := NextBackoffDelay(BackoffConfig{}, 3, nil); got != 0 {
		t.Fatalf("expected no delay, got %s", got)
	}
}

func TestSleepWithContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if sleepWithContext(ctx, time.Minute) {
		t.Fatal("expected cancelled sleep")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("cancellation took %s", time.Since(start))
	}
}
