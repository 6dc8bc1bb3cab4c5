package ratelimit

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fixedClock(l *Limiter) *time.Time {
	now := time.Now()
	l.now = func() time.Time { return now }
	return &now
}

func TestAllow_Burst(t *testing.T) {
	l := New(map[string]Rate{"analyze": {PerMinute: 1, Burst: 3}})
	fixedClock(l)

	for i := 0; i < 3; i++ {
		if err := l.Allow("analyze"); err != nil {
			t.Fatalf("call %d within burst rejected: %v", i+1, err)
		}
	}
	err := l.Allow("analyze")
	if !errors.Is(err, ErrLimited) {
		t.Errorf("call after burst: error = %v, want ErrLimited", err)
	}
}

func TestAllow_Refill(t *testing.T) {
	tests := []struct {
		name    string
		rate    Rate
		used    int
		wait    time.Duration
		allowed int
	}{
		{"one token per minute", Rate{PerMinute: 1, Burst: 2}, 2, time.Minute, 1},
		{"refill capped at burst", Rate{PerMinute: 600, Burst: 3}, 3, time.Hour, 3},
		{"partial refill is not enough", Rate{PerMinute: 1, Burst: 1}, 1, 30 * time.Second, 0},
		{"zero rate never refills", Rate{PerMinute: 0, Burst: 2}, 2, time.Hour, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(map[string]Rate{"tool": tt.rate})
			now := fixedClock(l)
			for i := 0; i < tt.used; i++ {
				if err := l.Allow("tool"); err != nil {
					t.Fatalf("setup call %d: %v", i, err)
				}
			}
			*now = now.Add(tt.wait)

			got := 0
			for l.Allow("tool") == nil {
				got++
				if got > 100 {
					t.Fatal("limiter never refused")
				}
			}
			if got != tt.allowed {
				t.Errorf("allowed %d calls after waiting, want %d", got, tt.allowed)
			}
		})
	}
}

func TestAllow_IndependentTools(t *testing.T) {
	l := New(map[string]Rate{"a": {Burst: 1}, "b": {Burst: 1}})
	if err := l.Allow("a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow("a"); err == nil {
		t.Error("a should be exhausted")
	}
	if err := l.Allow("b"); err != nil {
		t.Errorf("b should have its own bucket: %v", err)
	}
}

func TestAllow_Unlimited(t *testing.T) {
	var nilLimiter *Limiter
	if err := nilLimiter.Allow("anything"); err != nil {
		t.Errorf("nil limiter: %v", err)
	}
	l := New(nil)
	for i := 0; i < 1000; i++ {
		if err := l.Allow("unconfigured"); err != nil {
			t.Fatalf("unconfigured tool limited: %v", err)
		}
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l := New(map[string]Rate{"tool": {PerMinute: 0, Burst: 50}})
	fixedClock(l)

	var wg sync.WaitGroup
	var allowed atomic.Int64
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("tool") == nil {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if allowed.Load() != 50 {
		t.Errorf("allowed %d concurrent calls, want exactly the burst of 50", allowed.Load())
	}
}
