package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/cognee-core/engine/internal/ratelimit"
)

func TestHitLimitDisabledAlwaysPermits(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{Enabled: false, RequestsLimit: 1, IntervalSeconds: 60})
	for i := 0; i < 5; i++ {
		if l.HitLimit() {
			t.Fatal("disabled limiter must never report a hit")
		}
	}
}

func TestHitLimitEnforcesCap(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{Enabled: true, RequestsLimit: 3, IntervalSeconds: 60})
	for i := 0; i < 3; i++ {
		if l.HitLimit() {
			t.Fatalf("request %d should have been permitted", i)
		}
	}
	if !l.HitLimit() {
		t.Fatal("4th request within the window should have hit the limit")
	}
}

func TestHitLimitPrunesOutsideWindow(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{Enabled: true, RequestsLimit: 1, IntervalSeconds: 0.2})
	if l.HitLimit() {
		t.Fatal("first request should be permitted")
	}
	if !l.HitLimit() {
		t.Fatal("second request within window should hit the limit")
	}
	time.Sleep(300 * time.Millisecond)
	if l.HitLimit() {
		t.Fatal("request after the window elapsed should be permitted once the old timestamp is pruned")
	}
}

func TestWaitIfNeededReturnsImmediatelyWhenNotLimited(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{Enabled: true, RequestsLimit: 10, IntervalSeconds: 60})
	waited := l.WaitIfNeeded(context.Background())
	if waited > 50*time.Millisecond {
		t.Fatalf("expected near-zero wait, got %v", waited)
	}
}

func TestWaitIfNeededRespectsCancellation(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{Enabled: true, RequestsLimit: 1, IntervalSeconds: 60})
	l.HitLimit() // consume the single permit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	l.WaitIfNeeded(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected WaitIfNeeded to return shortly after context cancellation, took %v", elapsed)
	}
}

func TestForDomainReturnsSameSingleton(t *testing.T) {
	ratelimit.ResetForTests()
	defer ratelimit.ResetForTests()

	a := ratelimit.ForDomain(ratelimit.DomainLLM, ratelimit.Config{Enabled: true, RequestsLimit: 1, IntervalSeconds: 1})
	b := ratelimit.ForDomain(ratelimit.DomainLLM, ratelimit.Config{Enabled: true, RequestsLimit: 1000, IntervalSeconds: 1000})
	if a != b {
		t.Fatal("expected ForDomain to return the same instance on repeat calls, ignoring the second config")
	}

	c := ratelimit.ForDomain(ratelimit.DomainEmbedding, ratelimit.Config{Enabled: true, RequestsLimit: 1, IntervalSeconds: 1})
	if a == c {
		t.Fatal("expected distinct singletons per domain")
	}
}
