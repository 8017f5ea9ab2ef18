package graph

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestRetryPolicy_ValidateRejectsNegativeMaxRetries(t *testing.T) {
	p := RetryPolicy{MaxRetries: -1}
	if err := p.Validate(); !errors.Is(err, ErrInvalidRetryPolicy) {
		t.Fatalf("expected ErrInvalidRetryPolicy, got %v", err)
	}
}

func TestRetryPolicy_ValidateRejectsSubOneMultiplierForExponential(t *testing.T) {
	p := RetryPolicy{Strategy: Exponential, Multiplier: 0.5}
	if err := p.Validate(); !errors.Is(err, ErrInvalidRetryPolicy) {
		t.Fatalf("expected ErrInvalidRetryPolicy, got %v", err)
	}
}

func TestRetryPolicy_ValidateRejectsMaxDelayBelowInitialDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 500 * time.Millisecond}
	if err := p.Validate(); !errors.Is(err, ErrInvalidRetryPolicy) {
		t.Fatalf("expected ErrInvalidRetryPolicy, got %v", err)
	}
}

func TestRetryPolicy_FixedAlwaysReturnsInitialDelay(t *testing.T) {
	p := RetryPolicy{Strategy: Fixed, InitialDelay: 250 * time.Millisecond}
	for attempt := 0; attempt < 3; attempt++ {
		if got := p.computeDelay(attempt, nil); got != 250*time.Millisecond {
			t.Fatalf("attempt %d: expected fixed 250ms, got %v", attempt, got)
		}
	}
}

func TestRetryPolicy_ExponentialGrowsAndCaps(t *testing.T) {
	p := RetryPolicy{Strategy: Exponential, InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}
	if got := p.computeDelay(0, nil); got != 100*time.Millisecond {
		t.Fatalf("attempt 0: expected 100ms, got %v", got)
	}
	if got := p.computeDelay(1, nil); got != 200*time.Millisecond {
		t.Fatalf("attempt 1: expected 200ms, got %v", got)
	}
	if got := p.computeDelay(10, nil); got != time.Second {
		t.Fatalf("attempt 10: expected capped at 1s, got %v", got)
	}
}

func TestRetryPolicy_ExponentialJitterStaysWithinBounds(t *testing.T) {
	p := RetryPolicy{
		Strategy: ExponentialJitter, InitialDelay: 100 * time.Millisecond,
		Multiplier: 2, MaxDelay: time.Second, JitterMax: 50 * time.Millisecond,
	}
	rng := rand.New(rand.NewSource(1))
	for attempt := 0; attempt < 5; attempt++ {
		got := p.computeDelay(attempt, rng)
		if got < 0 || got > time.Second+50*time.Millisecond {
			t.Fatalf("attempt %d: delay %v out of expected bounds", attempt, got)
		}
	}
}

func TestEffectiveTimeout_NodeOverrideWins(t *testing.T) {
	if got := effectiveTimeout(NodePolicy{Timeout: time.Second}, time.Minute); got != time.Second {
		t.Fatalf("expected node override, got %v", got)
	}
	if got := effectiveTimeout(NodePolicy{}, time.Minute); got != time.Minute {
		t.Fatalf("expected graph default, got %v", got)
	}
}

func TestEffectiveRetryPolicy_NodeOverrideWins(t *testing.T) {
	nodePolicy := &RetryPolicy{MaxRetries: 1}
	graphPolicy := &RetryPolicy{MaxRetries: 5}
	if got := effectiveRetryPolicy(NodePolicy{RetryPolicy: nodePolicy}, graphPolicy); got != nodePolicy {
		t.Fatal("expected node override policy")
	}
	if got := effectiveRetryPolicy(NodePolicy{}, graphPolicy); got != graphPolicy {
		t.Fatal("expected graph default policy")
	}
}
