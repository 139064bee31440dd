package resilience

import (
	"errors"
	"testing"
	"time"
)

var errUpstreamDown = errors.New("upstream timeout")

// torreBreaker builds a breaker tuned like the Torre client's but with a
// short reset timeout so tests can cross it.
func torreBreaker(maxFailures, halfOpenMax int) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "torre",
		MaxFailures:  maxFailures,
		ResetTimeout: 20 * time.Millisecond,
		HalfOpenMax:  halfOpenMax,
	})
}

func trip(cb *CircuitBreaker, failures int) {
	for i := 0; i < failures; i++ {
		_ = cb.Execute(func() error { return errUpstreamDown })
	}
}

func TestCircuitBreakerForwardsWhileClosed(t *testing.T) {
	cb := torreBreaker(3, 1)

	calls := 0
	if err := cb.Execute(func() error { calls++; return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 1 {
		t.Fatal("the lookup was not forwarded")
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "torre",
		MaxFailures:  3,
		ResetTimeout: time.Hour,
	})
	trip(cb, 3)

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after 3 failures", cb.State())
	}

	// Open means the upstream is not called at all.
	err := cb.Execute(func() error {
		t.Error("lookup reached the upstream through an open breaker")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerSuccessClearsFailureStreak(t *testing.T) {
	cb := torreBreaker(3, 1)

	trip(cb, 2)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	trip(cb, 2)

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed; the streak should restart after a success", cb.State())
	}
}

func TestCircuitBreakerRecoversThroughProbes(t *testing.T) {
	cb := torreBreaker(2, 2)
	trip(cb, 2)

	time.Sleep(25 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after the reset timeout", cb.State())
	}

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after successful probes", cb.State())
	}
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := torreBreaker(2, 3)
	trip(cb, 2)

	time.Sleep(25 * time.Millisecond)
	if err := cb.Execute(func() error { return errUpstreamDown }); !errors.Is(err, errUpstreamDown) {
		t.Fatalf("probe err = %v, want the upstream error", err)
	}

	// lastFailure was just refreshed, so the breaker reports open again.
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after a failed probe", cb.State())
	}
}

func TestCircuitBreakerManualReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "torre",
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})
	trip(cb, 2)

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after Reset", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("Execute after Reset: %v", err)
	}
}

func TestCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "torre"})
	if cb.maxFailures != 5 || cb.resetTimeout != 30*time.Second || cb.halfOpenMax != 3 {
		t.Errorf("defaults = %d/%v/%d, want 5/30s/3",
			cb.maxFailures, cb.resetTimeout, cb.halfOpenMax)
	}
}

func TestStateNames(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
