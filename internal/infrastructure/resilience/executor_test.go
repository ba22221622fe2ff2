package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func alwaysRetryable(error) ErrorClassification {
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

func TestZeroConfigMakesSingleAttempt(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false})

	attempts := 0
	errTemp := errors.New("connection reset")
	err := exec.Execute(context.Background(), "backend.upload", func(context.Context) error {
		attempts++
		return errTemp
	}, alwaysRetryable)
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected original error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestExecuteRetriesWhenConfigured(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	})

	attempts := 0
	err := exec.Execute(context.Background(), "backend.health", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	}, alwaysRetryable)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	var transitions []string
	exec := NewExecutor(Config{
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
		OnStateChange: func(operation, from, to string) {
			transitions = append(transitions, operation+":"+from+"->"+to)
		},
	})

	errDown := errors.New("backend down")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "backend.analyze", func(context.Context) error {
			return errDown
		}, nil)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected backend error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "backend.analyze", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if exec.State("backend.analyze") != gobreaker.StateOpen.String() {
		t.Fatalf("expected open state, got %s", exec.State("backend.analyze"))
	}
	if exec.State("backend.search") != gobreaker.StateClosed.String() {
		t.Fatalf("expected untouched operation closed")
	}
	if len(transitions) != 1 || transitions[0] != "backend.analyze:closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestClientRejectionsDoNotTripBreaker(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:     true,
		BreakerMinRequests: 1,
	})
	errRejected := errors.New("unsupported file")
	notRecorded := func(error) ErrorClassification { return ErrorClassification{} }

	for i := 0; i < 3; i++ {
		err := exec.Execute(context.Background(), "backend.upload", func(context.Context) error {
			return errRejected
		}, notRecorded)
		if !errors.Is(err, errRejected) {
			t.Fatalf("expected rejection passthrough, got %v", err)
		}
	}
	if exec.State("backend.upload") != gobreaker.StateClosed.String() {
		t.Fatalf("expected breaker to stay closed")
	}
}

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	cfg := Config{BreakerMinRequests: 2, RetryMaxBackoff: time.Millisecond}.withDefaults(BrokerDefaults())
	if cfg.BreakerMinRequests != 2 || cfg.BreakerOpenTimeout != 5*time.Second {
		t.Fatalf("unexpected breaker config %+v", cfg)
	}
	if cfg.RetryMaxAttempts != 1 || cfg.RetryMaxBackoff != cfg.RetryInitialBackoff {
		t.Fatalf("expected max backoff raised to initial backoff, got %+v", cfg)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("breaker must stay disabled unless asked for")
	}
}
