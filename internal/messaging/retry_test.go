package messaging

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyRetriesTransientErrors(t *testing.T) {
	var slept []time.Duration
	policy := RetryPolicy{
		MaxAttempts: 3,
		Delay:       5 * time.Second,
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("gateway timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(slept) != 2 || slept[0] != 5*time.Second {
		t.Errorf("slept = %v, want two 5s delays", slept)
	}
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, Sleep: func(time.Duration) {}}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return Permanent(errors.New("invalid recipient"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries on permanent failure)", calls)
	}
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Sleep: func(time.Duration) {}}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return errors.New("still down")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicyHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := RetryPolicy{MaxAttempts: 3, Sleep: func(time.Duration) {}}

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		return errors.New("unreachable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestRetryingServiceRecoversAfterTransientFailure(t *testing.T) {
	mock := NewMockService()
	mock.FailNTimes(1, errors.New("connection reset"))

	svc := NewRetryingService(mock, RetryPolicy{MaxAttempts: 3, Sleep: func(time.Duration) {}})
	if err := svc.SendMessage(context.Background(), "+919876543210", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if got := mock.Sent(); len(got) != 1 || got[0].Body != "hello" {
		t.Errorf("sent = %+v, want one hello", got)
	}
}
