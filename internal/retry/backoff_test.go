package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries: maxRetries,
		BaseDelay:  5 * time.Millisecond,
		MaxDelay:   20 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     false, // Disable jitter for predictable testing
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries=3, got %d", config.MaxRetries)
	}
	if config.BaseDelay != time.Second {
		t.Errorf("Expected BaseDelay=1s, got %v", config.BaseDelay)
	}
	if !config.Jitter {
		t.Error("Expected Jitter=true")
	}
}

func TestExternalCallConfig(t *testing.T) {
	config := ExternalCallConfig()

	if config.MaxRetries != 1 {
		t.Errorf("Expected MaxRetries=1, got %d", config.MaxRetries)
	}
	if config.MaxDelay > 2*time.Second {
		t.Errorf("Expected MaxDelay<=2s, got %v", config.MaxDelay)
	}
}

func TestDo_Success(t *testing.T) {
	result := Do(context.Background(), fastConfig(2), func(ctx context.Context) error {
		return nil
	}, nil)

	if !result.Success {
		t.Error("Expected success=true")
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}
	if len(result.Reasons) != 0 {
		t.Errorf("Expected no reasons, got %d", len(result.Reasons))
	}
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts := 0
	result := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary failure")
		}
		return nil
	}, nil)

	if !result.Success {
		t.Error("Expected success=true")
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	if len(result.Reasons) != 2 {
		t.Errorf("Expected 2 reasons, got %d", len(result.Reasons))
	}
	if result.LastError != nil {
		t.Errorf("Expected no last error after success, got %v", result.LastError)
	}
}

func TestDo_AllAttemptsFail(t *testing.T) {
	expectedError := errors.New("503 service unavailable")
	result := Do(context.Background(), fastConfig(2), func(ctx context.Context) error {
		return expectedError
	}, nil)

	if result.Success {
		t.Error("Expected success=false")
	}
	if result.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", result.Attempts)
	}
	if result.LastError != expectedError {
		t.Errorf("Expected last error to be %v, got %v", expectedError, result.LastError)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	result := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		attempts++
		return Permanent(errors.New("invalid api key"))
	}, nil)

	if result.Success {
		t.Error("Expected success=false")
	}
	if attempts != 1 {
		t.Errorf("Expected a single attempt, got %d", attempts)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	config := Config{
		MaxRetries: 5,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result := Do(ctx, config, func(ctx context.Context) error {
		return errors.New("connection refused")
	}, nil)

	if result.Success {
		t.Error("Expected success=false due to context cancellation")
	}
	if !errors.Is(result.LastError, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", result.LastError)
	}
	if result.Attempts > 2 {
		t.Errorf("Expected few attempts due to quick timeout, got %d", result.Attempts)
	}
}

func TestCalculateDelay(t *testing.T) {
	config := Config{
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}

	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if got := calculateDelay(config, attempt); got != want {
			t.Errorf("attempt %d: expected %v, got %v", attempt, want, got)
		}
	}

	if got := calculateDelay(config, 10); got != 10*time.Second {
		t.Errorf("Expected capped delay of 10s, got %v", got)
	}
}

func TestCalculateDelay_WithJitter(t *testing.T) {
	config := Config{
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}

	expected := 2 * time.Second
	tolerance := 200 * time.Millisecond
	for i := 0; i < 20; i++ {
		d := calculateDelay(config, 1)
		if d < expected-tolerance || d > expected+tolerance {
			t.Fatalf("delay %v outside ±10%% of %v", d, expected)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	retryable := []error{
		errors.New("connection refused"),
		errors.New("connection timeout"),
		errors.New("HTTP 429 Too Many Requests"),
		errors.New("HTTP 503 Service Unavailable"),
		fmt.Errorf("summarize: %w", context.DeadlineExceeded),
	}
	for _, err := range retryable {
		if !IsRetryableError(err) {
			t.Errorf("Expected %v to be retryable", err)
		}
	}

	nonRetryable := []error{
		nil,
		errors.New("invalid input"),
		errors.New("HTTP 401 Unauthorized"),
		Permanent(errors.New("timeout configuring client")),
		context.Canceled,
	}
	for _, err := range nonRetryable {
		if IsRetryableError(err) {
			t.Errorf("Expected %v to NOT be retryable", err)
		}
	}
}
