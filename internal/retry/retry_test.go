package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// noSleep makes backoff instantaneous in tests.
func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestDo_FatalShortCircuit(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{MaxRetries: 5, Sleep: noSleep}, func() (int, error) {
		calls++
		return 0, errors.New("login rejected: Invalid Credentials")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (fatal errors must not retry)", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	opErr := errors.New("connection reset")
	calls := 0
	_, err := Do(context.Background(), Config{MaxRetries: 3, Sleep: noSleep}, func() (int, error) {
		calls++
		return 0, opErr
	})

	if !errors.Is(err, opErr) {
		t.Errorf("err = %v, want the operation's error", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + 3 retries)", calls)
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), Config{MaxRetries: 3, Sleep: noSleep}, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("page not ready")
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Errorf("value = %q, want %q", v, "ok")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_SuccessIsImmediate(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), Config{Sleep: noSleep}, func() (int, error) {
		calls++
		return 42, nil
	})
	if err != nil || v != 42 || calls != 1 {
		t.Errorf("got (%d, %v) after %d calls, want (42, nil) after 1", v, err, calls)
	}
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, Config{MaxRetries: 2, BaseDelay: time.Millisecond}, func() (int, error) {
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Invalid credentials supplied", true},
		{"profile NOT FOUND", true},
		{"Insufficient Balance for conversion", true},
		{"connection timed out", false},
		{"navigation failed", false},
	}

	for _, tt := range tests {
		got := IsFatal(errors.New(tt.msg), DefaultFatalPatterns)
		if got != tt.want {
			t.Errorf("IsFatal(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}

	if IsFatal(nil, DefaultFatalPatterns) {
		t.Error("IsFatal(nil) = true, want false")
	}
}

func TestBackoff_BoundsAndFloor(t *testing.T) {
	base := 2 * time.Second
	max := 30 * time.Second

	for attempt := 0; attempt < 10; attempt++ {
		for i := 0; i < 50; i++ {
			d := Backoff(attempt, base, max)
			if d < 500*time.Millisecond {
				t.Fatalf("attempt %d: delay %v below 500ms floor", attempt, d)
			}
			if d > max+500*time.Millisecond {
				t.Fatalf("attempt %d: delay %v above max+jitter", attempt, d)
			}
		}
	}
}
