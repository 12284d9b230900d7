package analyses

import (
	"testing"
	"time"
)

func TestPollLimiterBlocksWithinWindow(t *testing.T) {
	current := time.Unix(1000, 0)
	limiter := newPollLimiter(time.Second, func() time.Time { return current })

	if !limiter.Allow("a-1", "10.0.0.1") {
		t.Fatal("expected first poll allowed")
	}
	if limiter.Allow("a-1", "10.0.0.1") {
		t.Fatal("expected immediate re-poll blocked")
	}

	current = current.Add(999 * time.Millisecond)
	if limiter.Allow("a-1", "10.0.0.1") {
		t.Fatal("expected poll inside the window blocked")
	}

	current = current.Add(1 * time.Millisecond)
	if !limiter.Allow("a-1", "10.0.0.1") {
		t.Fatal("expected poll after the window allowed")
	}
}

func TestPollLimiterKeysByAnalysisAndClient(t *testing.T) {
	current := time.Unix(1000, 0)
	limiter := newPollLimiter(time.Second, func() time.Time { return current })

	if !limiter.Allow("a-1", "10.0.0.1") {
		t.Fatal("expected first poll allowed")
	}
	if !limiter.Allow("a-1", "10.0.0.2") {
		t.Fatal("expected different client unaffected")
	}
	if !limiter.Allow("a-2", "10.0.0.1") {
		t.Fatal("expected different analysis unaffected")
	}
}

func TestPollLimiterNilSafe(t *testing.T) {
	var limiter *pollLimiter
	if !limiter.Allow("a-1", "10.0.0.1") {
		t.Fatal("expected nil limiter to allow everything")
	}
	if got := limiter.RetryAfterSeconds(); got != 1 {
		t.Fatalf("expected default retry-after 1s, got %d", got)
	}
}

func TestPollLimiterRetryAfter(t *testing.T) {
	if got := newPollLimiter(3*time.Second, nil).RetryAfterSeconds(); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := newPollLimiter(0, nil).RetryAfterSeconds(); got != 1 {
		t.Fatalf("expected zero window to take the default, got %d", got)
	}
}
