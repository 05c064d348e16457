package utils

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterBurstThenDeny(t *testing.T) {
	r := NewRateLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !r.Allow() {
			t.Fatalf("burst request %d denied", i)
		}
	}
	if r.Allow() {
		t.Fatal("request beyond burst allowed")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	r := NewRateLimiter(100, 1)

	if !r.Allow() {
		t.Fatal("first request denied")
	}
	if r.Allow() {
		t.Fatal("second immediate request allowed")
	}
	time.Sleep(20 * time.Millisecond)
	if !r.Allow() {
		t.Fatal("request after refill denied")
	}
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	r := NewRateLimiter(0.001, 1)
	r.Allow() // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}
