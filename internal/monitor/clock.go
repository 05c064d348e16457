package monitor

import (
	"context"
	"time"
)

// Clock abstracts time so state-machine behavior is reproducible under test.
type Clock interface {
	Now() time.Time

	// Sleep pauses for d or until the context is cancelled. It returns false
	// when the context ended the sleep early.
	Sleep(ctx context.Context, d time.Duration) bool
}

// RealClock is the wall clock.
type RealClock struct{}

// Now returns the current wall time.
func (RealClock) Now() time.Time { return time.Now() }

// Sleep pauses for d, honoring context cancellation.
func (RealClock) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
