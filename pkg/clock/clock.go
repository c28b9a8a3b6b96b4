// Package clock isolates wall-clock reads so every time-sensitive decision
// in the engine (expiry, anti-snipe, sweeps) can be tested deterministically.
package clock

import (
	"sync"
	"time"
)

const (
	// FinalWindow is the closing stretch during which a landing bid pushes
	// the auction's end time forward.
	FinalWindow = 60 * time.Second

	// LastDay marks an auction as closing soon for display purposes.
	LastDay = 24 * time.Hour
)

// Clock is an injectable time source.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// New returns a Clock backed by the system clock, in UTC.
func New() Clock {
	return realClock{}
}

// Remaining returns how much of the auction window is left at now. Negative
// once the window has lapsed.
func Remaining(now, end time.Time) time.Duration {
	return end.Sub(now)
}

// IsExpired reports whether the window has lapsed at now. The boundary
// instant counts as expired.
func IsExpired(now, end time.Time) bool {
	return !now.Before(end)
}

// IsLastDay reports whether less than 24h of the window remains.
func IsLastDay(now, end time.Time) bool {
	r := Remaining(now, end)
	return r > 0 && r < LastDay
}

// InFinalWindow reports whether the remaining time is inside the anti-snipe
// window: strictly positive and strictly under FinalWindow.
func InFinalWindow(now, end time.Time) bool {
	r := Remaining(now, end)
	return r > 0 && r < FinalWindow
}

// Fake is a manually advanced Clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake pinned to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set pins the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}
