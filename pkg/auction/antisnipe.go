package auction

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/clock"
)

// Extender decides whether a landing bid pushes the auction window forward.
type Extender struct {
	// Window is the closing stretch that triggers an extension.
	Window time.Duration
	// Extension is how far the end time moves, measured from the previous
	// end time rather than from the bid's arrival.
	Extension time.Duration
}

// NewExtender returns an Extender with the standard 60s window and 60s
// extension.
func NewExtender() Extender {
	return Extender{
		Window:    clock.FinalWindow,
		Extension: clock.FinalWindow,
	}
}

// Extend returns the new end time and whether an extension applied. The
// extension is anchored on the previous end time, so two quick bids in the
// closing window stack: the second extends the already-extended end.
// A lapsed window never extends; the caller must reject the bid instead.
func (e Extender) Extend(now, end time.Time) (time.Time, bool) {
	remaining := clock.Remaining(now, end)
	if remaining <= 0 || remaining >= e.Window {
		return end, false
	}
	return end.Add(e.Extension), true
}
