package domain

import "github.com/jonboulle/clockwork"

// clock is the package time source behind EnrichedAt stamps. Tests freeze
// it via SetClock for deterministic output; production uses the real clock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
