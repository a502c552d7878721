package testkit

import (
	"math/rand"
	"time"
)

// Chaos injects randomized drops and delays into a test's call path, for
// exercising retry logic and circuit breakers against simulated network
// failures rather than a real flaky peer.
type Chaos struct {
	// DropProbability is the chance, in [0,1], that Apply skips fn.
	DropProbability float64
	// MaxDelay, if positive, sleeps a random duration in [0, MaxDelay)
	// before calling fn.
	MaxDelay time.Duration
	// Rand supplies randomness; a time-seeded generator is used if nil.
	// Tests wanting reproducible runs should set this explicitly.
	Rand *rand.Rand
}

// Apply runs fn unless the configured DropProbability says to skip it,
// optionally sleeping a random delay first. It reports whether fn ran.
func (c Chaos) Apply(fn func()) bool {
	r := c.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.DropProbability > 0 && r.Float64() < c.DropProbability {
		return false
	}
	if c.MaxDelay > 0 {
		time.Sleep(time.Duration(r.Int63n(int64(c.MaxDelay))))
	}
	fn()
	return true
}
