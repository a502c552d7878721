// Package testkit provides small, deterministic test doubles for the rest
// of this module: a message-capturing probe, a fault-injecting Chaos gate,
// and a controllable clock, replacing the ad hoc fixtures individual test
// files would otherwise hand-roll per package (a recording channel here, a
// manual time.Sleep loop there) with one reusable set.
package testkit

import (
	"testing"
	"time"
)

// Probe is a channel-shaped message sink for tests: something under test
// Puts values into it (typically from an actor.Channel.Enqueue
// implementation), and the test asserts on them with Expect/ExpectNoMessage
// instead of polling or sleeping.
type Probe struct {
	t    testing.TB
	ch   chan any
	fail func(string, ...any)
}

// NewProbe returns a Probe backed by a channel of the given buffer size
// (1024 if buffer <= 0).
func NewProbe(t testing.TB, buffer int) *Probe {
	if buffer <= 0 {
		buffer = 1024
	}
	p := &Probe{t: t, ch: make(chan any, buffer)}
	p.fail = t.Fatalf
	return p
}

// Chan returns the probe's receive channel, for use directly in a select.
func (p *Probe) Chan() <-chan any { return p.ch }

// Put records v, typically called from the code under test.
func (p *Probe) Put(v any) { p.ch <- v }

// Expect waits up to timeout (default 1s) for a value and fails the test if
// none arrives.
func (p *Probe) Expect(timeout time.Duration) any {
	p.t.Helper()
	if timeout <= 0 {
		timeout = time.Second
	}
	select {
	case v := <-p.ch:
		return v
	case <-time.After(timeout):
		p.fail("timeout waiting message")
		return nil
	}
}

// ExpectNoMessage fails the test if a value arrives within timeout (default
// 50ms).
func (p *Probe) ExpectNoMessage(timeout time.Duration) {
	p.t.Helper()
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case v := <-p.ch:
		p.fail("unexpected message: %#v", v)
	case <-time.After(timeout):
	}
}
