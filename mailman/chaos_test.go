package mailman

import (
	"testing"
	"time"

	"github.com/veyronis/anytuple/actor"
	"github.com/veyronis/anytuple/testkit"
)

// TestBreakerOpensWhenChaosAlwaysDrops feeds a peer's circuit breaker a
// sequence of deliveries gated by a testkit.Chaos always configured to
// drop, standing in for a peer whose socket never comes back, and checks
// the breaker still opens after exactly threshold failures per §7.
func TestBreakerOpensWhenChaosAlwaysDrops(t *testing.T) {
	chaos := testkit.Chaos{DropProbability: 1}
	b := actor.NewCircuitBreaker(5, time.Minute)
	now := time.Unix(0, 0)

	for i := 0; i < 5; i++ {
		if !b.Allow(now) {
			t.Fatalf("expected breaker to stay closed through failure %d", i)
		}
		if chaos.Apply(func() {}) {
			t.Fatal("expected DropProbability 1 to drop every attempt")
		}
		b.OnFailure(now)
	}
	if b.Allow(now) {
		t.Fatal("expected breaker to open once the threshold of chaotic drops is reached")
	}
}

// TestBreakerStaysClosedWhenChaosNeverDrops checks the mirror image: a
// peer that always answers keeps the breaker closed no matter how many
// deliveries flow through it.
func TestBreakerStaysClosedWhenChaosNeverDrops(t *testing.T) {
	chaos := testkit.Chaos{DropProbability: 0}
	b := actor.NewCircuitBreaker(5, time.Minute)
	now := time.Unix(0, 0)

	for i := 0; i < 500; i++ {
		if !chaos.Apply(func() {}) {
			t.Fatal("expected DropProbability 0 to never drop")
		}
		b.OnSuccess()
	}
	if !b.Allow(now) {
		t.Fatal("expected breaker to remain closed when every delivery succeeds")
	}
}
