package actor

import "github.com/veyronis/anytuple/rc"

// Ref is the reference-counted handle to a Channel (module A applied to
// module F), replacing a bare *ActorRef{sys, id} pair with an
// rc.Ref-backed handle so identity, upcast and checked downcast all follow
// the one shared primitive.
type Ref struct {
	h rc.Ref[Channel]
}

// NewRef wraps c in a fresh, singly-owned Ref.
func NewRef(c Channel) *Ref {
	return &Ref{h: rc.New(c)}
}

// Channel returns the underlying Channel.
func (r *Ref) Channel() Channel {
	if r == nil {
		return nil
	}
	return r.h.Get()
}

// Enqueue forwards to the underlying Channel's Enqueue.
func (r *Ref) Enqueue(sender *Ref, msg Message) error {
	return r.Channel().Enqueue(sender, msg)
}

// AsActor performs the checked downcast from the sealed Channel to the
// richer Actor interface, per §4.1's "support ... checked downcast (must
// fail, not coerce, on wrong subtype)".
func (r *Ref) AsActor() (Actor, bool) {
	a, ok := r.Channel().(Actor)
	return a, ok
}

// Retain returns a new Ref sharing the same underlying count, incrementing
// it, mirroring the source's copy-increments rule.
func (r *Ref) Retain() *Ref {
	return &Ref{h: r.h.Retain()}
}

// Release decrements the shared count, reporting whether this was the last
// reference.
func (r *Ref) Release() bool {
	return r.h.Release()
}

// Same reports pointer equality on the underlying handle, per §4.1's
// "equality by raw pointer" rule.
func (r *Ref) Same(other *Ref) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.h.Same(other.h)
}
