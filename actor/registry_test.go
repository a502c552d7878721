package actor

import "testing"

// stubChannel is a minimal Channel for registry tests that don't need a
// full BaseActor's goroutine loop.
type stubChannel struct{}

func (stubChannel) Enqueue(*Ref, Message) error { return nil }

func TestRegistryPutGetErase(t *testing.T) {
	reg := NewRegistry()
	id := reg.NextID()
	ref := NewRef(stubChannel{})

	if _, ok := reg.Get(id); ok {
		t.Fatal("expected miss before Put")
	}
	reg.Put(id, ref)
	got, ok := reg.Get(id)
	if !ok || !got.Same(ref) {
		t.Fatal("expected Get to return the same ref after Put")
	}

	reg.Erase(id)
	got, ok = reg.Get(id)
	if !ok {
		t.Fatal("expected the id to remain \"seen\" after Erase")
	}
	if got != nil {
		t.Fatal("expected Erase to replace the entry with nil")
	}
}

func TestRegistryPutIsNoopOnExistingID(t *testing.T) {
	reg := NewRegistry()
	id := reg.NextID()
	first := NewRef(stubChannel{})
	second := NewRef(stubChannel{})
	reg.Put(id, first)
	reg.Put(id, second)
	got, _ := reg.Get(id)
	if !got.Same(first) {
		t.Fatal("expected the first Put to win")
	}
}
