package actor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/veyronis/anytuple/node"
	"github.com/veyronis/anytuple/tuple"
	"github.com/veyronis/anytuple/typeinfo"
	"github.com/veyronis/anytuple/variant"
)

func i32Content(t *testing.T, reg *typeinfo.Registry, v int32) tuple.Any {
	t.Helper()
	info, err := reg.MustResolve("@i32")
	if err != nil {
		t.Fatal(err)
	}
	return tuple.NewBuilder().Append(info, variant.NewI32(v)).Build()
}

func newTestActor(t *testing.T, reg *Registry, receive ReceiveFunc) (*BaseActor, ID) {
	t.Helper()
	id := reg.NextID()
	a := NewBaseActor(id, node.Local(), BaseActorOptions{Receive: receive, Registry: reg})
	reg.Put(id, a.Self())
	a.Start()
	return a, id
}

func TestEnqueueDeliversToReceive(t *testing.T) {
	reg := NewRegistry()
	types := typeinfo.New()
	types.Bootstrap()

	var mu sync.Mutex
	var got int32
	var delivered bool

	a, _ := newTestActor(t, reg, func(ctx *Context, content tuple.Any) {
		v, err := content.At(0)
		if err != nil {
			return
		}
		n, err := v.(variant.Variant).Int64()
		if err != nil {
			return
		}
		mu.Lock()
		got = int32(n)
		delivered = true
		mu.Unlock()
	})

	if err := a.Enqueue(nil, Message{Receiver: a, Content: i32Content(t, types, 7)}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		done := delivered
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected the message to be delivered")
		case <-time.After(time.Millisecond):
		}
	}
	if got != 7 {
		t.Fatalf("got %d want 7", got)
	}
}

func TestAttachFiresImmediatelyAfterExit(t *testing.T) {
	reg := NewRegistry()
	a, _ := newTestActor(t, reg, nil)
	a.Exit(NormalExit)

	fired := make(chan uint32, 1)
	ok := a.Attach(NewFuncAttachable(Token{Kind: TokenMonitor, Ptr: a}, func(reason uint32) {
		fired <- reason
	}))
	if ok {
		t.Fatal("expected Attach on an exited actor to return false")
	}
	select {
	case r := <-fired:
		if r != NormalExit {
			t.Fatalf("got reason %d want %d", r, NormalExit)
		}
	case <-time.After(time.Second):
		t.Fatal("expected immediate detach on exited actor")
	}
}

func TestAttachablesFireOncePerLifetime(t *testing.T) {
	reg := NewRegistry()
	a, _ := newTestActor(t, reg, nil)
	var count int32
	var mu sync.Mutex
	a.Attach(NewFuncAttachable(Token{Kind: TokenMonitor, Ptr: a}, func(uint32) {
		mu.Lock()
		count++
		mu.Unlock()
	}))
	a.Exit(NormalExit)
	a.Exit(1) // idempotent; must not refire
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("got %d detach calls, want exactly 1", count)
	}
}

func TestLinkSymmetryAndExitSignal(t *testing.T) {
	reg := NewRegistry()
	a, _ := newTestActor(t, reg, nil)

	var mu sync.Mutex
	var receivedReason bool
	b, _ := newTestActor(t, reg, func(ctx *Context, content tuple.Any) {
		v, err := content.At(0)
		if err == nil {
			if r, ok := v.(uint32); ok && r == 42 {
				mu.Lock()
				receivedReason = true
				mu.Unlock()
			}
		}
	})

	if err := a.LinkTo(b.Self()); err != nil {
		t.Fatal(err)
	}
	if !a.Linked(b.Self()) {
		t.Fatal("expected a's link set to contain b after LinkTo")
	}
	if !b.Linked(a.Self()) {
		t.Fatal("expected b's link set to contain a after establishBacklink")
	}

	a.Exit(42)

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		done := receivedReason
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected b to receive the exit signal with reason 42")
		case <-time.After(time.Millisecond):
		}
	}
	if b.Linked(a.Self()) {
		t.Fatal("expected b's linked-set to no longer contain a after a's exit (scenario S3)")
	}
}

func TestRegistryErasesOnExit(t *testing.T) {
	reg := NewRegistry()
	a, id := newTestActor(t, reg, nil)
	if _, ok := reg.Get(id); !ok {
		t.Fatal("expected registry to know about id before exit")
	}
	a.Exit(NormalExit)

	deadline := time.After(time.Second)
	for {
		ref, ok := reg.Get(id)
		if ok && ref == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected registry entry to become nil after exit")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRegistryNextIDMonotonic(t *testing.T) {
	reg := NewRegistry()
	prev := reg.NextID()
	for i := 0; i < 100; i++ {
		next := reg.NextID()
		if next <= prev {
			t.Fatalf("expected strictly increasing ids, got %d after %d", next, prev)
		}
		prev = next
	}
}

// TestPanicInReceiveDoesNotDeadlockExit is a regression test for handle's
// recover path: a panicking ReceiveFunc must not join on a.done from inside
// the very goroutine that would close it.
func TestPanicInReceiveDoesNotDeadlockExit(t *testing.T) {
	reg := NewRegistry()
	a, id := newTestActor(t, reg, func(ctx *Context, content tuple.Any) {
		panic("boom")
	})

	if err := a.Enqueue(nil, Message{Receiver: a, Content: tuple.NewBuilder().Build()}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		ref, ok := reg.Get(id)
		if ok && ref == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected a panicking ReceiveFunc to still exit the actor and erase its registry entry")
		case <-time.After(time.Millisecond):
		}
	}

	done := make(chan struct{})
	go func() {
		_ = reg.AwaitRunningCountEqual(context.Background(), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected DecRunning to fire despite the panic, unblocking AwaitRunningCountEqual")
	}
}

func TestAwaitRunningCountEqual(t *testing.T) {
	reg := NewRegistry()
	a, _ := newTestActor(t, reg, nil)
	b, _ := newTestActor(t, reg, nil)

	done := make(chan struct{})
	go func() {
		_ = reg.AwaitRunningCountEqual(context.Background(), 0)
		close(done)
	}()

	a.Exit(NormalExit)
	b.Exit(NormalExit)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected AwaitRunningCountEqual(0) to unblock after both actors exit")
	}
}
