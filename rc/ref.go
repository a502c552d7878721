// Package rc provides the intrusive reference-counted handle used by every
// heap entity in the kernel (channels, tuples, proxies). It takes a counted
// pointer that plain Go pointers and goroutine-owned state would otherwise
// leave implicit and turns it into an explicit, checked-downcast-capable handle,
// per the "intrusive counts to owning handles" design note.
package rc

import "sync/atomic"

// Closeable is implemented by values that must run cleanup when the last
// reference to them is released.
type Closeable interface {
	Close()
}

type box struct {
	n atomic.Int64
	v any
}

// Ref is a shared, reference-counted handle to a value of type T. The zero
// Ref is not usable; construct one with New.
type Ref[T any] struct {
	b *box
}

// New constructs a Ref taking the initial reference on v.
func New[T any](v T) Ref[T] {
	b := &box{v: v}
	b.n.Store(1)
	return Ref[T]{b: b}
}

// Valid reports whether the handle points at a live box.
func (r Ref[T]) Valid() bool { return r.b != nil }

// Get returns the underlying value. Calling Get on an invalid Ref panics,
// mirroring a null-pointer dereference in the source language.
func (r Ref[T]) Get() T {
	v, _ := r.b.v.(T)
	return v
}

// Retain increments the reference count and returns the same handle, for use
// at call sites that hand out a copy of the handle to a new owner.
func (r Ref[T]) Retain() Ref[T] {
	if r.b != nil {
		r.b.n.Add(1)
	}
	return r
}

// Release decrements the reference count. It reports true and runs Close (if
// the value implements Closeable) when the count reaches zero.
func (r Ref[T]) Release() bool {
	if r.b == nil {
		return false
	}
	if r.b.n.Add(-1) != 0 {
		return false
	}
	if c, ok := any(r.b.v).(Closeable); ok {
		c.Close()
	}
	return true
}

// Count returns the current reference count. Intended for diagnostics and
// tests, not for control flow (it can be stale the instant it is read).
func (r Ref[T]) Count() int64 {
	if r.b == nil {
		return 0
	}
	return r.b.n.Load()
}

// Same reports whether two handles refer to the same underlying box, i.e.
// pointer equality on the intrusive count, as required by the source's
// "equality by raw pointer" rule.
func (r Ref[T]) Same(other Ref[T]) bool { return r.b == other.b }

// As performs a checked downcast/upcast from Ref[T] to Ref[U]. It fails
// (returns the zero Ref and false) rather than silently coercing when the
// underlying value does not implement U's shape — callers must type-assert
// through an interface value.
func As[U any, T any](r Ref[T]) (Ref[U], bool) {
	if r.b == nil {
		return Ref[U]{}, false
	}
	if _, ok := any(r.b.v).(U); !ok {
		return Ref[U]{}, false
	}
	r.b.n.Add(1)
	return Ref[U]{b: r.b}, true
}
