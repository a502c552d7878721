// Package tuple implements the any-tuple of spec module D: a
// reference-counted, copy-on-write, heterogeneous ordered sequence of
// values where each slot carries its own type-info. It generalizes the
// teacher's envelope payload (a single gob-encoded blob in
// actor/envelope.go) into a self-describing, per-slot-typed sequence, using
// rc.Ref for the copy-on-write sharing spec §9's "intrusive counts to
// owning handles" note calls for.
package tuple

import (
	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/rc"
	"github.com/veyronis/anytuple/typeinfo"
)

// ErrIndexOutOfRange is returned by At/TypeAt/MutableAt for i outside
// [0, Size()).
var ErrIndexOutOfRange = errors.New("tuple: index out of range")

// ErrNotExclusive is returned by MutableAt when the tuple's storage is
// shared (refcount > 1); the caller must copy-on-write before mutating.
var ErrNotExclusive = errors.New("tuple: storage is not exclusively owned")

// ErrArityMismatch is returned by NewStatic when the number of types does
// not match the number of values.
var ErrArityMismatch = errors.New("tuple: type/value arity mismatch")

// Any is the abstract interface both concrete shapes (object array and
// decorated view) honor, per spec §3.
type Any interface {
	Size() int
	At(i int) (any, error)
	TypeAt(i int) (typeinfo.Info, error)
	// MutableAt exposes a pointer to slot i's value for in-place mutation.
	// It fails with ErrNotExclusive unless the caller holds the only
	// reference to the underlying storage.
	MutableAt(i int) (*any, error)
	Equal(other Any) bool
}

// storage is the shared backing array both a plain object-array tuple and
// any decorated view sharing it point at through an rc.Ref.
type storage struct {
	types  []typeinfo.Info
	values []any
}

// objectArray is the "object array" shape of §3: a tuple built dynamically
// from type-info pointers plus values, both stored in one rc.Ref so that
// MutableAt can consult the ref's live count to decide exclusivity.
type objectArray struct {
	ref rc.Ref[*storage]
}

// NewObjectArray builds an object-array tuple from parallel types/values
// slices, per spec §3's "object array" shape. It takes ownership of the
// slices; callers must not mutate them afterward.
func NewObjectArray(types []typeinfo.Info, values []any) (Any, error) {
	if len(types) != len(values) {
		return nil, errors.Wrapf(ErrArityMismatch, "%d types, %d values", len(types), len(values))
	}
	return &objectArray{ref: rc.New(&storage{types: types, values: values})}, nil
}

// NewStatic gives the "typed static tuple" shape of §3 the same abstract
// interface as the object array. Go's type system cannot express a
// variadic homogeneous-arity compile-time tuple type the way a template
// pack can, so NewStatic behaves exactly like an object array: it checks
// only that the number of types matches the number of values, and does not
// check the values against their types — see SPEC_FULL.md §5.4's note on
// the typed static tuple.
func NewStatic(types []typeinfo.Info, values []any) (Any, error) {
	return NewObjectArray(types, values)
}

func (o *objectArray) Size() int { return len(o.ref.Get().values) }

func (o *objectArray) At(i int) (any, error) {
	s := o.ref.Get()
	if i < 0 || i >= len(s.values) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, size %d", i, len(s.values))
	}
	return s.values[i], nil
}

func (o *objectArray) TypeAt(i int) (typeinfo.Info, error) {
	s := o.ref.Get()
	if i < 0 || i >= len(s.types) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, size %d", i, len(s.types))
	}
	return s.types[i], nil
}

func (o *objectArray) MutableAt(i int) (*any, error) {
	s := o.ref.Get()
	if i < 0 || i >= len(s.values) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, size %d", i, len(s.values))
	}
	if o.ref.Count() != 1 {
		return nil, ErrNotExclusive
	}
	return &s.values[i], nil
}

func (o *objectArray) Equal(other Any) bool {
	return equalTuples(o, other)
}

// equalTuples implements §3's slot-wise "type-info equality followed by
// type-info-defined value equality", shared by both concrete shapes.
func equalTuples(a, b Any) bool {
	if a.Size() != b.Size() {
		return false
	}
	for i := 0; i < a.Size(); i++ {
		ta, err := a.TypeAt(i)
		if err != nil {
			return false
		}
		tb, err := b.TypeAt(i)
		if err != nil {
			return false
		}
		if !typeinfo.EqualsAcrossAliases(ta, tb) {
			return false
		}
		va, err := a.At(i)
		if err != nil {
			return false
		}
		vb, err := b.At(i)
		if err != nil {
			return false
		}
		if !ta.Equals(va, vb) {
			return false
		}
	}
	return true
}

// decorated wraps another Any plus a permutation/selection index vector and
// shares its storage, per §3's "decorated tuple ... shares storage".
type decorated struct {
	inner Any
	perm  []int
}

// NewDecorated builds a view over inner selecting/reordering slots
// according to perm; perm[i] names the inner index exposed as slot i of
// the decorated tuple.
func NewDecorated(inner Any, perm []int) Any {
	return &decorated{inner: inner, perm: perm}
}

func (d *decorated) Size() int { return len(d.perm) }

func (d *decorated) resolve(i int) (int, error) {
	if i < 0 || i >= len(d.perm) {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "index %d, size %d", i, len(d.perm))
	}
	return d.perm[i], nil
}

func (d *decorated) At(i int) (any, error) {
	j, err := d.resolve(i)
	if err != nil {
		return nil, err
	}
	return d.inner.At(j)
}

func (d *decorated) TypeAt(i int) (typeinfo.Info, error) {
	j, err := d.resolve(i)
	if err != nil {
		return nil, err
	}
	return d.inner.TypeAt(j)
}

// MutableAt on a decorated view always fails: the view shares storage with
// its inner tuple and (possibly) other views over the same storage, so a
// decorated tuple is never itself the exclusive owner.
func (d *decorated) MutableAt(i int) (*any, error) {
	if _, err := d.resolve(i); err != nil {
		return nil, err
	}
	return nil, ErrNotExclusive
}

func (d *decorated) Equal(other Any) bool {
	return equalTuples(d, other)
}

// Builder provides an ergonomic append-based construction path used by
// message envelopes and the wire codecs, avoiding hand-built parallel
// slices at every call site.
type Builder struct {
	types  []typeinfo.Info
	values []any
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Append adds one slot.
func (b *Builder) Append(info typeinfo.Info, value any) *Builder {
	b.types = append(b.types, info)
	b.values = append(b.values, value)
	return b
}

// Build finalizes the builder into an object-array tuple.
func (b *Builder) Build() Any {
	t, _ := NewObjectArray(b.types, b.values)
	return t
}
