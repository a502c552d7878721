package tuple

import (
	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/typeinfo"
	"github.com/veyronis/anytuple/wire"
)

// Info is the type-info meta-object for the any-tuple shape itself (§4.4's
// "the any-tuple is the basis of the wire format"): it drives BeginObject
// ("@tuple") / BeginSequence(size) / one nested (name, value) pair per slot /
// EndSequence / EndObject, delegating each slot's actual encoding to that
// slot's own Info the same way a scalar Info drives WriteValue. Deserialize
// needs Registry to turn the wire name it reads back for each slot into the
// Info that knows how to decode it, since a tuple's shape isn't known ahead
// of time.
//
// Info lives in this package rather than typeinfo itself because it needs to
// name and construct tuple.Any values; typeinfo, in turn, is imported by
// this package already, so registering @tuple happens explicitly (via
// Announce, e.g. from runtime.New) instead of from typeinfo.Registry's own
// Bootstrap.
type Info struct {
	Registry *typeinfo.Registry
}

// NewInfo builds the @tuple Info bound to reg for slot type lookups.
func NewInfo(reg *typeinfo.Registry) *Info {
	return &Info{Registry: reg}
}

func (i *Info) UniformName() string { return "@tuple" }
func (i *Info) RawNames() []string  { return []string{"tuple", "any_tuple"} }

func (i *Info) Serialize(v any, w wire.Serializer) error {
	t, ok := v.(Any)
	if !ok {
		return errors.Errorf("tuple: @tuple.Serialize expects tuple.Any, got %T", v)
	}
	if err := w.BeginObject("@tuple"); err != nil {
		return err
	}
	n := t.Size()
	if err := w.BeginSequence(n); err != nil {
		return err
	}
	for idx := 0; idx < n; idx++ {
		slotType, err := t.TypeAt(idx)
		if err != nil {
			return err
		}
		slotValue, err := t.At(idx)
		if err != nil {
			return err
		}
		if err := slotType.Serialize(slotValue, w); err != nil {
			return err
		}
	}
	if err := w.EndSequence(); err != nil {
		return err
	}
	return w.EndObject()
}

func (i *Info) Deserialize(r wire.Deserializer) (any, error) {
	if err := r.BeginObject("@tuple"); err != nil {
		return nil, err
	}
	n, err := r.BeginSequence()
	if err != nil {
		return nil, err
	}
	types := make([]typeinfo.Info, 0, n)
	values := make([]any, 0, n)
	for idx := 0; idx < n; idx++ {
		name, err := r.PeekObject()
		if err != nil {
			return nil, err
		}
		slotType, ok := i.Registry.ByUniformName(name)
		if !ok {
			return nil, errors.Wrapf(typeinfo.ErrUnknownType, "%q", name)
		}
		slotValue, err := slotType.Deserialize(r)
		if err != nil {
			return nil, err
		}
		types = append(types, slotType)
		values = append(values, slotValue)
	}
	if err := r.EndSequence(); err != nil {
		return nil, err
	}
	if err := r.EndObject(); err != nil {
		return nil, err
	}
	return NewObjectArray(types, values)
}

func (i *Info) Equals(a, b any) bool {
	ta, aok := a.(Any)
	tb, bok := b.(Any)
	if !aok || !bok {
		return false
	}
	return ta.Equal(tb)
}

func (i *Info) NewInstance() any {
	t, _ := NewObjectArray(nil, nil)
	return t
}
