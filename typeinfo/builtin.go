package typeinfo

import (
	"time"

	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/variant"
	"github.com/veyronis/anytuple/wire"
)

// primitiveInfo is the Info implementation shared by all fixed-width scalar
// kinds. Two primitiveInfo values with equal (width, signed) compare equal
// under EqualsAcrossAliases even when constructed under different raw-name
// aliases, satisfying spec §4.3's cross-platform integer aliasing rule.
type primitiveInfo struct {
	kind     variant.Kind
	uniform  string
	rawNames []string
	width    int
	signed   bool
}

func (p *primitiveInfo) UniformName() string { return p.uniform }
func (p *primitiveInfo) RawNames() []string  { return p.rawNames }
func (p *primitiveInfo) Width() int          { return p.width }
func (p *primitiveInfo) Signed() bool        { return p.signed }

func (p *primitiveInfo) Serialize(v any, w wire.Serializer) error {
	pv, ok := v.(variant.Variant)
	if !ok {
		return errors.Errorf("typeinfo: %s.Serialize expects a variant.Variant, got %T", p.uniform, v)
	}
	if err := w.BeginObject(p.uniform); err != nil {
		return err
	}
	if err := w.WriteValue(pv); err != nil {
		return err
	}
	return w.EndObject()
}

func (p *primitiveInfo) Deserialize(r wire.Deserializer) (any, error) {
	if err := r.BeginObject(p.uniform); err != nil {
		return nil, err
	}
	v, err := r.ReadValue(p.kind)
	if err != nil {
		return nil, err
	}
	if err := r.EndObject(); err != nil {
		return nil, err
	}
	return v, nil
}

func (p *primitiveInfo) Equals(a, b any) bool {
	va, aok := a.(variant.Variant)
	vb, bok := b.(variant.Variant)
	if !aok || !bok {
		return false
	}
	return va.Equal(vb)
}

func (p *primitiveInfo) NewInstance() any { return variant.Null() }

func newPrimitive(kind variant.Kind, uniform string, raw ...string) *primitiveInfo {
	return &primitiveInfo{kind: kind, uniform: uniform, rawNames: raw, width: kind.Width(), signed: kind.Signed()}
}

// stringInfo backs the three string kinds; they share behavior but keep
// distinct uniform names per spec §3's "utf8-string, utf16-string,
// utf32-string" tags.
type stringInfo struct {
	kind    variant.Kind
	uniform string
}

func (s *stringInfo) UniformName() string { return s.uniform }
func (s *stringInfo) RawNames() []string  { return []string{s.uniform} }

func (s *stringInfo) Serialize(v any, w wire.Serializer) error {
	pv, ok := v.(variant.Variant)
	if !ok {
		return errors.Errorf("typeinfo: %s.Serialize expects a variant.Variant, got %T", s.uniform, v)
	}
	if err := w.BeginObject(s.uniform); err != nil {
		return err
	}
	if err := w.WriteValue(pv); err != nil {
		return err
	}
	return w.EndObject()
}

func (s *stringInfo) Deserialize(r wire.Deserializer) (any, error) {
	if err := r.BeginObject(s.uniform); err != nil {
		return nil, err
	}
	v, err := r.ReadValue(s.kind)
	if err != nil {
		return nil, err
	}
	if err := r.EndObject(); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *stringInfo) Equals(a, b any) bool {
	va, aok := a.(variant.Variant)
	vb, bok := b.(variant.Variant)
	return aok && bok && va.Equal(vb)
}

func (s *stringInfo) NewInstance() any { return variant.Null() }

// durationInfo implements spec §4.3's explicitly named "duration" built-in,
// grounded on original_source/src/duration.cpp's (unit, count) pair: on the
// wire it writes the count as an i64 followed by the unit as a UTF-8 string
// value, always "ns"; Deserialize also accepts "us", "ms", "s", "m" and "h".
type durationInfo struct{}

func (durationInfo) UniformName() string { return "@duration" }
func (durationInfo) RawNames() []string  { return []string{"duration", "time.Duration"} }

func (durationInfo) Serialize(v any, w wire.Serializer) error {
	d, ok := v.(time.Duration)
	if !ok {
		return errors.Errorf("typeinfo: @duration.Serialize expects time.Duration, got %T", v)
	}
	if err := w.BeginObject("@duration"); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewI64(int64(d))); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewUTF8("ns")); err != nil {
		return err
	}
	return w.EndObject()
}

func (durationInfo) Deserialize(r wire.Deserializer) (any, error) {
	if err := r.BeginObject("@duration"); err != nil {
		return nil, err
	}
	count, err := r.ReadValue(variant.KindI64)
	if err != nil {
		return nil, err
	}
	unit, err := r.ReadValue(variant.KindUTF8)
	if err != nil {
		return nil, err
	}
	if err := r.EndObject(); err != nil {
		return nil, err
	}
	n, _ := count.Int64()
	u, _ := unit.String()
	return scaleDuration(n, u), nil
}

func scaleDuration(n int64, unit string) time.Duration {
	switch unit {
	case "us":
		return time.Duration(n) * time.Microsecond
	case "ms":
		return time.Duration(n) * time.Millisecond
	case "s":
		return time.Duration(n) * time.Second
	case "m":
		return time.Duration(n) * time.Minute
	case "h":
		return time.Duration(n) * time.Hour
	default:
		return time.Duration(n)
	}
}

func (durationInfo) Equals(a, b any) bool {
	da, aok := a.(time.Duration)
	db, bok := b.(time.Duration)
	return aok && bok && da == db
}

func (durationInfo) NewInstance() any { return time.Duration(0) }

// atomInfo implements the @atom built-in of spec §4.3/§6: internally a u64,
// rendered on the wire via the 10-character atom-name encoding.
type atomInfo struct{}

func (atomInfo) UniformName() string { return "@atom" }
func (atomInfo) RawNames() []string  { return []string{"atom", "atom_value"} }

func (atomInfo) Serialize(v any, w wire.Serializer) error {
	a, ok := v.(variant.Atom)
	if !ok {
		return errors.Errorf("typeinfo: @atom.Serialize expects variant.Atom, got %T", v)
	}
	if err := w.BeginObject("@atom"); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewUTF8(a.String())); err != nil {
		return err
	}
	return w.EndObject()
}

func (atomInfo) Deserialize(r wire.Deserializer) (any, error) {
	if err := r.BeginObject("@atom"); err != nil {
		return nil, err
	}
	sv, err := r.ReadValue(variant.KindUTF8)
	if err != nil {
		return nil, err
	}
	if err := r.EndObject(); err != nil {
		return nil, err
	}
	s, _ := sv.String()
	a, err := variant.AtomFromString(s)
	if err != nil {
		return nil, errors.Wrap(wire.ErrBadFormat, err.Error())
	}
	return a, nil
}

func (atomInfo) Equals(a, b any) bool {
	aa, aok := a.(variant.Atom)
	bb, bok := b.(variant.Atom)
	return aok && bok && aa == bb
}

func (atomInfo) NewInstance() any { return variant.Atom(0) }

// voidInfo implements the @0 void type of spec §3/§4.3/§6.
type voidInfo struct{}

func (voidInfo) UniformName() string           { return "@0" }
func (voidInfo) RawNames() []string            { return []string{"void", "unit"} }
func (voidInfo) Serialize(_ any, w wire.Serializer) error {
	if err := w.BeginObject("@0"); err != nil {
		return err
	}
	return w.EndObject()
}
func (voidInfo) Deserialize(r wire.Deserializer) (any, error) {
	if err := r.BeginObject("@0"); err != nil {
		return nil, err
	}
	if err := r.EndObject(); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}
func (voidInfo) Equals(a, b any) bool { return true }
func (voidInfo) NewInstance() any     { return struct{}{} }

// Bootstrap registers the built-in scalar types spec §4.3 names. The
// kernel's own reference types (@actor, @channel, @tuple, @control) are not
// registered here: giving a live *Ref, a tuple.Any or a control payload a
// generic Info would need this package to import actor/tuple, which import
// typeinfo already. Instead runtime.New Announces
// actor.RefInfo, actor.ChannelInfo, actor.ControlInfo and tuple.NewInfo into
// this same Registry once it has a Registry/Mailman/Proxies to close them
// over.
func (r *Registry) Bootstrap() {
	ints := []struct {
		kind    variant.Kind
		uniform string
		raw     []string
	}{
		{variant.KindI8, "@i8", []string{"i8", "int8"}},
		{variant.KindI16, "@i16", []string{"i16", "int16"}},
		{variant.KindI32, "@i32", []string{"i32", "int32", "int"}},
		{variant.KindI64, "@i64", []string{"i64", "int64", "long"}},
		{variant.KindU8, "@u8", []string{"u8", "uint8", "byte"}},
		{variant.KindU16, "@u16", []string{"u16", "uint16"}},
		{variant.KindU32, "@u32", []string{"u32", "uint32", "uint"}},
		{variant.KindU64, "@u64", []string{"u64", "uint64", "ulong"}},
	}
	for _, it := range ints {
		r.Announce(newPrimitive(it.kind, it.uniform, it.raw...))
	}
	r.Announce(newPrimitive(variant.KindF32, "@f32", "f32", "float32", "float"))
	r.Announce(newPrimitive(variant.KindF64, "@f64", "f64", "float64", "double"))
	r.Announce(newPrimitive(variant.KindF128, "@f128", "f128", "long double"))
	r.Announce(&stringInfo{kind: variant.KindUTF8, uniform: "@str"})
	r.Announce(&stringInfo{kind: variant.KindUTF16, uniform: "@u16str"})
	r.Announce(&stringInfo{kind: variant.KindUTF32, uniform: "@u32str"})
	r.Announce(durationInfo{})
	r.Announce(atomInfo{})
	r.Announce(voidInfo{})
}
