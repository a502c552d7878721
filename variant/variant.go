// Package variant implements the primitive variant (spec module B): a
// tagged union over the fixed set of scalar and string kinds that underlies
// the wire format. It is the same "sum type over class hierarchies" idea the
// teacher applies with typed enums elsewhere in the codebase, specialized to
// the exact kind set spec.md §3 names.
package variant

import (
	"math/big"

	"github.com/pkg/errors"
)

// Kind names the live arm of a Variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindF128
	KindUTF8
	KindUTF16
	KindUTF32
)

// ErrInvalidKind is returned by a typed getter when the variant's live tag
// does not match the requested type.
var ErrInvalidKind = errors.New("variant: invalid kind")

// String returns a short debug name for k.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindF128:
		return "f128"
	case KindUTF8:
		return "utf8"
	case KindUTF16:
		return "utf16"
	case KindUTF32:
		return "utf32"
	default:
		return "unknown"
	}
}

// Width reports the bit width of an integer kind, for the equal-width /
// equal-signedness aliasing rule the type-info registry relies on (spec §4.3,
// §8.11). It returns 0 for non-integer kinds.
func (k Kind) Width() int {
	switch k {
	case KindI8, KindU8:
		return 8
	case KindI16, KindU16:
		return 16
	case KindI32, KindU32:
		return 32
	case KindI64, KindU64:
		return 64
	default:
		return 0
	}
}

// Signed reports whether k is a signed integer kind.
func (k Kind) Signed() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64:
		return true
	default:
		return false
	}
}

// F128 is an opaque 128-bit big-endian buffer standing in for the source
// language's platform long double. Go has no quad-precision float type and no
// example in the retrieval pack introduces one, so F128 carries the bytes
// verbatim (round-trip only, no arithmetic). ApproxFloat exposes the raw
// bytes as a big.Float; no floating-point format is decoded.
type F128 [16]byte

// ApproxFloat reads the 16 bytes as one unsigned big-endian integer and
// returns it as a big.Float with 64 bits of precision. Sign, exponent and
// mantissa are not decoded, so the result is not the floating-point value
// the bytes would encode.
func (f F128) ApproxFloat() *big.Float {
	bi := new(big.Int).SetBytes(f[:])
	bf := new(big.Float).SetPrec(64).SetInt(bi)
	return bf
}

// Variant is a tagged container over exactly the Kind values above, plus the
// null tag. Assignment (a plain Go struct copy) already satisfies the source
// language's "destroy old arm, construct new arm" invariant: there is no
// separately allocated storage to destroy.
type Variant struct {
	kind Kind
	v    any
}

// Null returns an empty variant tagged KindNull.
func Null() Variant { return Variant{kind: KindNull} }

// Kind returns the live tag.
func (p Variant) Kind() Kind { return p.kind }

// IsNull reports whether the variant is tagged KindNull.
func (p Variant) IsNull() bool { return p.kind == KindNull }

func fromInt(k Kind, v int64) Variant { return Variant{kind: k, v: v} }
func fromUint(k Kind, v uint64) Variant { return Variant{kind: k, v: v} }

// NewI8, NewI16, ... construct a Variant with the tag deduced from the
// argument type, per spec §4.2's "construct from any primitive with deduced
// tag".
func NewI8(v int8) Variant   { return fromInt(KindI8, int64(v)) }
func NewI16(v int16) Variant { return fromInt(KindI16, int64(v)) }
func NewI32(v int32) Variant { return fromInt(KindI32, int64(v)) }
func NewI64(v int64) Variant { return fromInt(KindI64, v) }
func NewU8(v uint8) Variant   { return fromUint(KindU8, uint64(v)) }
func NewU16(v uint16) Variant { return fromUint(KindU16, uint64(v)) }
func NewU32(v uint32) Variant { return fromUint(KindU32, uint64(v)) }
func NewU64(v uint64) Variant { return fromUint(KindU64, v) }
func NewF32(v float32) Variant { return Variant{kind: KindF32, v: v} }
func NewF64(v float64) Variant { return Variant{kind: KindF64, v: v} }
func NewF128(v F128) Variant   { return Variant{kind: KindF128, v: v} }
func NewUTF8(v string) Variant  { return Variant{kind: KindUTF8, v: v} }
func NewUTF16(v string) Variant { return Variant{kind: KindUTF16, v: v} }
func NewUTF32(v string) Variant { return Variant{kind: KindUTF32, v: v} }

// Int64 returns the variant's value widened to int64. It fails with
// ErrInvalidKind unless the tag is one of the signed integer kinds.
func (p Variant) Int64() (int64, error) {
	if !p.kind.Signed() || p.kind.Width() == 0 {
		return 0, errors.Wrapf(ErrInvalidKind, "want signed integer, have %s", p.kind)
	}
	return p.v.(int64), nil
}

// Uint64 returns the variant's value widened to uint64. It fails with
// ErrInvalidKind unless the tag is one of the unsigned integer kinds.
func (p Variant) Uint64() (uint64, error) {
	if p.kind.Signed() || p.kind.Width() == 0 {
		return 0, errors.Wrapf(ErrInvalidKind, "want unsigned integer, have %s", p.kind)
	}
	return p.v.(uint64), nil
}

// Float32 returns the f32 value or ErrInvalidKind.
func (p Variant) Float32() (float32, error) {
	if p.kind != KindF32 {
		return 0, errors.Wrapf(ErrInvalidKind, "want f32, have %s", p.kind)
	}
	return p.v.(float32), nil
}

// Float64 returns the f64 value or ErrInvalidKind.
func (p Variant) Float64() (float64, error) {
	if p.kind != KindF64 {
		return 0, errors.Wrapf(ErrInvalidKind, "want f64, have %s", p.kind)
	}
	return p.v.(float64), nil
}

// Float128 returns the f128 value or ErrInvalidKind.
func (p Variant) Float128() (F128, error) {
	if p.kind != KindF128 {
		return F128{}, errors.Wrapf(ErrInvalidKind, "want f128, have %s", p.kind)
	}
	return p.v.(F128), nil
}

// String returns the string payload for any of the three string kinds, or
// ErrInvalidKind.
func (p Variant) String() (string, error) {
	switch p.kind {
	case KindUTF8, KindUTF16, KindUTF32:
		return p.v.(string), nil
	default:
		return "", errors.Wrapf(ErrInvalidKind, "want string, have %s", p.kind)
	}
}

// Visitor dispatches over the live kind, per the "visitor dispatch over the
// primitive kinds" design note: one tagged-enum switch, implemented once.
type Visitor interface {
	VisitNull()
	VisitInt(kind Kind, v int64)
	VisitUint(kind Kind, v uint64)
	VisitF32(v float32)
	VisitF64(v float64)
	VisitF128(v F128)
	VisitString(kind Kind, v string)
}

// Apply dispatches p to the matching Visitor method.
func (p Variant) Apply(v Visitor) {
	switch p.kind {
	case KindNull:
		v.VisitNull()
	case KindI8, KindI16, KindI32, KindI64:
		v.VisitInt(p.kind, p.v.(int64))
	case KindU8, KindU16, KindU32, KindU64:
		v.VisitUint(p.kind, p.v.(uint64))
	case KindF32:
		v.VisitF32(p.v.(float32))
	case KindF64:
		v.VisitF64(p.v.(float64))
	case KindF128:
		v.VisitF128(p.v.(F128))
	case KindUTF8, KindUTF16, KindUTF32:
		v.VisitString(p.kind, p.v.(string))
	}
}

// Equal compares two variants by tag then value, the primitive-level half of
// the equality rule described in spec §3 (the type-info layer supplies the
// integer width/signedness aliasing on top of this).
func (p Variant) Equal(other Variant) bool {
	if p.kind != other.kind {
		return false
	}
	switch p.kind {
	case KindNull:
		return true
	case KindF128:
		return p.v.(F128) == other.v.(F128)
	default:
		return p.v == other.v
	}
}
