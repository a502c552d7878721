// Package typeinfo implements the type-info registry of spec module C: a
// process-wide (or, for testability, explicitly constructed) map from
// concrete value types to a meta-object able to serialize, deserialize,
// compare and instantiate values of that type. It generalizes the
// id-to-actor Registry (actor/registry.go), which maps ids to actors under
// an RWMutex, to the type-indexed lookup this layer needs, following the
// same reader/writer-lock idiom.
package typeinfo

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/variant"
	"github.com/veyronis/anytuple/wire"
)

// ErrUnknownType is returned by a lookup for an unregistered name during
// decode.
var ErrUnknownType = errors.New("typeinfo: unknown type")

// Info is the meta-object contract of spec §4.3.
type Info interface {
	// UniformName is the stable cross-platform wire name (e.g. "@i32").
	UniformName() string
	// RawNames lists platform-specific aliases indexed alongside the
	// uniform name (e.g. "int32", "int" for a 32-bit signed integer).
	RawNames() []string
	Serialize(v any, w wire.Serializer) error
	Deserialize(r wire.Deserializer) (any, error)
	Equals(a, b any) bool
	NewInstance() any
}

// IntegerInfo is implemented by built-in integer Info objects so the
// registry's Equals bridging (spec §8.11: two integer meta-objects of equal
// width and signedness must compare equal regardless of the alias that
// produced them) can compare across distinct Info instances rather than
// requiring reference equality.
type IntegerInfo interface {
	Info
	Width() int
	Signed() bool
}

// Registry is a process-wide (or per-Environment) map from raw and uniform
// type names to Info, following the same construction as actor.Registry: it
// is written at startup (Bootstrap) and read-mostly afterward; Announce is
// the only mutator reachable after Bootstrap and is safe to call
// concurrently.
type Registry struct {
	mu            sync.RWMutex
	byRawName     map[string]Info
	byUniformName map[string]Info
}

// New returns an empty registry. Call Bootstrap to install the built-ins.
func New() *Registry {
	return &Registry{
		byRawName:     make(map[string]Info),
		byUniformName: make(map[string]Info),
	}
}

// Announce registers info. Per spec §7 (DuplicateType), a uniform-name
// collision is not an error: Announce returns false and leaves the existing
// entry untouched.
func (r *Registry) Announce(info Info) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUniformName[info.UniformName()]; exists {
		return false
	}
	r.byUniformName[info.UniformName()] = info
	for _, raw := range info.RawNames() {
		r.byRawName[raw] = info
	}
	return true
}

// ByUniformName looks up an Info by its stable wire name.
func (r *Registry) ByUniformName(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byUniformName[name]
	return i, ok
}

// ByRawName looks up an Info by a platform-specific alias.
func (r *Registry) ByRawName(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byRawName[name]
	return i, ok
}

// MustResolve is a convenience for callers that treat a missing type as
// fatal to the current decode, wrapping the miss in ErrUnknownType.
func (r *Registry) MustResolve(uniformName string) (Info, error) {
	i, ok := r.ByUniformName(uniformName)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", uniformName)
	}
	return i, nil
}

// EqualsAcrossAliases implements the width/signedness bridging rule for two
// IntegerInfo objects that may be distinct instances (e.g. one Info
// registered under "int32" and another under "int" on a platform where int
// is 32 bits), per spec §8.11.
func EqualsAcrossAliases(a, b Info) bool {
	ia, aok := a.(IntegerInfo)
	ib, bok := b.(IntegerInfo)
	if aok && bok {
		return ia.Width() == ib.Width() && ia.Signed() == ib.Signed()
	}
	return a.UniformName() == b.UniformName()
}

// KindOf maps a variant.Kind to its uniform registry name, used by callers
// that only have a bare primitive and need to resolve its Info.
func KindOf(k variant.Kind) string {
	switch k {
	case variant.KindI8:
		return "@i8"
	case variant.KindI16:
		return "@i16"
	case variant.KindI32:
		return "@i32"
	case variant.KindI64:
		return "@i64"
	case variant.KindU8:
		return "@u8"
	case variant.KindU16:
		return "@u16"
	case variant.KindU32:
		return "@u32"
	case variant.KindU64:
		return "@u64"
	case variant.KindF32:
		return "@f32"
	case variant.KindF64:
		return "@f64"
	case variant.KindF128:
		return "@f128"
	case variant.KindUTF8:
		return "@str"
	case variant.KindUTF16:
		return "@u16str"
	case variant.KindUTF32:
		return "@u32str"
	default:
		return "@0"
	}
}
