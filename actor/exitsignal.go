package actor

import (
	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/tuple"
	"github.com/veyronis/anytuple/wire"
)

var (
	errNoWALCodec = errors.New("actor: no WAL codec configured")
	errNotAnActor = errors.New("actor: target channel is not an actor")
)

// exitReasonInfo is a small local type-info object (not registered in the
// process-wide typeinfo.Registry, since it only ever appears inside the
// kernel-internal exit-signal tuple) that lets the link exit-signal path
// build a one-slot tuple.Any without depending on the type-info package's
// bootstrap set.
type exitReasonInfo struct{}

func (exitReasonInfo) UniformName() string { return "@exit_reason" }
func (exitReasonInfo) RawNames() []string  { return []string{"exit_reason"} }

func (exitReasonInfo) Serialize(v any, w wire.Serializer) error {
	return errors.New("actor: exit-signal content is not wire-serializable")
}

func (exitReasonInfo) Deserialize(r wire.Deserializer) (any, error) {
	return nil, errors.New("actor: exit-signal content is not wire-serializable")
}

func (exitReasonInfo) Equals(a, b any) bool {
	ra, aok := a.(uint32)
	rb, bok := b.(uint32)
	return aok && bok && ra == rb
}

func (exitReasonInfo) NewInstance() any { return uint32(0) }

// exitSignalContent builds the any-tuple content carried by the exit
// signal a link sends when its peer exits with a non-normal reason
// (§4.5).
func exitSignalContent(reason uint32) tuple.Any {
	return tuple.NewBuilder().Append(exitReasonInfo{}, reason).Build()
}
