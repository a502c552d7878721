// Package wire implements the serializer/deserializer contract of spec
// module E: an abstract sink/source pair (Serializer/Deserializer) plus two
// concrete codecs — a textual grammar (StringCodec) and a binary one
// (ProtoCodec, built on google.golang.org/protobuf's low-level wire helpers)
// — that type-info objects drive to encode and decode values.
package wire

import (
	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/variant"
)

// ErrBadFormat is returned by a Deserializer when the input stream is
// malformed: mismatched delimiters, an unknown type name, or a short read.
var ErrBadFormat = errors.New("wire: malformed input")

// Serializer is the abstract sink that type-info Serialize implementations
// write through. Object/sequence framing is explicit so that both the
// textual and binary codecs can share the exact same call sequence emitted
// by typeinfo.Info.Serialize.
type Serializer interface {
	BeginObject(name string) error
	EndObject() error
	BeginSequence(n int) error
	EndSequence() error
	WriteValue(v variant.Variant) error
	WriteTuple(values []variant.Variant) error
}

// Deserializer is the abstract source Deserialize implementations read
// through.
type Deserializer interface {
	// SeekObject peeks the next object name and consumes it (advances past
	// the name and the opening delimiter).
	SeekObject() (string, error)
	// PeekObject returns the next object name without consuming any input.
	PeekObject() (string, error)
	BeginObject(name string) error
	EndObject() error
	BeginSequence() (int, error)
	EndSequence() error
	ReadValue(kind variant.Kind) (variant.Variant, error)
	ReadTuple(kinds []variant.Kind) ([]variant.Variant, error)
}

// Codec bundles a Serializer/Deserializer pair with entry points for
// marshaling a single self-describing value, mirroring the shape of the
// teacher's actor.Serializer interface (codec.go) generalized to the
// self-describing any-tuple wire format instead of gob.
type Codec interface {
	NewSerializer() (Serializer, Sink)
	NewDeserializer(data []byte) (Deserializer, error)
}

// Sink finalizes a Serializer's output into bytes.
type Sink interface {
	Bytes() []byte
}
