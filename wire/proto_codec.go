package wire

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/veyronis/anytuple/variant"
)

// ProtoCodec implements a compact binary wire format built directly on
// google.golang.org/protobuf's low-level wire primitives (protowire), used
// by mailman for peer-to-peer traffic where a self-describing textual
// stream would waste bandwidth. It emits the exact same call sequence as
// StringCodec — BeginObject/WriteValue/BeginSequence/... — as a flat stream
// of (field-number, wire-type) records rather than through a generated
// protobuf message, since there is no fixed schema: an any-tuple's shape is
// only known once its type-info Serialize method runs.
type ProtoCodec struct{}

// Field numbers double as the record discriminator for each Serializer
// call, tagged with the protobuf wire type protowire expects for that
// record's payload.
const (
	fieldBeginObject = 1 // bytes: object name
	fieldEndObject   = 2 // varint: unused, always 0
	fieldBeginSeq    = 3 // varint: element count
	fieldEndSeq      = 4 // varint: unused, always 0
	fieldValue       = 5 // bytes: 1 kind byte + payload
)

func (ProtoCodec) NewSerializer() (Serializer, Sink) {
	s := &protoSerializer{}
	return s, s
}

func (ProtoCodec) NewDeserializer(data []byte) (Deserializer, error) {
	return &protoDeserializer{buf: data}, nil
}

type protoSerializer struct {
	buf []byte
}

func (s *protoSerializer) BeginObject(name string) error {
	s.buf = protowire.AppendTag(s.buf, fieldBeginObject, protowire.BytesType)
	s.buf = protowire.AppendString(s.buf, name)
	return nil
}

func (s *protoSerializer) EndObject() error {
	s.buf = protowire.AppendTag(s.buf, fieldEndObject, protowire.VarintType)
	s.buf = protowire.AppendVarint(s.buf, 0)
	return nil
}

func (s *protoSerializer) BeginSequence(n int) error {
	s.buf = protowire.AppendTag(s.buf, fieldBeginSeq, protowire.VarintType)
	s.buf = protowire.AppendVarint(s.buf, uint64(n))
	return nil
}

func (s *protoSerializer) EndSequence() error {
	s.buf = protowire.AppendTag(s.buf, fieldEndSeq, protowire.VarintType)
	s.buf = protowire.AppendVarint(s.buf, 0)
	return nil
}

func (s *protoSerializer) WriteValue(v variant.Variant) error {
	payload := encodeVariant(v)
	s.buf = protowire.AppendTag(s.buf, fieldValue, protowire.BytesType)
	s.buf = protowire.AppendBytes(s.buf, payload)
	return nil
}

func (s *protoSerializer) WriteTuple(values []variant.Variant) error {
	for _, v := range values {
		if err := s.WriteValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *protoSerializer) Bytes() []byte { return s.buf }

// encodeVariant packs a Variant's kind tag plus its payload into a single
// byte slice, itself carried as the bytes value of a fieldValue record.
func encodeVariant(v variant.Variant) []byte {
	out := []byte{byte(v.Kind())}
	switch v.Kind() {
	case variant.KindNull:
	case variant.KindI8, variant.KindI16, variant.KindI32, variant.KindI64:
		n, _ := v.Int64()
		out = protowire.AppendVarint(out, uint64(protowire.EncodeZigZag(n)))
	case variant.KindU8, variant.KindU16, variant.KindU32, variant.KindU64:
		n, _ := v.Uint64()
		out = protowire.AppendVarint(out, n)
	case variant.KindF32:
		f, _ := v.Float32()
		out = protowire.AppendFixed32(out, math.Float32bits(f))
	case variant.KindF64:
		f, _ := v.Float64()
		out = protowire.AppendFixed64(out, math.Float64bits(f))
	case variant.KindF128:
		f, _ := v.Float128()
		out = append(out, f[:]...)
	case variant.KindUTF8, variant.KindUTF16, variant.KindUTF32:
		s, _ := v.String()
		out = protowire.AppendString(out, s)
	}
	return out
}

func decodeVariant(kind variant.Kind, payload []byte) (variant.Variant, error) {
	if len(payload) == 0 {
		return variant.Variant{}, errors.Wrap(ErrBadFormat, "empty variant payload")
	}
	gotKind := variant.Kind(payload[0])
	if gotKind != kind {
		return variant.Variant{}, errors.Wrapf(ErrBadFormat, "expected variant kind %s, got %s", kind, gotKind)
	}
	rest := payload[1:]
	switch kind {
	case variant.KindNull:
		return variant.Null(), nil
	case variant.KindI8, variant.KindI16, variant.KindI32, variant.KindI64:
		zz, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed varint")
		}
		return intVariant(kind, protowire.DecodeZigZag(zz)), nil
	case variant.KindU8, variant.KindU16, variant.KindU32, variant.KindU64:
		u, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed varint")
		}
		return uintVariant(kind, u), nil
	case variant.KindF32:
		u, n := protowire.ConsumeFixed32(rest)
		if n < 0 {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed fixed32")
		}
		return variant.NewF32(math.Float32frombits(u)), nil
	case variant.KindF64:
		u, n := protowire.ConsumeFixed64(rest)
		if n < 0 {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed fixed64")
		}
		return variant.NewF64(math.Float64frombits(u)), nil
	case variant.KindF128:
		if len(rest) != 16 {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed f128")
		}
		var f variant.F128
		copy(f[:], rest)
		return variant.NewF128(f), nil
	case variant.KindUTF8, variant.KindUTF16, variant.KindUTF32:
		s, n := protowire.ConsumeString(rest)
		if n < 0 {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed string")
		}
		switch kind {
		case variant.KindUTF16:
			return variant.NewUTF16(s), nil
		case variant.KindUTF32:
			return variant.NewUTF32(s), nil
		default:
			return variant.NewUTF8(s), nil
		}
	default:
		return variant.Variant{}, errors.Wrap(ErrBadFormat, "unknown variant kind")
	}
}

type protoDeserializer struct {
	buf []byte
	pos int
}

// nextRecordAt reads the (field, wireType, raw) record starting at pos
// without interpreting it or moving d.pos, returning the offset just past
// it; PeekObject uses it to look ahead non-destructively.
func (d *protoDeserializer) nextRecordAt(pos int) (field protowire.Number, wt protowire.Type, raw []byte, next int, err error) {
	if pos >= len(d.buf) {
		return 0, 0, nil, pos, errors.Wrap(ErrBadFormat, "unexpected end of input")
	}
	f, t, n := protowire.ConsumeTag(d.buf[pos:])
	if n < 0 {
		return 0, 0, nil, pos, errors.Wrap(ErrBadFormat, "malformed tag")
	}
	pos += n
	switch t {
	case protowire.VarintType:
		_, m := protowire.ConsumeVarint(d.buf[pos:])
		if m < 0 {
			return 0, 0, nil, pos, errors.Wrap(ErrBadFormat, "malformed varint field")
		}
		raw = d.buf[pos : pos+m]
		pos += m
	case protowire.BytesType:
		b, m := protowire.ConsumeBytes(d.buf[pos:])
		if m < 0 {
			return 0, 0, nil, pos, errors.Wrap(ErrBadFormat, "malformed bytes field")
		}
		raw = b
		pos += m
	default:
		return 0, 0, nil, pos, errors.Wrap(ErrBadFormat, "unsupported wire type")
	}
	return f, t, raw, pos, nil
}

func (d *protoDeserializer) consumeExpecting(field protowire.Number) ([]byte, error) {
	f, _, raw, next, err := d.nextRecordAt(d.pos)
	if err != nil {
		return nil, err
	}
	if f != field {
		return nil, errors.Wrapf(ErrBadFormat, "expected field %d, got %d", field, f)
	}
	d.pos = next
	return raw, nil
}

func (d *protoDeserializer) PeekObject() (string, error) {
	f, _, raw, _, err := d.nextRecordAt(d.pos)
	if err != nil {
		return "", err
	}
	if f != fieldBeginObject {
		return "", errors.Wrap(ErrBadFormat, "expected object record")
	}
	return string(raw), nil
}

func (d *protoDeserializer) SeekObject() (string, error) {
	raw, err := d.consumeExpecting(fieldBeginObject)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (d *protoDeserializer) BeginObject(name string) error {
	got, err := d.SeekObject()
	if err != nil {
		return err
	}
	if got != name {
		return errors.Wrapf(ErrBadFormat, "expected object %q, got %q", name, got)
	}
	return nil
}

func (d *protoDeserializer) EndObject() error {
	_, err := d.consumeExpecting(fieldEndObject)
	return err
}

func (d *protoDeserializer) BeginSequence() (int, error) {
	raw, err := d.consumeExpecting(fieldBeginSeq)
	if err != nil {
		return 0, err
	}
	n, m := protowire.ConsumeVarint(raw)
	if m < 0 {
		return 0, errors.Wrap(ErrBadFormat, "malformed sequence count")
	}
	return int(n), nil
}

func (d *protoDeserializer) EndSequence() error {
	_, err := d.consumeExpecting(fieldEndSeq)
	return err
}

func (d *protoDeserializer) ReadValue(kind variant.Kind) (variant.Variant, error) {
	raw, err := d.consumeExpecting(fieldValue)
	if err != nil {
		return variant.Variant{}, err
	}
	return decodeVariant(kind, raw)
}

func (d *protoDeserializer) ReadTuple(kinds []variant.Kind) ([]variant.Variant, error) {
	out := make([]variant.Variant, len(kinds))
	for i, k := range kinds {
		v, err := d.ReadValue(k)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
