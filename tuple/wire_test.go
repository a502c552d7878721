package tuple

import (
	"testing"

	"github.com/veyronis/anytuple/typeinfo"
	"github.com/veyronis/anytuple/variant"
	"github.com/veyronis/anytuple/wire"
)

// TestInfoStringCodecScenarioS1 exercises the exact wire form scenario S1
// names: a real (@i32 7, @str "hi, \"world\"") tuple, built through
// Builder and serialized by Info against the string codec, must render as
// @tuple ( { @i32 ( 7 ), @str ( "hi, \"world\"" ) } ) and read back equal.
func TestInfoStringCodecScenarioS1(t *testing.T) {
	r := newRegistry(t)
	i32 := mustInfo(t, r, "@i32")
	str := mustInfo(t, r, "@str")
	r.Announce(NewInfo(r))
	tupleInfo := mustInfo(t, r, "@tuple")

	original := NewBuilder().
		Append(i32, variant.NewI32(7)).
		Append(str, variant.NewUTF8(`hi, "world"`)).
		Build()

	c := wire.StringCodec{}
	s, sink := c.NewSerializer()
	if err := tupleInfo.Serialize(original, s); err != nil {
		t.Fatal(err)
	}

	got := string(sink.Bytes())
	want := `@tuple ( { @i32 ( 7 ), @str ( "hi, \"world\"" ) } )`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := tupleInfo.Deserialize(d)
	if err != nil {
		t.Fatal(err)
	}
	decodedTuple, ok := decoded.(Any)
	if !ok {
		t.Fatalf("expected Any, got %T", decoded)
	}
	if !decodedTuple.Equal(original) {
		t.Fatal("decoded tuple does not equal the original")
	}
}

// TestInfoProtoCodecRoundTrip exercises the same round trip against the
// binary proto codec, which drives Info's BeginSequence/PeekObject path
// differently from the string codec's bracketed text form.
func TestInfoProtoCodecRoundTrip(t *testing.T) {
	r := newRegistry(t)
	i32 := mustInfo(t, r, "@i32")
	u64 := mustInfo(t, r, "@u64")
	r.Announce(NewInfo(r))
	tupleInfo := mustInfo(t, r, "@tuple")

	original := NewBuilder().
		Append(i32, variant.NewI32(-3)).
		Append(u64, variant.NewU64(42)).
		Build()

	c := wire.ProtoCodec{}
	s, sink := c.NewSerializer()
	if err := tupleInfo.Serialize(original, s); err != nil {
		t.Fatal(err)
	}

	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := tupleInfo.Deserialize(d)
	if err != nil {
		t.Fatal(err)
	}
	decodedTuple, ok := decoded.(Any)
	if !ok {
		t.Fatalf("expected Any, got %T", decoded)
	}
	if !decodedTuple.Equal(original) {
		t.Fatal("decoded tuple does not equal the original")
	}
}

// TestInfoRejectsUnannouncedSlotType checks Deserialize surfaces
// typeinfo.ErrUnknownType rather than panicking when a slot's uniform name
// isn't registered on the Registry driving decode.
func TestInfoRejectsUnannouncedSlotType(t *testing.T) {
	r := newRegistry(t)
	i32 := mustInfo(t, r, "@i32")
	tup := NewBuilder().Append(i32, variant.NewI32(1)).Build()

	encodeReg := newRegistry(t)
	encodeReg.Announce(NewInfo(encodeReg))
	tupleInfoForEncode := mustInfo(t, encodeReg, "@tuple")

	c := wire.StringCodec{}
	s, sink := c.NewSerializer()
	if err := tupleInfoForEncode.Serialize(tup, s); err != nil {
		t.Fatal(err)
	}

	bareReg := typeinfo.New()
	bareReg.Announce(NewInfo(bareReg))
	bareTupleInfo, _ := bareReg.ByUniformName("@tuple")

	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bareTupleInfo.Deserialize(d); err == nil {
		t.Fatal("expected an error decoding a slot type the registry never bootstrapped")
	}
}
