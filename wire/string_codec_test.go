package wire

import (
	"testing"

	"github.com/veyronis/anytuple/variant"
)

func TestStringCodecScalarObjectRoundTrip(t *testing.T) {
	c := StringCodec{}
	s, sink := c.NewSerializer()
	if err := s.BeginObject("@i32"); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteValue(variant.NewI32(7)); err != nil {
		t.Fatal(err)
	}
	if err := s.EndObject(); err != nil {
		t.Fatal(err)
	}
	got := string(sink.Bytes())
	want := "@i32 ( 7 )"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}

	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.BeginObject("@i32"); err != nil {
		t.Fatal(err)
	}
	v, err := d.ReadValue(variant.KindI32)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.EndObject(); err != nil {
		t.Fatal(err)
	}
	n, _ := v.Int64()
	if n != 7 {
		t.Fatalf("got %d want 7", n)
	}
}

// The any-tuple wire form (§4.4's scenario S1: (@i32 7, @str "hi, \"world\"")
// rendering as @tuple ( { @i32 ( 7 ), @str ( "hi, \"world\"" ) } )) is
// exercised in tuple/wire_test.go against a real tuple.Builder value and
// tuple.Info, not here: a test in this package can't import tuple without
// creating an import cycle, since tuple already imports wire.

func TestStringCodecEmptyObject(t *testing.T) {
	c := StringCodec{}
	s, sink := c.NewSerializer()
	if err := s.BeginObject("@0"); err != nil {
		t.Fatal(err)
	}
	if err := s.EndObject(); err != nil {
		t.Fatal(err)
	}
	if got, want := string(sink.Bytes()), "@0 (  )"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestStringCodecBadFormat(t *testing.T) {
	c := StringCodec{}
	d, err := c.NewDeserializer([]byte("@i32 7 )"))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.BeginObject("@i32"); err == nil {
		t.Fatalf("expected BadFormat for missing '('")
	}
}

func TestStringCodecUnknownName(t *testing.T) {
	c := StringCodec{}
	d, err := c.NewDeserializer([]byte("@i32 ( 7 )"))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.BeginObject("@i64"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
