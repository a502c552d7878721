package actor

import (
	"testing"

	"github.com/veyronis/anytuple/node"
	"github.com/veyronis/anytuple/tuple"
	"github.com/veyronis/anytuple/typeinfo"
	"github.com/veyronis/anytuple/wire"
)

// TestControlInfoStringCodecRoundTrip exercises ControlInfo.Serialize and
// Deserialize directly against the string codec, checking a :Link control
// message survives a real encode/decode instead of hitting the old stub
// error, and that AsControl can parse the rebuilt tuple back out.
func TestControlInfoStringCodecRoundTrip(t *testing.T) {
	reg := NewRegistry()
	other, otherID := newTestActor(t, reg, nil)

	content := ControlContent(ControlLink, other.Self())
	slotValue, err := content.At(0)
	if err != nil {
		t.Fatal(err)
	}

	types := typeinfo.New()
	types.Bootstrap()
	types.Announce(ControlInfo{})
	info, err := types.MustResolve("@control")
	if err != nil {
		t.Fatal(err)
	}

	c := wire.StringCodec{}
	s, sink := c.NewSerializer()
	if err := info.Serialize(slotValue, s); err != nil {
		t.Fatalf("expected a real serialization, got %v", err)
	}

	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := info.Deserialize(d)
	if err != nil {
		t.Fatalf("expected a real deserialization, got %v", err)
	}

	decodedTuple := tuple.NewBuilder().Append(info, decoded).Build()
	kind, aid, peer, ok := AsControl(decodedTuple)
	if !ok {
		t.Fatal("expected decoded value to parse back as a control message")
	}
	if kind != ControlLink {
		t.Fatalf("got kind %v want ControlLink", kind)
	}
	if ID(aid) != otherID {
		t.Fatalf("got aid %d want %d", aid, otherID)
	}
	if peer.Compare(node.Local()) != 0 {
		t.Fatalf("got peer %s want local node", peer.String())
	}
}

// TestControlInfoProtoCodecRoundTrip exercises the same round trip against
// the binary codec.
func TestControlInfoProtoCodecRoundTrip(t *testing.T) {
	reg := NewRegistry()
	other, otherID := newTestActor(t, reg, nil)

	content := ControlContent(ControlKillProxy, other.Self())
	slotValue, err := content.At(0)
	if err != nil {
		t.Fatal(err)
	}

	c := wire.ProtoCodec{}
	s, sink := c.NewSerializer()
	if err := (ControlInfo{}).Serialize(slotValue, s); err != nil {
		t.Fatal(err)
	}

	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := (ControlInfo{}).Deserialize(d)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := decoded.(controlPayload)
	if !ok {
		t.Fatalf("expected controlPayload, got %T", decoded)
	}
	if p.Kind != ControlKillProxy || ID(p.AID) != otherID {
		t.Fatalf("got %+v", p)
	}
}
