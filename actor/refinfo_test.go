package actor

import (
	"strings"
	"testing"

	"github.com/veyronis/anytuple/node"
	"github.com/veyronis/anytuple/wire"
)

// fakeGroupChannel stands in for group.Group (moduleName, id) identity
// without this package importing group.
type fakeGroupChannel struct {
	module, id string
}

func (g *fakeGroupChannel) ModuleName() string { return g.module }
func (g *fakeGroupChannel) ID() string         { return g.id }
func (g *fakeGroupChannel) Enqueue(*Ref, Message) error {
	return nil
}

// TestChannelInfoActorArmRoundTrip checks the @actor arm of the
// discriminated channel_ref form still resolves a local actor by id.
func TestChannelInfoActorArmRoundTrip(t *testing.T) {
	reg := NewRegistry()
	a, id := newTestActor(t, reg, nil)
	local := node.Local()

	info := &ChannelInfo{Registry: reg, Local: local}

	c := wire.StringCodec{}
	s, sink := c.NewSerializer()
	if err := info.Serialize(a.Self().Channel(), s); err != nil {
		t.Fatal(err)
	}
	rendered := string(sink.Bytes())
	if !strings.Contains(rendered, "@channel") || !strings.Contains(rendered, "@actor") {
		t.Fatalf("expected the actor arm nested under @channel, got %q", rendered)
	}

	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := info.Deserialize(d)
	if err != nil {
		t.Fatal(err)
	}
	ref, ok := decoded.(*Ref)
	if !ok {
		t.Fatalf("expected *Ref, got %T", decoded)
	}
	got, ok := ref.AsActor()
	if !ok || got.ID() != id {
		t.Fatalf("expected the decoded ref to resolve back to actor %d", id)
	}
}

// TestChannelInfoGroupArmRoundTrip checks a group-shaped channel (identified
// by moduleName/id rather than aid/node) can cross the wire, closing the gap
// where only actor-shaped channels could be serialized.
func TestChannelInfoGroupArmRoundTrip(t *testing.T) {
	g := &fakeGroupChannel{module: "local", id: "topic"}
	var resolved *fakeGroupChannel
	info := &ChannelInfo{
		Groups: func(moduleName, id string) (Channel, error) {
			resolved = &fakeGroupChannel{module: moduleName, id: id}
			return resolved, nil
		},
	}

	c := wire.ProtoCodec{}
	s, sink := c.NewSerializer()
	if err := info.Serialize(Channel(g), s); err != nil {
		t.Fatal(err)
	}

	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := info.Deserialize(d)
	if err != nil {
		t.Fatal(err)
	}
	ref, ok := decoded.(*Ref)
	if !ok {
		t.Fatalf("expected *Ref, got %T", decoded)
	}
	got, ok := ref.Channel().(*fakeGroupChannel)
	if !ok {
		t.Fatalf("expected the decoded ref to wrap a group channel, got %T", ref.Channel())
	}
	if got.module != "local" || got.id != "topic" {
		t.Fatalf("got %+v want module=local id=topic", got)
	}
	if resolved != got {
		t.Fatal("expected Deserialize to wrap the exact Channel the resolver returned")
	}
}

// TestChannelInfoGroupArmWithoutResolverFails checks decode surfaces
// ErrUnresolvableRef rather than panicking when no Groups resolver is wired.
func TestChannelInfoGroupArmWithoutResolverFails(t *testing.T) {
	g := &fakeGroupChannel{module: "local", id: "topic"}
	encodeInfo := &ChannelInfo{
		Groups: func(moduleName, id string) (Channel, error) { return g, nil },
	}
	c := wire.StringCodec{}
	s, sink := c.NewSerializer()
	if err := encodeInfo.Serialize(Channel(g), s); err != nil {
		t.Fatal(err)
	}

	decodeInfo := &ChannelInfo{}
	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := decodeInfo.Deserialize(d); err == nil {
		t.Fatal("expected decode to fail without a Groups resolver configured")
	}
}

// TestChannelInfoNullArmRoundTrip checks a nil Channel serializes through
// the @0 arm and decodes back to a Ref whose Channel() is nil, rather than
// erroring the way the old actor-only implementation did.
func TestChannelInfoNullArmRoundTrip(t *testing.T) {
	info := &ChannelInfo{}
	c := wire.StringCodec{}
	s, sink := c.NewSerializer()
	if err := info.Serialize(nil, s); err != nil {
		t.Fatal(err)
	}
	if got := string(sink.Bytes()); !strings.Contains(got, "@0") {
		t.Fatalf("expected the null arm to render as @0, got %q", got)
	}

	d, err := c.NewDeserializer(sink.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := info.Deserialize(d)
	if err != nil {
		t.Fatal(err)
	}
	ref, ok := decoded.(*Ref)
	if !ok {
		t.Fatalf("expected *Ref, got %T", decoded)
	}
	if ref.Channel() != nil {
		t.Fatal("expected a nil Channel decoded back from the null arm")
	}
}
