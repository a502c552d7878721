package actor

import (
	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/node"
	"github.com/veyronis/anytuple/tuple"
	"github.com/veyronis/anytuple/variant"
	"github.com/veyronis/anytuple/wire"
)

// ControlKind enumerates the kernel control messages spec §6 encodes as
// atoms (:Link, :Unlink, :KillProxy). Resolving Open Question (i): control
// messages are recognized and acted on by the *receiving* side only
// (BaseActor.handleControl for Link/Unlink) — a sender never inspects or
// special-cases its own outgoing content. ControlKillProxy has a code and a
// wire form, but no receiver acts on it: handleControl passes it on to the
// actor's ReceiveFunc, and nothing calls proxy.ActorProxy.Kill or
// proxy.Cache.Erase for it.
type ControlKind uint8

const (
	ControlNone ControlKind = iota
	ControlLink
	ControlUnlink
	ControlKillProxy
)

// controlPayload is the wire shape of a control message: which control it
// is, plus the peer actor id and node it names. It intentionally carries an
// id/node pair rather than a *Ref, since a control message may cross a
// process boundary where the sender's *Ref is meaningless.
type controlPayload struct {
	Kind ControlKind
	AID  uint32
	Node node.Info
}

// ControlInfo is the @control type-info carrying Link/Unlink/KillProxy on
// the wire: the ControlKind as a u8 code followed by the aid/node pair it
// names, the same (aid, pid, node-hex) shape writeActorTriple uses for
// @actor/@channel, with the control kind written first. The kind is not
// written as an atom name. Exported and stateless so a single instance can
// be Announced into a typeinfo.Registry.
type ControlInfo struct{}

func (ControlInfo) UniformName() string { return "@control" }
func (ControlInfo) RawNames() []string  { return []string{"control"} }

func (ControlInfo) Serialize(v any, w wire.Serializer) error {
	p, ok := v.(controlPayload)
	if !ok {
		return errors.Errorf("actor: @control.Serialize expects controlPayload, got %T", v)
	}
	if err := w.BeginObject("@control"); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewU8(uint8(p.Kind))); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewU32(p.AID)); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewU32(p.Node.PID)); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewUTF8(p.Node.NodeHex())); err != nil {
		return err
	}
	return w.EndObject()
}

func (ControlInfo) Deserialize(r wire.Deserializer) (any, error) {
	if err := r.BeginObject("@control"); err != nil {
		return nil, err
	}
	kindV, err := r.ReadValue(variant.KindU8)
	if err != nil {
		return nil, err
	}
	aidV, err := r.ReadValue(variant.KindU32)
	if err != nil {
		return nil, err
	}
	pidV, err := r.ReadValue(variant.KindU32)
	if err != nil {
		return nil, err
	}
	hexV, err := r.ReadValue(variant.KindUTF8)
	if err != nil {
		return nil, err
	}
	if err := r.EndObject(); err != nil {
		return nil, err
	}
	kindN, _ := kindV.Uint64()
	aidN, _ := aidV.Uint64()
	pidN, _ := pidV.Uint64()
	hexStr, _ := hexV.String()
	peer, err := node.FromHex(uint32(pidN), hexStr)
	if err != nil {
		return nil, err
	}
	return controlPayload{Kind: ControlKind(kindN), AID: uint32(aidN), Node: peer}, nil
}

func (ControlInfo) Equals(a, b any) bool {
	pa, aok := a.(controlPayload)
	pb, bok := b.(controlPayload)
	return aok && bok && pa == pb
}

func (ControlInfo) NewInstance() any { return controlPayload{} }

// ControlContent builds the one-slot tuple carrying a control message
// naming other, per spec §6's ":Link"/":Unlink" grammar.
func ControlContent(kind ControlKind, other *Ref) tuple.Any {
	payload := controlPayload{Kind: kind}
	if a, ok := other.AsActor(); ok {
		payload.AID = uint32(a.ID())
		payload.Node = a.NodeInfo()
	}
	return tuple.NewBuilder().Append(ControlInfo{}, payload).Build()
}

// AsControl reports whether content is a control message and returns its
// decoded payload.
func AsControl(content tuple.Any) (ControlKind, uint32, node.Info, bool) {
	if content == nil || content.Size() != 1 {
		return ControlNone, 0, node.Info{}, false
	}
	v, err := content.At(0)
	if err != nil {
		return ControlNone, 0, node.Info{}, false
	}
	p, ok := v.(controlPayload)
	if !ok {
		return ControlNone, 0, node.Info{}, false
	}
	return p.Kind, p.AID, p.Node, true
}
