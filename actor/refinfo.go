package actor

import (
	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/node"
	"github.com/veyronis/anytuple/variant"
	"github.com/veyronis/anytuple/wire"
)

// ErrUnresolvableRef is returned when a decoded reference names a remote
// node but no Remote resolver was configured to intern a proxy for it.
var ErrUnresolvableRef = errors.New("actor: cannot resolve remote reference")

// ErrUnknownLocalActor is returned when a decoded reference names this
// process's own node but the id is not (or no longer) present in Registry.
var ErrUnknownLocalActor = errors.New("actor: unknown local actor id")

// RefResolver turns a decoded (aid, node) pair naming a peer other than
// Local into a live *Ref, normally a proxy-cache-interned surrogate. It is a
// function rather than an interface so this package doesn't need to import
// proxy (which itself imports actor) to wire the remote case.
type RefResolver func(aid ID, peer node.Info) (*Ref, error)

// RefInfo is the @actor type-info of §4.4's "actor reference serialization":
// on the wire an actor reference is (aid, pid, node-hex). Serialize ensures
// the referenced actor is registered locally before emitting it, mirroring
// the "put(aid, ref) before emitting" rule; Deserialize dispatches on
// whether the decoded node names this process (registry lookup) or another
// one (Remote, normally a proxy-cache GetOrCreate).
type RefInfo struct {
	Registry *Registry
	Local    node.Info
	Remote   RefResolver
}

func (i *RefInfo) UniformName() string { return "@actor" }
func (i *RefInfo) RawNames() []string  { return []string{"actor", "actor_ref"} }

func (i *RefInfo) Serialize(v any, w wire.Serializer) error {
	ref, ok := v.(*Ref)
	if !ok {
		return errors.Errorf("actor: @actor.Serialize expects *Ref, got %T", v)
	}
	a, ok := ref.AsActor()
	if !ok {
		return errors.New("actor: @actor.Serialize expects a Ref downcastable to Actor")
	}
	if i.Registry != nil {
		i.Registry.Put(a.ID(), ref)
	}
	return writeActorTriple(w, "@actor", a.ID(), a.NodeInfo())
}

func (i *RefInfo) Deserialize(r wire.Deserializer) (any, error) {
	aid, peer, err := readActorTriple(r, "@actor")
	if err != nil {
		return nil, err
	}
	return i.resolve(aid, peer)
}

func (i *RefInfo) resolve(aid ID, peer node.Info) (*Ref, error) {
	if peer.Compare(i.Local) == 0 {
		ref, ok := i.Registry.Get(aid)
		if !ok || ref == nil {
			return nil, errors.Wrapf(ErrUnknownLocalActor, "id %d", aid)
		}
		return ref, nil
	}
	if i.Remote == nil {
		return nil, errors.Wrapf(ErrUnresolvableRef, "id %d at %s", aid, peer.String())
	}
	return i.Remote(aid, peer)
}

func (i *RefInfo) Equals(a, b any) bool {
	ra, aok := a.(*Ref)
	rb, bok := b.(*Ref)
	if !aok || !bok {
		return false
	}
	return sameRef(ra, rb)
}

func (i *RefInfo) NewInstance() any { return (*Ref)(nil) }

// GroupRef is implemented by a Channel identified by (moduleName, id)
// rather than by (aid, node) — group.Group is the only implementation.
// Declared here, rather than as an interface group.Manager satisfies
// directly, so this package doesn't need to import group (which itself
// imports actor to fan a Message out over actor.Channel/actor.Ref).
type GroupRef interface {
	ModuleName() string
	ID() string
}

// GroupResolver turns a decoded (moduleName, id) pair back into a live
// Channel, normally group.Manager.Get. A function type for the same
// import-cycle reason as RefResolver.
type GroupResolver func(moduleName, id string) (Channel, error)

// ChannelInfo is the @channel type-info of §4.4's "channel reference
// serialization": a discriminated channel_ref wrapping one of an @actor
// triple (BaseActor, proxy.ActorProxy — anything satisfying Actor), an
// @group (moduleName, id) pair (group.Group, via GroupRef), or the null
// @0 arm, dispatch driven by the inner object's own name rather than by an
// out-of-band flag.
type ChannelInfo struct {
	Registry *Registry
	Local    node.Info
	Remote   RefResolver
	Groups   GroupResolver
}

func (i *ChannelInfo) UniformName() string { return "@channel" }
func (i *ChannelInfo) RawNames() []string  { return []string{"channel", "channel_ref"} }

func (i *ChannelInfo) Serialize(v any, w wire.Serializer) error {
	if err := w.BeginObject("@channel"); err != nil {
		return err
	}
	if v == nil {
		if err := writeVoidArm(w); err != nil {
			return err
		}
		return w.EndObject()
	}
	ch, ok := v.(Channel)
	if !ok {
		return errors.Errorf("actor: @channel.Serialize expects a Channel, got %T", v)
	}
	switch c := ch.(type) {
	case Actor:
		if i.Registry != nil {
			if _, seen := i.Registry.Get(c.ID()); !seen {
				i.Registry.Put(c.ID(), NewRef(ch))
			}
		}
		if err := writeActorTriple(w, "@actor", c.ID(), c.NodeInfo()); err != nil {
			return err
		}
	case GroupRef:
		if err := writeGroupPair(w, c.ModuleName(), c.ID()); err != nil {
			return err
		}
	default:
		return errors.Errorf("actor: @channel.Serialize does not support channel type %T", v)
	}
	return w.EndObject()
}

func (i *ChannelInfo) Deserialize(r wire.Deserializer) (any, error) {
	if err := r.BeginObject("@channel"); err != nil {
		return nil, err
	}
	name, err := r.PeekObject()
	if err != nil {
		return nil, err
	}

	var result any
	switch name {
	case "@0":
		if err := r.BeginObject("@0"); err != nil {
			return nil, err
		}
		if err := r.EndObject(); err != nil {
			return nil, err
		}
		result = (*Ref)(nil)
	case "@group":
		moduleName, id, err := readGroupPair(r)
		if err != nil {
			return nil, err
		}
		if i.Groups == nil {
			return nil, errors.Wrapf(ErrUnresolvableRef, "group %s/%s: no group resolver configured", moduleName, id)
		}
		ch, err := i.Groups(moduleName, id)
		if err != nil {
			return nil, err
		}
		result = NewRef(ch)
	default:
		aid, peer, err := readActorTriple(r, "@actor")
		if err != nil {
			return nil, err
		}
		ref := &RefInfo{Registry: i.Registry, Local: i.Local, Remote: i.Remote}
		result, err = ref.resolve(aid, peer)
		if err != nil {
			return nil, err
		}
	}

	if err := r.EndObject(); err != nil {
		return nil, err
	}
	return result, nil
}

func (i *ChannelInfo) Equals(a, b any) bool {
	ca, aok := a.(Channel)
	cb, bok := b.(Channel)
	if !aok || !bok {
		return false
	}
	return ca == cb
}

func (i *ChannelInfo) NewInstance() any { return Channel(nil) }

// writeVoidArm/writeGroupPair/readGroupPair implement the @0 and @group arms
// of the channel_ref discriminator; the @actor arm reuses writeActorTriple/
// readActorTriple, shared with RefInfo.
func writeVoidArm(w wire.Serializer) error {
	if err := w.BeginObject("@0"); err != nil {
		return err
	}
	return w.EndObject()
}

func writeGroupPair(w wire.Serializer, moduleName, id string) error {
	if err := w.BeginObject("@group"); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewUTF8(moduleName)); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewUTF8(id)); err != nil {
		return err
	}
	return w.EndObject()
}

func readGroupPair(r wire.Deserializer) (moduleName, id string, err error) {
	if err := r.BeginObject("@group"); err != nil {
		return "", "", err
	}
	moduleV, err := r.ReadValue(variant.KindUTF8)
	if err != nil {
		return "", "", err
	}
	idV, err := r.ReadValue(variant.KindUTF8)
	if err != nil {
		return "", "", err
	}
	if err := r.EndObject(); err != nil {
		return "", "", err
	}
	moduleName, _ = moduleV.String()
	id, _ = idV.String()
	return moduleName, id, nil
}

// writeActorTriple/readActorTriple share the wire shape @actor and @channel
// both use: aid, pid, and the 40-hex node id, per §4.4.
func writeActorTriple(w wire.Serializer, name string, aid ID, n node.Info) error {
	if err := w.BeginObject(name); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewU32(uint32(aid))); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewU32(n.PID)); err != nil {
		return err
	}
	if err := w.WriteValue(variant.NewUTF8(n.NodeHex())); err != nil {
		return err
	}
	return w.EndObject()
}

func readActorTriple(r wire.Deserializer, name string) (ID, node.Info, error) {
	if err := r.BeginObject(name); err != nil {
		return 0, node.Info{}, err
	}
	aidv, err := r.ReadValue(variant.KindU32)
	if err != nil {
		return 0, node.Info{}, err
	}
	pidv, err := r.ReadValue(variant.KindU32)
	if err != nil {
		return 0, node.Info{}, err
	}
	hexv, err := r.ReadValue(variant.KindUTF8)
	if err != nil {
		return 0, node.Info{}, err
	}
	if err := r.EndObject(); err != nil {
		return 0, node.Info{}, err
	}
	aidN, _ := aidv.Uint64()
	pid, _ := pidv.Uint64()
	hexStr, _ := hexv.String()
	peer, err := node.FromHex(uint32(pid), hexStr)
	if err != nil {
		return 0, node.Info{}, err
	}
	return ID(aidN), peer, nil
}
