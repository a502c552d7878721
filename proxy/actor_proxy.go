package proxy

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/actor"
	"github.com/veyronis/anytuple/node"
)

// ErrProxyKilled is returned by Enqueue on a proxy after Kill has been
// called on it.
var ErrProxyKilled = errors.New("proxy: actor proxy has been killed")

// Sender forwards a message to a remote node, implemented by
// mailman.Mailman. Declared here rather than importing mailman directly so
// proxy stays a leaf with respect to the outbound-transport package.
type Sender interface {
	Send(peer node.Info, msg actor.Message) error
}

// ActorProxy stands in for a remote actor, forwarding everything sent to it
// over a Sender, per default_actor_proxy.cpp.
type ActorProxy struct {
	aid    actor.ID
	parent node.Info
	sender Sender
	self   *actor.Ref

	mu     sync.Mutex
	killed bool

	attachMu    sync.Mutex
	attachables []actor.Attachable

	linksMu sync.RWMutex
	links   map[*actor.Ref]struct{}
}

// New constructs a proxy for the remote actor aid living on parent, routing
// outbound traffic through sender.
func New(aid actor.ID, parent node.Info, sender Sender) *ActorProxy {
	p := &ActorProxy{aid: aid, parent: parent, sender: sender, links: make(map[*actor.Ref]struct{})}
	p.self = actor.NewRef(p)
	return p
}

// Self returns the proxy's own Ref.
func (p *ActorProxy) Self() *actor.Ref { return p.self }

func (p *ActorProxy) ID() actor.ID          { return p.aid }
func (p *ActorProxy) NodeInfo() node.Info   { return p.parent }
func (p *ActorProxy) IsProxy() bool         { return true }

// Enqueue forwards msg to the remote node via Sender, per
// default_actor_proxy::forward_msg. A proxy that has been killed rejects
// further sends.
func (p *ActorProxy) Enqueue(sender *actor.Ref, msg actor.Message) error {
	p.mu.Lock()
	killed := p.killed
	p.mu.Unlock()
	if killed {
		return ErrProxyKilled
	}
	return p.sender.Send(p.parent, actor.Message{Sender: sender, Receiver: p, Content: msg.Content})
}

// Kill marks the proxy dead, firing every attachable with reason, per the
// original's cleanup(reason). No code in this module calls Kill when a
// :KillProxy control message arrives.
func (p *ActorProxy) Kill(reason uint32) {
	p.mu.Lock()
	if p.killed {
		p.mu.Unlock()
		return
	}
	p.killed = true
	p.mu.Unlock()

	p.attachMu.Lock()
	fired := p.attachables
	p.attachables = nil
	p.attachMu.Unlock()
	for _, at := range fired {
		at.Detach(reason)
	}
}

// Attach installs at, immediately firing Detach if the proxy is already
// killed.
func (p *ActorProxy) Attach(at actor.Attachable) bool {
	p.mu.Lock()
	killed := p.killed
	p.mu.Unlock()
	if killed {
		at.Detach(1)
		return false
	}
	p.attachMu.Lock()
	p.attachables = append(p.attachables, at)
	p.attachMu.Unlock()
	return true
}

// Detach removes the first attachable matching tok without firing it.
func (p *ActorProxy) Detach(tok actor.Token) {
	p.attachMu.Lock()
	defer p.attachMu.Unlock()
	for i, at := range p.attachables {
		if at.Matches(tok) {
			p.attachables = append(p.attachables[:i], p.attachables[i+1:]...)
			return
		}
	}
}

// LinkTo forwards a :Link control message to the remote actor, per
// default_actor_proxy::link_to — the remote side, not this proxy, owns the
// authoritative link set.
func (p *ActorProxy) LinkTo(other *actor.Ref) error {
	p.linksMu.Lock()
	p.links[other] = struct{}{}
	p.linksMu.Unlock()
	return p.sendControl(actor.ControlLink, other)
}

// UnlinkFrom forwards a :Unlink control message, per
// default_actor_proxy::unlink_from.
func (p *ActorProxy) UnlinkFrom(other *actor.Ref) error {
	p.linksMu.Lock()
	delete(p.links, other)
	p.linksMu.Unlock()
	return p.sendControl(actor.ControlUnlink, other)
}

// EstablishBacklink records the peer-side half of a link established
// remotely (the receiving side's BaseActor.LinkTo calls this through the
// proxy's Actor interface), per default_actor_proxy::establish_backlink.
func (p *ActorProxy) EstablishBacklink(self *actor.Ref) {
	p.linksMu.Lock()
	p.links[self] = struct{}{}
	p.linksMu.Unlock()
}

// RemoveBacklink is the other side of EstablishBacklink.
func (p *ActorProxy) RemoveBacklink(self *actor.Ref) {
	p.linksMu.Lock()
	delete(p.links, self)
	p.linksMu.Unlock()
}

// Linked reports whether other is in the locally cached link set. This is
// advisory only — the authoritative set lives on the remote node.
func (p *ActorProxy) Linked(other *actor.Ref) bool {
	p.linksMu.RLock()
	defer p.linksMu.RUnlock()
	_, ok := p.links[other]
	return ok
}

func (p *ActorProxy) sendControl(kind actor.ControlKind, other *actor.Ref) error {
	content := actor.ControlContent(kind, other)
	return p.sender.Send(p.parent, actor.Message{Sender: p.self, Receiver: p, Content: content})
}
