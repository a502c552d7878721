// Package actor implements the channel/actor/group kernel of the runtime
// (spec modules F, G, K, M): identity, mailbox delivery, links, attachments,
// and the process-local actor registry. It replaces an ad hoc IActor/System
// pair with a sealed Channel hierarchy, while keeping a mailbox-backed
// goroutine loop (base_actor.go) as the actual delivery mechanism.
package actor

import "github.com/pkg/errors"

// ErrExitedActor is returned by LinkTo/UnlinkFrom on an actor that has
// already exited, per §7's ExitedActor row (Attach reports the same case by
// returning false).
var ErrExitedActor = errors.New("actor: operation on exited actor")

// ErrUnderflow is the value Registry.DecRunning panics with when the
// running count drops below zero; per §7 this is fatal, not silently
// clamped.
var ErrUnderflow = errors.New("actor: running count underflow")

// NormalExit is the reason code used for a clean, expected termination; any
// other value is treated as abnormal for the purposes of link exit-signal
// propagation (§4.5).
const NormalExit uint32 = 0

// Channel is the sealed abstraction of §4.5: the only thing every message
// destination — actor or group — can do is accept a message. Go has no
// sealed-interface keyword; the convention enforced by this package is that
// only actor.BaseActor, proxy.ActorProxy, and group.Group implement it.
type Channel interface {
	Enqueue(sender *Ref, msg Message) error
}

// Token identifies an attached Attachable so Detach can find it again by
// abstract identity rather than by a specific closure value, per §4.12.
type Token struct {
	Kind uint8
	Ptr  any
}

// Token kinds used by the built-in attachables this package and the group
// package install.
const (
	TokenLink uint8 = iota + 1
	TokenGroup
	TokenRegistry
	TokenMonitor
)

// Attachable is fired exactly once, at actor exit, in attachment order
// (§4.5, §8.3). Matches lets Detach locate an attachment by the token it
// was installed with.
type Attachable interface {
	Detach(reason uint32)
	Matches(tok Token) bool
}

// funcAttachable adapts a plain closure to Attachable, avoiding a
// one-off named type at every call site that only needs a callback.
type funcAttachable struct {
	token  Token
	onExit func(reason uint32)
}

// NewFuncAttachable builds an Attachable matched by tok that runs onExit at
// detach time.
func NewFuncAttachable(tok Token, onExit func(reason uint32)) Attachable {
	return &funcAttachable{token: tok, onExit: onExit}
}

func (f *funcAttachable) Detach(reason uint32) {
	if f.onExit != nil {
		f.onExit(reason)
	}
}

func (f *funcAttachable) Matches(tok Token) bool { return tok == f.token }
