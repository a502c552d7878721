// Package runtime replaces the process-wide global singletons of the
// original implementation (a static actor registry, a static group
// manager, a static middleman) with an explicit Environment object handed
// to actors at construction, while still keeping a lazily-built default
// instance around for callers that don't need multiple isolated runtimes
// (spec module N).
package runtime

import (
	"context"
	"sync"

	"github.com/veyronis/anytuple/actor"
	"github.com/veyronis/anytuple/group"
	"github.com/veyronis/anytuple/mailman"
	"github.com/veyronis/anytuple/node"
	"github.com/veyronis/anytuple/proxy"
	"github.com/veyronis/anytuple/tuple"
	"github.com/veyronis/anytuple/typeinfo"
	"github.com/veyronis/anytuple/wire"
)

// Environment wires together every stateful component the kernel needs:
// the type-info registry, the actor registry, the group manager, the
// mailman outbound queue, and the proxy cache remote references intern
// into.
type Environment struct {
	Types    *typeinfo.Registry
	Registry *actor.Registry
	Groups   *group.Manager
	Mailman  *mailman.Mailman
	Proxies  *proxy.Cache

	codec  wire.Codec
	cancel context.CancelFunc
}

// Option configures a New Environment.
type Option func(*Environment)

// WithCodec overrides the wire codec Mailman uses; defaults to
// wire.ProtoCodec{}.
func WithCodec(c wire.Codec) Option {
	return func(e *Environment) { e.codec = c }
}

// New builds an Environment, initializing components in dependency order:
// Types, then Registry, then Groups, then Mailman.
func New(opts ...Option) *Environment {
	e := &Environment{codec: wire.ProtoCodec{}}
	for _, opt := range opts {
		opt(e)
	}

	e.Types = typeinfo.New()
	e.Types.Bootstrap()

	e.Registry = actor.NewRegistry()
	e.Groups = group.NewManager()
	e.Groups.Bootstrap()
	e.Proxies = proxy.NewCache()

	e.Mailman = mailman.New(e.codec, e.Types)
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go e.Mailman.Loop(ctx)

	// The kernel's own reference types are announced here rather than from
	// typeinfo.Registry.Bootstrap, since they close over this Environment's
	// Registry/Mailman/Proxies and would otherwise force typeinfo to import
	// actor/tuple/proxy.
	local := node.Local()
	e.Types.Announce(&actor.RefInfo{Registry: e.Registry, Local: local, Remote: e.resolveRemoteRef})
	e.Types.Announce(&actor.ChannelInfo{Registry: e.Registry, Local: local, Remote: e.resolveRemoteRef, Groups: e.resolveGroupRef})
	e.Types.Announce(actor.ControlInfo{})
	e.Types.Announce(tuple.NewInfo(e.Types))

	return e
}

// resolveRemoteRef interns a proxy for a reference decoded off the wire that
// names a node other than this process, per §4.4's "remote → proxy-cache
// intern" rule.
func (e *Environment) resolveRemoteRef(aid actor.ID, peer node.Info) (*actor.Ref, error) {
	key := proxy.KeyFor(uint32(aid), peer)
	return e.Proxies.GetOrCreate(key, func() *actor.Ref {
		return proxy.New(aid, peer, e.Mailman).Self()
	}), nil
}

// resolveGroupRef turns a decoded (moduleName, id) pair back into a live
// group channel, per §4.4's group-ref arm of channel_ref: groups are looked
// up (never proxied) since a group is a fan-out point rather than a peer
// with its own node identity.
func (e *Environment) resolveGroupRef(moduleName, id string) (actor.Channel, error) {
	g, err := e.Groups.Get(moduleName, id)
	if err != nil {
		return nil, err
	}
	return g, nil
}

var (
	defaultOnce sync.Once
	defaultEnv  *Environment
)

// Default returns a process-wide lazily constructed Environment. The core
// API never calls this implicitly; it exists purely as a convenience for
// callers (the demo binary, ad hoc scripts) that don't need multiple
// isolated runtimes.
func Default() *Environment {
	defaultOnce.Do(func() { defaultEnv = New() })
	return defaultEnv
}

// Shutdown tears components down in reverse dependency order, waiting for
// every actor to finish running before closing Mailman, per §4.13.
func (e *Environment) Shutdown(ctx context.Context) error {
	if err := e.Registry.AwaitRunningCountEqual(ctx, 0); err != nil {
		return err
	}
	e.Mailman.Kill()
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}
