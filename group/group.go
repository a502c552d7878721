// Package group implements the group manager and group channel of spec
// modules F/H: named multicast channels organized into modules.
//
// Joining and leaving a group are expressed here as Group.Subscribe and
// Subscription.Close over *actor.Ref rather than as actor.BaseActor
// methods, so the package dependency graph stays acyclic: group needs
// actor.Channel/actor.Ref/actor.Message to fan a message out to
// subscribers, so actor cannot also import group. Subscribe installs no
// attachable on the subscribing actor, so a subscription is not removed
// when that actor exits; only Subscription.Close removes it.
package group

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/veyronis/anytuple/actor"
)

// ErrModuleNameTaken is returned by Manager.AddModule on a name collision,
// per §4.7/§7.
var ErrModuleNameTaken = errors.New("group: module name already registered")

// LocalModuleName is the built-in module always present at startup, per
// §4.7.
const LocalModuleName = "local"

// Group is a channel (§4.5) whose Enqueue fans out to every currently
// subscribed channel. It is identified by (module, identifier).
type Group struct {
	moduleName string
	id         string

	mu   sync.RWMutex
	subs map[*actor.Ref]struct{}
}

func newGroup(moduleName, id string) *Group {
	return &Group{moduleName: moduleName, id: id, subs: make(map[*actor.Ref]struct{})}
}

// ModuleName returns the module this group belongs to.
func (g *Group) ModuleName() string { return g.moduleName }

// ID returns the group's identifier within its module.
func (g *Group) ID() string { return g.id }

// Subscription is the scoped handle returned by Subscribe; dropping it
// (calling Close) unsubscribes, idempotently, per §4.5/§8.6.
type Subscription struct {
	once sync.Once
	g    *Group
	c    *actor.Ref
}

// Close unsubscribes the channel this Subscription was returned for.
// Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.g.unsubscribe(s.c)
	})
}

// Subscribe adds c to the group's subscriber set, returning a Subscription
// whose Close removes it again, per §4.5.
func (g *Group) Subscribe(c *actor.Ref) *Subscription {
	g.mu.Lock()
	g.subs[c] = struct{}{}
	g.mu.Unlock()
	return &Subscription{g: g, c: c}
}

func (g *Group) unsubscribe(c *actor.Ref) {
	g.mu.Lock()
	delete(g.subs, c)
	g.mu.Unlock()
}

// Enqueue fans msg out to every channel present in the subscriber set at
// call entry, under the group's shared lock (§4.5, §5). This is not atomic
// with respect to concurrent Subscribe/Unsubscribe: a subscriber added
// mid-enqueue may or may not see the message (§5, §9 open question ii —
// re-entrant subscribe/unsubscribe from within a subscriber's own Enqueue
// handler is undefined behavior, not guarded against here).
func (g *Group) Enqueue(sender *actor.Ref, msg actor.Message) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	targets := make([]*actor.Ref, 0, len(g.subs))
	for c := range g.subs {
		targets = append(targets, c)
	}

	eg, _ := errgroup.WithContext(context.Background())
	for _, c := range targets {
		c := c
		eg.Go(func() error {
			return c.Enqueue(sender, msg)
		})
	}
	return eg.Wait()
}

// Module maintains its own interned name->group map, per §4.7.
type Module struct {
	name string
	mu   sync.RWMutex
	byID map[string]*Group
}

// NewModule constructs an empty, named Module.
func NewModule(name string) *Module {
	return &Module{name: name, byID: make(map[string]*Group)}
}

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

// GetOrCreate returns the group named id within m, creating it on first
// use.
func (m *Module) GetOrCreate(id string) *Group {
	m.mu.RLock()
	g, ok := m.byID[id]
	m.mu.RUnlock()
	if ok {
		return g
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.byID[id]; ok {
		return g
	}
	g = newGroup(m.name, id)
	m.byID[id] = g
	return g
}

// Manager maps module name to Module, per §4.7.
type Manager struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

// NewManager returns an empty Manager. Call Bootstrap to register the
// built-in "local" module.
func NewManager() *Manager {
	return &Manager{modules: make(map[string]*Module)}
}

// Bootstrap registers the built-in "local" module, per §4.7.
func (m *Manager) Bootstrap() {
	_ = m.AddModule(NewModule(LocalModuleName))
}

// AddModule registers mod, returning ErrModuleNameTaken on a name
// collision.
func (m *Manager) AddModule(mod *Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.modules[mod.Name()]; exists {
		return errors.Wrapf(ErrModuleNameTaken, "%q", mod.Name())
	}
	m.modules[mod.Name()] = mod
	return nil
}

// Get forwards to the named module's GetOrCreate, per §4.7.
func (m *Manager) Get(module, identifier string) (*Group, error) {
	m.mu.RLock()
	mod, ok := m.modules[module]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("group: unknown module %q", module)
	}
	return mod.GetOrCreate(identifier), nil
}
