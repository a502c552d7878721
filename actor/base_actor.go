package actor

import (
	"log"
	"sync"

	"go.uber.org/atomic"

	"github.com/veyronis/anytuple/mailbox"
	"github.com/veyronis/anytuple/node"
	"github.com/veyronis/anytuple/persistence"
	"github.com/veyronis/anytuple/tuple"
	"github.com/veyronis/anytuple/typeinfo"
	"github.com/veyronis/anytuple/wire"
)

// Context is handed to a ReceiveFunc for the duration of one message
// dispatch, replacing a bare *Context{system, self, senderID} with
// the Ref-based sender/self pair the new Channel hierarchy uses.
type Context struct {
	Self   *Ref
	Sender *Ref
}

// ReceiveFunc is the user-supplied handler invoked once per dequeued
// message, operating on an any-tuple payload instead of a bare interface{}.
type ReceiveFunc func(ctx *Context, content tuple.Any)

// BaseActor is the local-actor implementation of the Channel/Actor
// interfaces (module F), backed by a mailbox and a dedicated goroutine
// loop driven only by the abstractions this package defines.
type BaseActor struct {
	id       ID
	nodeInfo node.Info
	self     *Ref

	mb      *mailbox.Mailbox
	receive ReceiveFunc

	registry *Registry // optional; used for running-count bookkeeping

	attachMu    sync.Mutex
	attachables []Attachable

	linksMu sync.RWMutex
	links   map[*Ref]struct{}

	exited     atomic.Bool
	exitReason uint32

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	wal        *persistence.WAL
	walCodec   wire.Codec
	walTypes   *typeinfo.Registry
	walContent typeinfo.Info
}

// BaseActorOptions configures a BaseActor.
type BaseActorOptions struct {
	Mailbox  mailbox.Options
	Receive  ReceiveFunc
	Registry *Registry

	// WAL, when non-nil, causes every enqueued message's content to be
	// appended before delivery and replayed at Start, using the
	// persistence.WAL pattern (persistence/wal.go). Replayed messages
	// carry a nil Sender: only Content survives a crash, matching the
	// core's "purely in-memory" note in §6 for everything except this
	// opt-in durability layer.
	WAL        *persistence.WAL
	WALCodec   wire.Codec
	WALTypes   *typeinfo.Registry
	WALContent typeinfo.Info
}

// NewBaseActor constructs a BaseActor identified by id.
func NewBaseActor(id ID, nodeInfo node.Info, opts BaseActorOptions) *BaseActor {
	a := &BaseActor{
		id:         id,
		nodeInfo:   nodeInfo,
		mb:         mailbox.New(opts.Mailbox),
		receive:    opts.Receive,
		registry:   opts.Registry,
		links:      make(map[*Ref]struct{}),
		done:       make(chan struct{}),
		wal:        opts.WAL,
		walCodec:   opts.WALCodec,
		walTypes:   opts.WALTypes,
		walContent: opts.WALContent,
	}
	a.self = NewRef(a)
	return a
}

// Self returns the actor's own Ref, for constructing outbound messages.
func (a *BaseActor) Self() *Ref { return a.self }

func (a *BaseActor) ID() ID               { return a.id }
func (a *BaseActor) NodeInfo() node.Info  { return a.nodeInfo }
func (a *BaseActor) IsProxy() bool        { return false }
func (a *BaseActor) isExited() bool       { return a.exited.Load() }

// Enqueue pushes msg onto the mailbox, non-blocking and thread-safe per §9's
// mailbox-coupling note.
func (a *BaseActor) Enqueue(sender *Ref, msg Message) error {
	if a.wal != nil && msg.Content != nil {
		if b, err := a.encodeContent(msg.Content); err == nil {
			_ = a.wal.Append(b)
		}
	}
	return a.mb.Push(mailbox.Envelope{Payload: msg})
}

func (a *BaseActor) encodeContent(content tuple.Any) ([]byte, error) {
	if a.walCodec == nil || a.walContent == nil {
		return nil, errNoWALCodec
	}
	s, sink := a.walCodec.NewSerializer()
	if err := a.walContent.Serialize(content, s); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

// Start launches the dispatch loop and, if bound to a Registry, records the
// actor as running. Idempotent.
func (a *BaseActor) Start() {
	a.startOnce.Do(func() {
		if a.registry != nil {
			a.registry.IncRunning()
		}
		if a.wal != nil {
			a.replayWAL()
		}
		go a.run()
	})
}

func (a *BaseActor) replayWAL() {
	recs, err := a.wal.Replay()
	if err != nil {
		return
	}
	for _, b := range recs {
		if a.walCodec == nil || a.walContent == nil {
			continue
		}
		d, err := a.walCodec.NewDeserializer(b)
		if err != nil {
			continue
		}
		v, err := a.walContent.Deserialize(d)
		if err != nil {
			continue
		}
		content, ok := v.(tuple.Any)
		if !ok {
			continue
		}
		_ = a.mb.Push(mailbox.Envelope{Payload: Message{Receiver: a, Content: content}})
	}
}

func (a *BaseActor) run() {
	defer close(a.done)
	for {
		env, ok := a.mb.Pop()
		if ok {
			a.handle(env)
			continue
		}
		if !a.mb.Wait() {
			return
		}
	}
}

func (a *BaseActor) handle(env mailbox.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("actor panic id=%d: %v", a.id, r)
			// Exit closes the mailbox and joins on a.done, which run()'s defer
			// only closes after handle returns — calling Exit synchronously
			// here would deadlock this very goroutine. Run it on its own
			// goroutine instead.
			go a.Exit(1)
		}
	}()
	msg, ok := env.Payload.(Message)
	if !ok {
		return
	}
	if a.handleControl(msg.Content) {
		return
	}
	if a.receive == nil {
		return
	}
	a.receive(&Context{Self: a.self, Sender: msg.Sender}, msg.Content)
}

// handleControl intercepts :Link/:Unlink control messages addressed to this
// actor, per the receiving-side interception rule in control.go. Reports
// whether content was a recognized control message (and thus already
// handled, never reaching the user ReceiveFunc).
func (a *BaseActor) handleControl(content tuple.Any) bool {
	kind, aid, _, ok := AsControl(content)
	if !ok || a.registry == nil {
		return false
	}
	peer, found := a.registry.Get(ID(aid))
	if !found || peer == nil {
		return kind == ControlLink || kind == ControlUnlink
	}
	switch kind {
	case ControlLink:
		_ = a.LinkTo(peer)
		return true
	case ControlUnlink:
		_ = a.UnlinkFrom(peer)
		return true
	default:
		return false
	}
}

// Exit terminates the actor with the given reason (§4.5, §8.3): every
// attachable fires Detach(reason) in attachment order, then the mailbox is
// closed and the running-count decremented. Idempotent — a second Exit
// call is a no-op.
func (a *BaseActor) Exit(reason uint32) {
	a.stopOnce.Do(func() {
		a.exitReason = reason
		a.exited.Store(true)

		a.attachMu.Lock()
		fired := a.attachables
		a.attachables = nil
		a.attachMu.Unlock()
		for _, at := range fired {
			at.Detach(reason)
		}

		a.mb.Close()
		<-a.done
		if a.wal != nil {
			_ = a.wal.Close()
		}
		if a.registry != nil {
			a.registry.DecRunning()
		}
	})
}

// Attach installs a, per §4.5. Returns false, firing a's Detach
// immediately with the recorded exit reason, if the actor has already
// exited.
func (a *BaseActor) Attach(at Attachable) bool {
	a.attachMu.Lock()
	if a.isExited() {
		a.attachMu.Unlock()
		at.Detach(a.exitReason)
		return false
	}
	a.attachables = append(a.attachables, at)
	a.attachMu.Unlock()
	return true
}

// Detach removes the first attachment matching tok without firing it,
// per §4.5.
func (a *BaseActor) Detach(tok Token) {
	a.attachMu.Lock()
	defer a.attachMu.Unlock()
	for i, at := range a.attachables {
		if at.Matches(tok) {
			a.attachables = append(a.attachables[:i], a.attachables[i+1:]...)
			return
		}
	}
}

// LinkTo establishes a bidirectional link with other, per §4.5. Returns
// ErrExitedActor without linking if this actor has already exited; the
// other side's exit state is not checked here.
func (a *BaseActor) LinkTo(other *Ref) error {
	if a.isExited() {
		return ErrExitedActor
	}
	otherActor, ok := other.AsActor()
	if !ok {
		return errNotAnActor
	}
	a.linksMu.Lock()
	a.links[other] = struct{}{}
	a.linksMu.Unlock()

	otherActor.EstablishBacklink(a.self)

	a.Attach(NewFuncAttachable(Token{Kind: TokenLink, Ptr: other}, func(reason uint32) {
		if reason != NormalExit {
			_ = other.Enqueue(nil, Message{Receiver: other.Channel(), Content: exitSignalContent(reason)})
		}
		otherActor.RemoveBacklink(a.self)
	}))
	return nil
}

// UnlinkFrom removes a bidirectional link, per §4.5.
func (a *BaseActor) UnlinkFrom(other *Ref) error {
	if a.isExited() {
		return ErrExitedActor
	}
	a.linksMu.Lock()
	delete(a.links, other)
	a.linksMu.Unlock()
	a.Detach(Token{Kind: TokenLink, Ptr: other})
	if oa, ok := other.AsActor(); ok {
		oa.RemoveBacklink(a.self)
	}
	return nil
}

// EstablishBacklink records self on the other side of a LinkTo call and
// installs the matching exit-signal attachment, per §4.5.
func (a *BaseActor) EstablishBacklink(self *Ref) {
	a.linksMu.Lock()
	a.links[self] = struct{}{}
	a.linksMu.Unlock()

	a.Attach(NewFuncAttachable(Token{Kind: TokenLink, Ptr: self}, func(reason uint32) {
		if reason != NormalExit {
			_ = self.Enqueue(nil, Message{Receiver: self.Channel(), Content: exitSignalContent(reason)})
		}
		if sa, ok := self.AsActor(); ok {
			sa.RemoveBacklink(a.self)
		}
	}))
}

// RemoveBacklink is the other side of UnlinkFrom/link-exit cleanup.
func (a *BaseActor) RemoveBacklink(self *Ref) {
	a.linksMu.Lock()
	delete(a.links, self)
	a.linksMu.Unlock()
	a.Detach(Token{Kind: TokenLink, Ptr: self})
}

// Linked reports whether other is currently in the link set, for tests and
// diagnostics (§8.4).
func (a *BaseActor) Linked(other *Ref) bool {
	a.linksMu.RLock()
	defer a.linksMu.RUnlock()
	_, ok := a.links[other]
	return ok
}
