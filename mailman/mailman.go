// Package mailman implements the outbound queue and peer socket table of
// spec module L, generalizing an ad hoc remoteTransport that only knew a
// single "Send" operation into the three job kinds the addressed-message
// model needs: send, add-peer, and shutdown.
package mailman

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"google.golang.org/grpc"

	"github.com/veyronis/anytuple/actor"
	"github.com/veyronis/anytuple/node"
	"github.com/veyronis/anytuple/tuple"
	"github.com/veyronis/anytuple/typeinfo"
	"github.com/veyronis/anytuple/variant"
	"github.com/veyronis/anytuple/wire"
)

// ErrNoTypeInfo is returned by deliver when the Mailman wasn't given the
// type-info registry it needs to look up @actor/@channel/@tuple to encode an
// envelope.
var ErrNoTypeInfo = errors.New("mailman: no type-info registry configured")

// ErrIOFailure is reported (via OnDropped) when a write to a peer socket
// fails; the peer is removed from the table on this error, per §7.
var ErrIOFailure = errors.New("mailman: peer io failure")

// ErrPeerUnknown is reported when a Job names a peer with no entry in the
// table; non-fatal, per §7's PeerUnknown row.
var ErrPeerUnknown = errors.New("mailman: unknown peer")

// ErrCircuitOpen is reported when a peer's circuit breaker has tripped and
// is refusing delivery attempts until it cools down.
var ErrCircuitOpen = errors.New("mailman: peer circuit open")

// JobKind discriminates the three operations mailman's single reader loop
// understands, per §4.11.
type JobKind uint8

const (
	JobSend JobKind = iota
	JobAddPeer
	JobKill
)

// Job is one unit of work enqueued to a Mailman's single-reader loop.
type Job struct {
	Kind     JobKind
	Peer     node.Info
	Envelope *actor.Message
	Conn     *grpc.ClientConn
}

type peerEntry struct {
	conn       *grpc.ClientConn
	generation uint64
	// breaker is consulted before each delivery and told its outcome. A
	// failed delivery also removes this entry from the table, so one entry's
	// breaker records at most one failure and, with the default threshold,
	// does not open; later jobs for that peer report ErrPeerUnknown until
	// AddPeer installs a new entry with a fresh breaker.
	breaker *actor.CircuitBreaker
}

// Mailman owns the outbound job queue and the peer connection table. It is
// safe to call Send/AddPeer/Kill from any goroutine; only Loop's goroutine
// touches the peer table's connections directly.
type Mailman struct {
	codec wire.Codec
	types *typeinfo.Registry

	jobs      chan Job
	queueSize atomic.Int64

	mu    sync.RWMutex
	peers map[string]*peerEntry // keyed by peerKey: node.Info.String(), "pid@node-hex"
	nextGen atomic.Uint64

	// OnDropped, if set, is called (from the Loop goroutine) whenever a job
	// is dropped: unknown peer, an open circuit breaker, or a failed delivery
	// (which also removes the peer from the table).
	OnDropped func(job Job, reason error)
}

// New constructs a Mailman using codec to encode outbound message content
// and types to look up the @actor/@channel/@tuple type-info deliver needs to
// encode a Message's sender, receiver and content.
func New(codec wire.Codec, types *typeinfo.Registry) *Mailman {
	return &Mailman{
		codec: codec,
		types: types,
		jobs:  make(chan Job, 1024),
		peers: make(map[string]*peerEntry),
	}
}

func peerKey(n node.Info) string { return n.String() }

// Send enqueues a JobSend for peer, synchronously, so that two Send calls
// issued in program order from the same goroutine are queued in that order
// (§4.11, §8.10, scenario S6's per-(sender, peer) FIFO guarantee).
func (m *Mailman) Send(peer node.Info, msg actor.Message) error {
	m.queueSize.Inc()
	m.jobs <- Job{Kind: JobSend, Peer: peer, Envelope: &msg}
	return nil
}

// AddPeer registers conn for peer.
func (m *Mailman) AddPeer(peer node.Info, conn *grpc.ClientConn) {
	m.queueSize.Inc()
	m.jobs <- Job{Kind: JobAddPeer, Peer: peer, Conn: conn}
}

// Kill requests the loop drain remaining sends and stop.
func (m *Mailman) Kill() {
	m.queueSize.Inc()
	m.jobs <- Job{Kind: JobKill}
}

// QueueDepth reports the number of jobs not yet processed, for Metrics.
func (m *Mailman) QueueDepth() int64 { return m.queueSize.Load() }

// Loop runs the single-reader dispatch loop until Kill is processed or ctx
// is done, per §4.11's "single-reader queue on a dedicated thread".
func (m *Mailman) Loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.jobs:
			m.queueSize.Dec()
			if m.dispatch(job) {
				return
			}
		}
	}
}

// dispatch processes one job, returning true if the loop should stop.
func (m *Mailman) dispatch(job Job) bool {
	switch job.Kind {
	case JobSend:
		m.handleSend(job)
	case JobAddPeer:
		m.mu.Lock()
		m.nextGen.Inc()
		m.peers[peerKey(job.Peer)] = &peerEntry{
			conn:       job.Conn,
			generation: m.nextGen.Load(),
			breaker:    actor.NewCircuitBreaker(0, 0),
		}
		m.mu.Unlock()
	case JobKill:
		m.drainSends()
		return true
	}
	return false
}

func (m *Mailman) handleSend(job Job) {
	key := peerKey(job.Peer)
	m.mu.RLock()
	entry, ok := m.peers[key]
	m.mu.RUnlock()
	if !ok {
		m.report(job, ErrPeerUnknown)
		return
	}
	now := time.Now()
	if !entry.breaker.Allow(now) {
		m.report(job, ErrCircuitOpen)
		return
	}
	if err := m.deliver(entry.conn, job.Envelope); err != nil {
		entry.breaker.OnFailure(now)
		m.mu.Lock()
		if cur, still := m.peers[key]; still && cur.generation == entry.generation {
			delete(m.peers, key)
		}
		m.mu.Unlock()
		m.report(job, errors.Wrap(ErrIOFailure, err.Error()))
		return
	}
	entry.breaker.OnSuccess()
}

// deliver invokes the Deliver RPC over conn, encoding envelope as a
// self-describing "@addressed_message" object: an optional sender @actor
// reference, the receiver @channel reference, and the @tuple content,
// exactly the (sender, receiver, content) triple §4.11 names, generalized
// from a single gob-encoded blob to the wire package's self-describing
// codecs over a plain remoteTransport.conn/Invoke pattern.
func (m *Mailman) deliver(conn *grpc.ClientConn, envelope *actor.Message) error {
	payload, err := m.encode(envelope)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	var ack deliverAck
	return conn.Invoke(ctx, deliverMethod, &deliverEnvelope{Payload: payload}, &ack, grpc.ForceCodec(wireGRPCCodec{codec: m.codec}))
}

func (m *Mailman) encode(envelope *actor.Message) ([]byte, error) {
	if m.types == nil {
		return nil, ErrNoTypeInfo
	}
	actorInfo, ok := m.types.ByUniformName("@actor")
	if !ok {
		return nil, errors.Wrap(ErrNoTypeInfo, "@actor not registered")
	}
	channelInfo, ok := m.types.ByUniformName("@channel")
	if !ok {
		return nil, errors.Wrap(ErrNoTypeInfo, "@channel not registered")
	}
	tupleInfo, ok := m.types.ByUniformName("@tuple")
	if !ok {
		return nil, errors.Wrap(ErrNoTypeInfo, "@tuple not registered")
	}

	s, sink := m.codec.NewSerializer()
	if err := s.BeginObject("@addressed_message"); err != nil {
		return nil, err
	}
	hasSender := envelope.Sender != nil
	if err := s.WriteValue(variant.NewU8(boolToU8(hasSender))); err != nil {
		return nil, err
	}
	if hasSender {
		if err := actorInfo.Serialize(envelope.Sender, s); err != nil {
			return nil, err
		}
	}
	if err := channelInfo.Serialize(envelope.Receiver, s); err != nil {
		return nil, err
	}
	if err := tupleInfo.Serialize(envelope.Content, s); err != nil {
		return nil, err
	}
	if err := s.EndObject(); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

// decodeEnvelope is the inverse of encode, used by Server.deliver on the
// receiving end.
func decodeEnvelope(types *typeinfo.Registry, codec wire.Codec, payload []byte) (*actor.Message, error) {
	actorInfo, ok := types.ByUniformName("@actor")
	if !ok {
		return nil, errors.Wrap(ErrNoTypeInfo, "@actor not registered")
	}
	channelInfo, ok := types.ByUniformName("@channel")
	if !ok {
		return nil, errors.Wrap(ErrNoTypeInfo, "@channel not registered")
	}
	tupleInfo, ok := types.ByUniformName("@tuple")
	if !ok {
		return nil, errors.Wrap(ErrNoTypeInfo, "@tuple not registered")
	}

	d, err := codec.NewDeserializer(payload)
	if err != nil {
		return nil, err
	}
	if err := d.BeginObject("@addressed_message"); err != nil {
		return nil, err
	}
	flag, err := d.ReadValue(variant.KindU8)
	if err != nil {
		return nil, err
	}
	n, _ := flag.Uint64()

	var msg actor.Message
	if n != 0 {
		sender, err := actorInfo.Deserialize(d)
		if err != nil {
			return nil, err
		}
		ref, ok := sender.(*actor.Ref)
		if !ok {
			return nil, errors.Wrap(wire.ErrBadFormat, "decoded sender is not an actor reference")
		}
		msg.Sender = ref
	}
	receiver, err := channelInfo.Deserialize(d)
	if err != nil {
		return nil, err
	}
	receiverRef, ok := receiver.(*actor.Ref)
	if !ok {
		return nil, errors.Wrap(wire.ErrBadFormat, "decoded receiver is not an actor reference")
	}
	msg.Receiver = receiverRef.Channel()

	content, err := tupleInfo.Deserialize(d)
	if err != nil {
		return nil, err
	}
	tup, ok := content.(tuple.Any)
	if !ok {
		return nil, errors.Wrap(wire.ErrBadFormat, "decoded content is not a tuple")
	}
	msg.Content = tup

	if err := d.EndObject(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (m *Mailman) drainSends() {
	for {
		select {
		case job := <-m.jobs:
			m.queueSize.Dec()
			if job.Kind == JobSend {
				m.handleSend(job)
			}
		default:
			return
		}
	}
}

func (m *Mailman) report(job Job, reason error) {
	if m.OnDropped != nil {
		m.OnDropped(job, reason)
	}
}
