package mailman

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/veyronis/anytuple/actor"
	"github.com/veyronis/anytuple/typeinfo"
	"github.com/veyronis/anytuple/wire"
)

const (
	deliverMethod  = "/anytuple.Mailman/Deliver"
	deliverTimeout = 5 * time.Second
)

// deliverEnvelope/deliverAck mirror a plain remoteEnvelope/remoteAck
// shape, generalized to carry a wire-codec-encoded any-tuple payload
// instead of a gob-encoded interface{}.
type deliverEnvelope struct {
	Payload []byte
}

type deliverAck struct {
	OK  bool
	Err string
}

// wireGRPCCodec adapts a wire.Codec to gRPC's raw-codec interface
// (Name/Marshal/Unmarshal), the same shape a plain gobCodec would implement,
// so mailman keeps gRPC as its transport without depending on a generated
// protobuf message type.
type wireGRPCCodec struct {
	codec wire.Codec
}

func (wireGRPCCodec) Name() string { return "anytuple-wire" }

// Marshal/Unmarshal only need to round-trip the two small envelope shapes
// mailman's Deliver RPC exchanges; the any-tuple content itself already
// arrived pre-encoded as deliverEnvelope.Payload by c.codec, so this codec
// doesn't need to touch c.codec at all for those two shapes. c.codec is
// kept as a field for symmetry with the Serializer c.codec.NewSerializer()
// callers use to produce that payload in the first place.
func (wireGRPCCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *deliverEnvelope:
		return m.Payload, nil
	case *deliverAck:
		if m.OK {
			return []byte{1}, nil
		}
		return append([]byte{0}, []byte(m.Err)...), nil
	default:
		return nil, errUnsupportedGRPCValue
	}
}

func (wireGRPCCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *deliverEnvelope:
		m.Payload = append([]byte(nil), data...)
		return nil
	case *deliverAck:
		if len(data) > 0 && data[0] == 1 {
			m.OK = true
			return nil
		}
		m.OK = false
		if len(data) > 1 {
			m.Err = string(data[1:])
		}
		return nil
	default:
		return errUnsupportedGRPCValue
	}
}

var errUnsupportedGRPCValue = errUnsupportedGRPCValueError{}

type errUnsupportedGRPCValueError struct{}

func (errUnsupportedGRPCValueError) Error() string { return "mailman: unsupported grpc codec value" }

// Server implements the Deliver RPC (§4.11's transport section), decoding
// the incoming payload and enqueueing it straight onto the decoded
// receiver's Channel, against the generalized actor.Message type. It does
// not hold its own
// *actor.Registry: the receiver lookup happens inside Types' @channel Info,
// which was bound to a Registry when runtime.Environment announced it.
type Server struct {
	Codec wire.Codec

	// Types resolves the @actor/@channel/@tuple type-info deliver needs to
	// decode an incoming payload back into an actor.Message; normally the
	// same registry the local runtime.Environment announced them into.
	Types *typeinfo.Registry

	// Limiter, if set, caps the rate of accepted Deliver calls, protecting
	// the local registry from being flooded by a single noisy peer. Listen
	// installs a default if left nil.
	Limiter *actor.TokenBucket

	lis    net.Listener
	server *grpc.Server
}

// ErrRateLimited is returned to the caller of Deliver when Limiter has no
// tokens available for the request.
var ErrRateLimited = errRateLimitedError{}

type errRateLimitedError struct{}

func (errRateLimitedError) Error() string { return "mailman: deliver rate limited" }

// Listen starts the gRPC server on addr, registering the Deliver method via
// grpc.ServiceDesc directly, since there is no generated *_grpc.pb.go stub
// for a schema this dynamic (an any-tuple's shape is not known until
// runtime).
func (srv *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv.lis = lis
	if srv.Limiter == nil {
		srv.Limiter = actor.NewTokenBucket(10000, 20000)
	}
	srv.server = grpc.NewServer(grpc.ForceServerCodec(wireGRPCCodec{codec: srv.Codec}))
	srv.server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "anytuple.Mailman",
		HandlerType: (*deliverHandler)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Deliver",
				Handler: func(s any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					var in deliverEnvelope
					if err := dec(&in); err != nil {
						return nil, err
					}
					return srv.deliver(ctx, &in)
				},
			},
		},
	}, srv)
	go func() { _ = srv.server.Serve(lis) }()
	return nil
}

// deliverHandler exists only to satisfy grpc.ServiceDesc's HandlerType slot;
// Server itself is registered as the implementation.
type deliverHandler interface{}

func (srv *Server) deliver(_ context.Context, in *deliverEnvelope) (*deliverAck, error) {
	if srv.Limiter != nil && !srv.Limiter.Allow(1) {
		return &deliverAck{OK: false, Err: ErrRateLimited.Error()}, nil
	}
	if srv.Types == nil {
		return &deliverAck{OK: false, Err: ErrNoTypeInfo.Error()}, nil
	}
	msg, err := decodeEnvelope(srv.Types, srv.Codec, in.Payload)
	if err != nil {
		return &deliverAck{OK: false, Err: err.Error()}, nil
	}
	if msg.Receiver == nil {
		return &deliverAck{OK: false, Err: "mailman: decoded message has no receiver"}, nil
	}
	if err := msg.Receiver.Enqueue(msg.Sender, *msg); err != nil {
		return &deliverAck{OK: false, Err: err.Error()}, nil
	}
	return &deliverAck{OK: true}, nil
}

// Addr returns the listener's bound address, or "" if not listening.
func (srv *Server) Addr() string {
	if srv.lis == nil {
		return ""
	}
	return srv.lis.Addr().String()
}

// Close stops the server and listener.
func (srv *Server) Close() {
	if srv.server != nil {
		srv.server.Stop()
	}
	if srv.lis != nil {
		_ = srv.lis.Close()
	}
}
