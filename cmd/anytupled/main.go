// Command anytupled is a thin demo wiring runtime.Environment and mailman
// together: it starts a local actor, subscribes it to a group, and prints
// what it receives. It exists to exercise the wiring, not as a supported
// entry point (spec §1 scopes the socket-reader "post office" and CLI/demo
// programs out of the core).
package main

import (
	"context"
	"log"
	"time"

	"github.com/veyronis/anytuple/actor"
	"github.com/veyronis/anytuple/node"
	"github.com/veyronis/anytuple/runtime"
	"github.com/veyronis/anytuple/tuple"
	"github.com/veyronis/anytuple/variant"
)

func main() {
	env := runtime.New()

	id := env.Registry.NextID()
	a := actor.NewBaseActor(id, node.Local(), actor.BaseActorOptions{
		Registry: env.Registry,
		Receive: func(ctx *actor.Context, content tuple.Any) {
			v, err := content.At(0)
			if err != nil {
				return
			}
			log.Printf("received: %v", v)
		},
	})
	env.Registry.Put(id, a.Self())
	a.Start()

	g, err := env.Groups.Get("local", "demo")
	if err != nil {
		log.Fatal(err)
	}
	sub := g.Subscribe(a.Self())
	defer sub.Close()

	info, err := env.Types.MustResolve("@i32")
	if err != nil {
		log.Fatal(err)
	}
	content := tuple.NewBuilder().Append(info, variant.NewI32(42)).Build()
	if err := g.Enqueue(nil, actor.Message{Receiver: g, Content: content}); err != nil {
		log.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)
	a.Exit(actor.NormalExit)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := env.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
