package actor

import "github.com/veyronis/anytuple/node"

// ID is a process-local, monotonically assigned actor identifier (§3,
// §4.6). Ids are never reused within a process's lifetime.
type ID uint32

// Actor is the richer interface a Ref can be checked-downcast to (via
// Ref.AsActor): identity, locality, attachments, and links, per §4.5's
// "Actor" operations. Both BaseActor (local) and proxy.ActorProxy (remote
// surrogate) implement it.
type Actor interface {
	Channel

	ID() ID
	NodeInfo() node.Info
	// IsProxy distinguishes a local actor from a remote surrogate, per
	// §3's "flag distinguishing local actors from remote proxies".
	IsProxy() bool

	// Attach installs a, returning false if the actor has already exited
	// (in which case a's Detach fires immediately with the recorded exit
	// reason), per §4.5.
	Attach(a Attachable) bool
	// Detach removes the first attachment whose Matches(tok) is true.
	Detach(tok Token)

	LinkTo(other *Ref) error
	UnlinkFrom(other *Ref) error

	// EstablishBacklink is the other side of LinkTo/UnlinkFrom: it is
	// invoked on the peer of a link/unlink call so both sides end up with
	// symmetric bookkeeping without either side reaching into the other's
	// private state (§4.5: "link_to on other triggers
	// establish_backlink(self) on the other"). Exported so proxy.ActorProxy
	// (a different package) can implement Actor.
	EstablishBacklink(self *Ref)
	RemoveBacklink(self *Ref)
}
