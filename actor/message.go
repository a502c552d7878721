package actor

import "github.com/veyronis/anytuple/tuple"

// Message is the addressed message of spec module K: a triple of
// (sender, receiver, content). Sender is nilable for system-injected
// messages (§3).
type Message struct {
	Sender   *Ref
	Receiver Channel
	Content  tuple.Any
}

// Equal implements §4.10's component-wise equality: content compares by
// its type-info-driven value equality (so two physically distinct messages
// carrying the same content compare equal), sender/receiver compare by
// reference identity.
func (m Message) Equal(other Message) bool {
	if !sameRef(m.Sender, other.Sender) {
		return false
	}
	if m.Receiver != other.Receiver {
		return false
	}
	if m.Content == nil || other.Content == nil {
		return m.Content == other.Content
	}
	return m.Content.Equal(other.Content)
}

func sameRef(a, b *Ref) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Same(b)
}
