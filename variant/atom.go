package variant

import "github.com/pkg/errors"

// atomAlphabet is the fixed 6-bit alphabet atoms pack into. The exact
// alphabet is implementation-defined per spec §6 as long as encode/decode
// agree and it round-trips; digits first (common in short identifiers used
// as message tags), then upper, then lower, then underscore: 63 symbols,
// leaving one of the 64 six-bit codes unused.
const atomAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_"

const maxAtomLen = 10

var atomIndex [256]int8

func init() {
	for i := range atomIndex {
		atomIndex[i] = -1
	}
	for i := 0; i < len(atomAlphabet); i++ {
		atomIndex[atomAlphabet[i]] = int8(i)
	}
}

// ErrAtomTooLong is returned when encoding a string longer than 10
// characters into an Atom.
var ErrAtomTooLong = errors.New("atom: value exceeds 10 characters")

// ErrAtomInvalidChar is returned when a string contains a character outside
// the atom alphabet.
var ErrAtomInvalidChar = errors.New("atom: character outside atom alphabet")

// Atom is a short (<=10 printable characters) identifier packed into a
// uint64 via a fixed 6-bit alphabet, per spec §6/GLOSSARY. It is rendered on
// the wire as its string form and used in memory as a cheap, comparable,
// fixed-size key (e.g. control-message tags).
type Atom uint64

// AtomFromString packs s into an Atom. It fails if s is longer than 10
// characters or contains a character outside the atom alphabet.
func AtomFromString(s string) (Atom, error) {
	if len(s) > maxAtomLen {
		return 0, errors.Wrapf(ErrAtomTooLong, "%q", s)
	}
	var a uint64
	for i := 0; i < len(s); i++ {
		idx := atomIndex[s[i]]
		if idx < 0 {
			return 0, errors.Wrapf(ErrAtomInvalidChar, "%q", s)
		}
		a = (a << 6) | uint64(idx)
	}
	// Encode the consumed length in the low bits so that trailing
	// alphabet-zero characters ('0') are distinguishable from padding.
	a = (a << 4) | uint64(len(s))
	return Atom(a), nil
}

// String unpacks the Atom back to its textual form.
func (a Atom) String() string {
	n := int(a & 0xF)
	if n == 0 {
		return ""
	}
	v := uint64(a) >> 4
	buf := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		buf[i] = atomAlphabet[v&0x3F]
		v >>= 6
	}
	return string(buf)
}

// Uint64 returns the packed representation, for use as a map key or a wire
// integer payload.
func (a Atom) Uint64() uint64 { return uint64(a) }

// AtomFromUint64 reconstructs an Atom from its packed representation.
func AtomFromUint64(v uint64) Atom { return Atom(v) }
