// Package node implements process information (spec module I): a process's
// identity as (pid, 20-byte node id), computed once lazily and compared
// lexicographically. It follows the package-level sync.Once-guarded lazy
// singleton idiom used elsewhere in this kernel, applied here to host
// fingerprinting instead of actor bootstrap.
package node

import (
	"encoding/hex"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // ripemd160 is required by spec, not a security use.
)

// Info is a process's identity: its OS pid paired with a 20-byte hash of
// stable host fingerprints.
type Info struct {
	PID    uint32
	NodeID [20]byte
}

var (
	localOnce sync.Once
	local     Info
)

// Local returns this process's Info, computing the node id on first call
// and caching it for the remainder of the process lifetime.
func Local() Info {
	localOnce.Do(func() {
		local = Info{
			PID:    uint32(os.Getpid()),
			NodeID: hashFingerprint(fingerprint()),
		}
	})
	return local
}

// fingerprint gathers best-effort, stable host identifiers: the machine id
// file used by most Linux distributions, falling back to the first
// non-loopback interface's hardware address, per §4.8.
func fingerprint() string {
	if b, err := os.ReadFile("/etc/machine-id"); err == nil {
		s := string(b)
		if len(s) > 0 {
			return s
		}
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return "unknown-host"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	// No machine-id file and no non-loopback interface: fall back to a
	// random id, stable only for this process's lifetime. Distinct
	// processes on a NIC-less host (containers without a MAC, CI
	// sandboxes) still get distinct node ids instead of colliding on
	// "unknown-host".
	return uuid.NewString()
}

func hashFingerprint(s string) [20]byte {
	h := ripemd160.New()
	_, _ = h.Write([]byte(s))
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Compare orders two Info values lexicographically by NodeID then PID, per
// §3.
func (i Info) Compare(other Info) int {
	for k := 0; k < len(i.NodeID); k++ {
		if i.NodeID[k] != other.NodeID[k] {
			if i.NodeID[k] < other.NodeID[k] {
				return -1
			}
			return 1
		}
	}
	switch {
	case i.PID < other.PID:
		return -1
	case i.PID > other.PID:
		return 1
	default:
		return 0
	}
}

// NodeHex renders the node id as 40 lowercase hex characters, per §6.
func (i Info) NodeHex() string { return hex.EncodeToString(i.NodeID[:]) }

// FromHex rebuilds an Info from a pid and the 40-character hex rendering of
// its node id, the inverse of NodeHex, used when a reference crosses the
// wire and its addressed node has to be reconstructed on the receiving end.
func FromHex(pid uint32, nodeHex string) (Info, error) {
	raw, err := hex.DecodeString(nodeHex)
	if err != nil || len(raw) != 20 {
		return Info{}, errors.New("node: malformed node id hex")
	}
	var out Info
	out.PID = pid
	copy(out.NodeID[:], raw)
	return out, nil
}

// String renders as "pid@node-hex", per §6.
func (i Info) String() string { return itoa(i.PID) + "@" + i.NodeHex() }

// EqualHex reports whether i's node id matches the given hex string.
func (i Info) EqualHex(h string) bool { return i.NodeHex() == h }

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[pos:])
}
