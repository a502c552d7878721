package node

import "testing"

func TestLocalIsStableAcrossCalls(t *testing.T) {
	a := Local()
	b := Local()
	if a != b {
		t.Fatal("expected Local() to be stable across calls within a process")
	}
}

func TestCompareOrdersByNodeIDThenPID(t *testing.T) {
	low := Info{PID: 5, NodeID: [20]byte{0x01}}
	high := Info{PID: 1, NodeID: [20]byte{0x02}}
	if low.Compare(high) >= 0 {
		t.Fatal("expected lower NodeID to sort first regardless of PID")
	}
	same := Info{PID: 1, NodeID: [20]byte{0x01}}
	other := Info{PID: 2, NodeID: [20]byte{0x01}}
	if same.Compare(other) >= 0 {
		t.Fatal("expected equal NodeID to fall back to PID comparison")
	}
	if same.Compare(same) != 0 {
		t.Fatal("expected identical Info to compare equal")
	}
}

func TestStringAndEqualHex(t *testing.T) {
	i := Info{PID: 42, NodeID: [20]byte{0xde, 0xad, 0xbe, 0xef}}
	want := "42@deadbeef00000000000000000000000000000000"
	if got := i.String(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if !i.EqualHex("deadbeef00000000000000000000000000000000") {
		t.Fatal("expected EqualHex to match the rendered hex")
	}
	if i.EqualHex("00") {
		t.Fatal("expected EqualHex to reject a mismatched hex string")
	}
}
