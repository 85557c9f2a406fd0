package light

import (
	"testing"

	"voxelmesh.ai/internal/sim/chunk"
)

func TestEdgeChanges(t *testing.T) {
	prev := make([]uint8, chunk.Volume)
	next := append([]uint8(nil), prev...)

	if got := EdgeChanges(prev, next); got != [4]bool{} {
		t.Fatalf("identical maps reported changes: %v", got)
	}

	next[chunk.Index(7, 100, 7)] = 9 // interior, not on any edge
	if got := EdgeChanges(prev, next); got != [4]bool{} {
		t.Fatalf("interior change reported edges: %v", got)
	}

	next[chunk.Index(15, 3, 9)] = 4
	next[chunk.Index(2, 255, 0)] = 1
	got := EdgeChanges(prev, next)
	want := [4]bool{false, true, true, false}
	if got != want {
		t.Fatalf("EdgeChanges=%v want %v", got, want)
	}

	if got := EdgeChanges(nil, next); got != [4]bool{true, true, true, true} {
		t.Fatalf("nil prev: %v", got)
	}
}

func TestStripSamplesTouchingLayer(t *testing.T) {
	n := make([]uint8, chunk.Volume)
	n[chunk.Index(15, 20, 6)] = 11 // -X neighbour's x=15 column
	n[chunk.Index(0, 20, 6)] = 2

	s := Strip(chunk.SideNegX, n)
	if len(s) != chunk.StripSize {
		t.Fatalf("strip len=%d", len(s))
	}
	if got := s[chunk.StripIndex(6, 20)]; got != 11 {
		t.Fatalf("strip value=%d want 11", got)
	}

	s = Strip(chunk.SidePosX, n)
	if got := s[chunk.StripIndex(6, 20)]; got != 2 {
		t.Fatalf("+X strip value=%d want 2", got)
	}

	if s := Strip(chunk.SideNegZ, nil); s[0] != 0 || len(s) != chunk.StripSize {
		t.Fatalf("nil neighbour strip not zeroed")
	}
}
