package chunk

import "testing"

func TestIndexCoordsRoundTrip(t *testing.T) {
	for _, c := range [][3]int{{0, 0, 0}, {15, 255, 15}, {3, 17, 9}, {15, 0, 0}, {0, 255, 15}} {
		i := Index(c[0], c[1], c[2])
		x, y, z := Coords(i)
		if x != c[0] || y != c[1] || z != c[2] {
			t.Fatalf("Coords(Index(%v))=(%d,%d,%d)", c, x, y, z)
		}
	}
	if Index(15, 255, 15) != Volume-1 {
		t.Fatalf("last index=%d want %d", Index(15, 255, 15), Volume-1)
	}
}

func TestInBounds(t *testing.T) {
	for _, c := range [][3]int{{0, 0, 0}, {15, 255, 15}, {7, 128, 0}} {
		if !InBounds(c[0], c[1], c[2]) {
			t.Fatalf("InBounds(%v)=false", c)
		}
	}
	for _, c := range [][3]int{{-1, 0, 0}, {16, 0, 0}, {0, -1, 0}, {0, 256, 0}, {0, 0, -1}, {0, 0, 16}} {
		if InBounds(c[0], c[1], c[2]) {
			t.Fatalf("InBounds(%v)=true", c)
		}
	}
}

func TestCellPacking(t *testing.T) {
	c := MakeCell(Ice, 200)
	if c.Block() != Ice || c.Biome() != 200 {
		t.Fatalf("cell=%#x block=%d biome=%d", uint16(c), c.Block(), c.Biome())
	}
}

func TestFaceOffsetsMatchOrder(t *testing.T) {
	want := [NumFaces][3]int{{0, 1, 0}, {0, -1, 0}, {-1, 0, 0}, {1, 0, 0}, {0, 0, 1}, {0, 0, -1}}
	for i, f := range Faces {
		if int(f) != i {
			t.Fatalf("Faces[%d]=%d", i, f)
		}
		dx, dy, dz := f.Offset()
		if [3]int{dx, dy, dz} != want[i] {
			t.Fatalf("face %s offset=(%d,%d,%d) want %v", f, dx, dy, dz, want[i])
		}
	}
	if AllFaces != 0b111111 {
		t.Fatalf("AllFaces=%b", AllFaces)
	}
}

func TestMirrorIndexTouchesEdge(t *testing.T) {
	cases := []struct {
		side    Side
		x, z    int
		wantX   int
		wantZ   int
		ownEdge [2]int
	}{
		{SideNegX, -1, 7, 15, 7, [2]int{0, 7}},
		{SidePosX, 16, 7, 0, 7, [2]int{15, 7}},
		{SideNegZ, 7, -1, 7, 15, [2]int{7, 0}},
		{SidePosZ, 7, 16, 7, 0, [2]int{7, 15}},
	}
	for _, tc := range cases {
		s, a, ok := SideOf(tc.x, tc.z)
		if !ok || s != tc.side {
			t.Fatalf("SideOf(%d,%d)=%v,%v want %v", tc.x, tc.z, s, ok, tc.side)
		}
		if got, want := MirrorIndex(s, a, 40), Index(tc.wantX, 40, tc.wantZ); got != want {
			t.Fatalf("MirrorIndex(%s)=%d want %d", s, got, want)
		}
		if got, want := EdgeIndex(s, a, 40), Index(tc.ownEdge[0], 40, tc.ownEdge[1]); got != want {
			t.Fatalf("EdgeIndex(%s)=%d want %d", s, got, want)
		}
	}
	if _, _, ok := SideOf(3, 4); ok {
		t.Fatalf("in-chunk coordinate reported a side")
	}
}

func TestSplitNeighbors(t *testing.T) {
	flat := make([]uint16, 4*8)
	for i := range flat {
		flat[i] = uint16(i / 8)
	}
	parts, ok := SplitNeighbors(flat, 8)
	if !ok {
		t.Fatalf("split failed")
	}
	for s, p := range parts {
		if len(p) != 8 || p[0] != uint16(s) {
			t.Fatalf("side %d: len=%d first=%d", s, len(p), p[0])
		}
	}
	if _, ok := SplitNeighbors(flat[:31], 8); ok {
		t.Fatalf("expected split to reject short buffer")
	}
}
