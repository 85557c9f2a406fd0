package light

import (
	"errors"
	"testing"

	"voxelmesh.ai/internal/sim/chunk"
)

const (
	stone uint8 = 1
	glass uint8 = 9
	torch uint8 = 10
)

var (
	testTransparent = NewBlockSet([]uint16{uint16(chunk.Air), uint16(chunk.Water), uint16(glass), uint16(torch), uint16(chunk.Ice)})
	testSources     = NewBlockSet([]uint16{uint16(torch)})
)

func fill(blocks []uint16, b uint8) {
	for i := range blocks {
		blocks[i] = uint16(b)
	}
}

// roofed returns an air chunk with a solid stone layer at y=roofY.
func roofed(roofY int) []uint16 {
	blocks := make([]uint16, chunk.Volume)
	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Width; z++ {
			blocks[chunk.Index(x, roofY, z)] = uint16(stone)
		}
	}
	return blocks
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestCalculate_OpenSkyIsSkyLight(t *testing.T) {
	blocks := make([]uint16, chunk.Volume)
	lm := make([]uint8, chunk.Volume)
	if err := Calculate(lm, blocks, [4][]uint16{}, testTransparent, testSources); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for i, v := range lm {
		if v != SkyLight {
			x, y, z := chunk.Coords(i)
			t.Fatalf("light at (%d,%d,%d)=%d want %d", x, y, z, v, SkyLight)
		}
	}
}

func TestSeed_OpaqueBelowOpenSkyIsFullyLit(t *testing.T) {
	blocks := make([]uint16, chunk.Volume)
	blocks[chunk.Index(3, 10, 3)] = uint16(stone)

	var p Propagator
	p.seed(blocks, &[4][]uint16{}, testTransparent, testSources)

	var found bool
	for p.q.len() > 0 {
		e, _ := p.q.pop()
		if e.x == 3 && e.y == 10 && e.z == 3 {
			if e.light != SourceLight {
				t.Fatalf("surface seed light=%d want %d", e.light, SourceLight)
			}
			found = true
		}
		if e.x == 3 && e.z == 3 && e.y < 10 {
			t.Fatalf("column below the surface was sky-seeded at y=%d", e.y)
		}
	}
	if !found {
		t.Fatalf("surface voxel was not seeded")
	}

	lm := make([]uint8, chunk.Volume)
	if err := Calculate(lm, blocks, [4][]uint16{}, testTransparent, testSources); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got := lm[chunk.Index(3, 10, 3)]; got != 0 {
		t.Fatalf("opaque voxel light=%d want 0", got)
	}
	if got := lm[chunk.Index(3, 11, 3)]; got != SkyLight {
		t.Fatalf("voxel above surface light=%d want %d", got, SkyLight)
	}
	// Below the stone the column is shadowed but lit sideways by its open neighbours.
	if got := lm[chunk.Index(3, 9, 3)]; got != SkyLight-1 {
		t.Fatalf("voxel below surface light=%d want %d", got, SkyLight-1)
	}
}

func TestCalculate_SolidChunkIsDark(t *testing.T) {
	blocks := make([]uint16, chunk.Volume)
	fill(blocks, stone)
	var neighbors [4][]uint16
	for i := range neighbors {
		neighbors[i] = make([]uint16, chunk.Volume)
	}
	lm := make([]uint8, chunk.Volume)
	if err := Calculate(lm, blocks, neighbors, testTransparent, testSources); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for i, v := range lm {
		if v != 0 {
			t.Fatalf("light[%d]=%d want 0", i, v)
		}
	}
}

func TestCalculate_TorchDecaysByDistance(t *testing.T) {
	blocks := roofed(200)
	src := chunk.Index(8, 50, 8)
	blocks[src] = uint16(torch)

	lm := make([]uint8, chunk.Volume)
	if err := Calculate(lm, blocks, [4][]uint16{}, testTransparent, testSources); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for y := 0; y < 200; y++ {
		for z := 0; z < chunk.Width; z++ {
			for x := 0; x < chunk.Width; x++ {
				d := abs(x-8) + abs(y-50) + abs(z-8)
				want := SourceLight - d
				if want < 0 {
					want = 0
				}
				if got := int(lm[chunk.Index(x, y, z)]); got != want {
					t.Fatalf("light at (%d,%d,%d)=%d want %d", x, y, z, got, want)
				}
			}
		}
	}
	if got := lm[chunk.Index(0, 201, 0)]; got != SkyLight {
		t.Fatalf("above roof light=%d want %d", got, SkyLight)
	}
}

func TestCalculate_BleedsFromNeighbour(t *testing.T) {
	blocks := roofed(200)
	nx := make([]uint16, chunk.Volume)
	for y := 0; y < 200; y++ {
		for a := 0; a < chunk.Width; a++ {
			nx[chunk.MirrorIndex(chunk.SideNegX, a, y)] = 15
		}
	}
	lm := make([]uint8, chunk.Volume)
	if err := Calculate(lm, blocks, [4][]uint16{nx, nil, nil, nil}, testTransparent, testSources); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for x := 0; x < chunk.Width; x++ {
		want := 14 - x
		if want < 0 {
			want = 0
		}
		if got := int(lm[chunk.Index(x, 100, 5)]); got != want {
			t.Fatalf("light at x=%d: %d want %d", x, got, want)
		}
	}
}

func TestCalculate_CornerBleedsFromXSideOnly(t *testing.T) {
	blocks := roofed(chunk.Height - 1)
	nz := make([]uint16, chunk.Volume)
	for y := 0; y < chunk.Height-1; y++ {
		for a := 0; a < chunk.Width; a++ {
			nz[chunk.MirrorIndex(chunk.SideNegZ, a, y)] = 10
		}
	}
	for _, nx := range [][]uint16{make([]uint16, chunk.Volume), nil} {
		lm := make([]uint8, chunk.Volume)
		if err := Calculate(lm, blocks, [4][]uint16{nx, nil, nz, nil}, testTransparent, testSources); err != nil {
			t.Fatalf("Calculate: %v", err)
		}
		if got := lm[chunk.Index(1, 100, 0)]; got != 9 {
			t.Fatalf("-Z edge light=%d want 9", got)
		}
		// The corner reads its -X neighbour (dark) and gets -Z light one step later.
		if got := lm[chunk.Index(0, 100, 0)]; got != 8 {
			t.Fatalf("corner light=%d want 8 (nx nil=%v)", got, nx == nil)
		}
	}
}

func TestCalculate_ClampsNeighbourLight(t *testing.T) {
	blocks := roofed(200)
	pz := make([]uint16, chunk.Volume)
	pz[chunk.MirrorIndex(chunk.SidePosZ, 4, 30)] = 900
	lm := make([]uint8, chunk.Volume)
	if err := Calculate(lm, blocks, [4][]uint16{nil, nil, nil, pz}, testTransparent, testSources); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	for i, v := range lm {
		if v > chunk.MaxLight {
			t.Fatalf("light[%d]=%d out of range", i, v)
		}
	}
	if got := lm[chunk.Index(4, 30, 15)]; got != chunk.MaxLight-1 {
		t.Fatalf("edge light=%d want %d", got, chunk.MaxLight-1)
	}
}

func TestCalculate_IdempotentAndMonotonic(t *testing.T) {
	blocks := make([]uint16, chunk.Volume)
	for i := range blocks {
		x, y, z := chunk.Coords(i)
		switch {
		case y < 60+(x*z)%7:
			blocks[i] = uint16(stone)
		case y == 70 && (x+z)%3 == 0:
			blocks[i] = uint16(glass)
		case y == 40 && x == 7 && z == 7:
			blocks[i] = uint16(torch)
		}
	}
	// Carve a cave with a torch so block light has somewhere to go.
	for x := 2; x < 12; x++ {
		for y := 30; y < 45; y++ {
			blocks[chunk.Index(x, y, 7)] = uint16(chunk.Air)
		}
	}
	blocks[chunk.Index(7, 40, 7)] = uint16(torch)

	first := make([]uint8, chunk.Volume)
	var p Propagator
	p.onWrite = func(i int, old, cur uint8) {
		if cur <= old {
			t.Fatalf("write at %d lowered light %d -> %d", i, old, cur)
		}
	}
	if err := p.Run(first, blocks, [4][]uint16{}, testTransparent, testSources); err != nil {
		t.Fatalf("Run: %v", err)
	}

	second := make([]uint8, chunk.Volume)
	if err := p.Run(second, blocks, [4][]uint16{}, testTransparent, testSources); err != nil {
		t.Fatalf("Run: %v", err)
	}
	again := append([]uint8(nil), first...)
	if err := p.Run(again, blocks, [4][]uint16{}, testTransparent, testSources); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := range first {
		if first[i] != second[i] || first[i] != again[i] {
			t.Fatalf("non-deterministic light at %d: %d %d %d", i, first[i], second[i], again[i])
		}
		if first[i] > chunk.MaxLight {
			t.Fatalf("light[%d]=%d out of range", i, first[i])
		}
	}
	if got := first[chunk.Index(7, 40, 7)]; got != SourceLight {
		t.Fatalf("torch light=%d want %d", got, SourceLight)
	}
}

func TestCalculate_RejectsBadShapes(t *testing.T) {
	lm := make([]uint8, chunk.Volume)
	for i := range lm {
		lm[i] = 3
	}
	cases := []struct {
		name      string
		lm        []uint8
		blocks    []uint16
		neighbors [4][]uint16
	}{
		{"short blocks", lm, make([]uint16, chunk.Volume-1), [4][]uint16{}},
		{"short light", lm[:100], make([]uint16, chunk.Volume), [4][]uint16{}},
		{"short neighbour", lm, make([]uint16, chunk.Volume), [4][]uint16{nil, make([]uint16, 10), nil, nil}},
	}
	for _, tc := range cases {
		err := Calculate(tc.lm, tc.blocks, tc.neighbors, testTransparent, testSources)
		if !errors.Is(err, ErrShape) {
			t.Fatalf("%s: err=%v want ErrShape", tc.name, err)
		}
	}
	for i, v := range lm {
		if v != 3 {
			t.Fatalf("light map mutated at %d", i)
		}
	}
}

func TestBlockSet(t *testing.T) {
	s := NewBlockSet([]uint16{0, 9, 300})
	if !s.Has(0) || !s.Has(9) || s.Has(1) {
		t.Fatalf("unexpected membership")
	}
	if ids := s.IDs(); len(ids) != 2 {
		t.Fatalf("ids=%v", ids)
	}
	var nilSet *BlockSet
	if nilSet.Has(0) {
		t.Fatalf("nil set reported membership")
	}
}

func TestRingGrowsAndKeepsOrder(t *testing.T) {
	var r ring
	for i := 0; i < 10000; i++ {
		r.push(entry{x: int16(i)})
		if i%3 == 0 {
			r.pop()
		}
	}
	prev := int16(-1)
	for r.len() > 0 {
		e, _ := r.pop()
		if e.x <= prev {
			t.Fatalf("order broken: %d after %d", e.x, prev)
		}
		prev = e.x
	}
}
