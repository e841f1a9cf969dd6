package layout

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func letterGrid() Grid {
	return Grid{
		PageWidth:   612,
		PageHeight:  792,
		StringWidth: 180,
		LineHeight:  30,
		Angle:       45,
		GapX:        30,
		GapY:        120,
	}
}

func TestTileDeterministic(t *testing.T) {
	g := letterGrid()
	a := g.Tile()
	b := g.Tile()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("tiling not deterministic:\n%s", diff)
	}
	if len(a) == 0 {
		t.Fatal("no placements for a letter page")
	}
}

func TestTileDegenerateMetrics(t *testing.T) {
	g := letterGrid()
	g.StringWidth = 0
	if got := g.Tile(); got != nil {
		t.Errorf("zero string width should yield nil, got %d placements", len(got))
	}
	g = letterGrid()
	g.LineHeight = -5
	if got := g.Tile(); got != nil {
		t.Errorf("negative line height should yield nil, got %d placements", len(got))
	}
	g = letterGrid()
	g.PageWidth = 0
	if got := g.Tile(); got != nil {
		t.Errorf("zero page width should yield nil, got %d placements", len(got))
	}
}

func TestTileAngleCarried(t *testing.T) {
	g := letterGrid()
	g.Angle = 60
	for _, p := range g.Tile() {
		if p.Degrees != 60 {
			t.Fatalf("placement angle = %v, want 60", p.Degrees)
		}
	}
}

// Every page corner must have a placement within one grid cell of it
// in the rotated frame, so rotation never leaves a corner uncovered.
func TestTileCoversCorners(t *testing.T) {
	g := letterGrid()
	placements := g.Tile()

	stepX := g.StringWidth + g.GapX
	stepY := g.LineHeight + g.GapY
	rad := g.Angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	corners := [][2]float64{{0, 0}, {612, 0}, {0, 792}, {612, 792}}
	for _, c := range corners {
		// corner in the rotated frame
		cu := cos*c[0] + sin*c[1]
		cv := -sin*c[0] + cos*c[1]
		covered := false
		for _, p := range placements {
			pu := cos*p.X + sin*p.Y
			pv := -sin*p.X + cos*p.Y
			if pu <= cu && cu <= pu+stepX && pv <= cv && cv <= pv+stepY {
				covered = true
				break
			}
		}
		if !covered {
			t.Errorf("corner %v not covered by any grid cell", c)
		}
	}
}

func TestTileNegativeGapsClamped(t *testing.T) {
	g := letterGrid()
	g.GapX = -100
	g.GapY = -100
	placements := g.Tile()
	if len(placements) == 0 {
		t.Fatal("no placements")
	}
	// Clamped gaps mean the stride is the instance size itself, never
	// smaller, so tiles cannot overlap into an unbounded count.
	maxCells := int(math.Ceil(2000/g.StringWidth)+2) * int(math.Ceil(2000/g.LineHeight)+2)
	if len(placements) > maxCells {
		t.Errorf("placement count %d exceeds sane bound %d", len(placements), maxCells)
	}
}

func TestTileZeroAngle(t *testing.T) {
	g := letterGrid()
	g.Angle = 0
	placements := g.Tile()
	if len(placements) == 0 {
		t.Fatal("no placements")
	}
	for _, p := range placements {
		if p.Degrees != 0 {
			t.Fatalf("angle leaked into placements: %v", p.Degrees)
		}
	}
	// Unrotated grid rows share Y values.
	seen := map[float64]bool{}
	for _, p := range placements {
		seen[p.Y] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected multiple rows, got %d distinct Y values", len(seen))
	}
}
