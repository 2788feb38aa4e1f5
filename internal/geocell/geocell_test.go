package geocell

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	cases := []struct {
		name                   string
		lon1, lat1, lon2, lat2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{"same point", 106.700, 10.770, 106.700, 10.770, 0, 1e-9},
		{"hcmc to hanoi", 106.6297, 10.8231, 105.8342, 21.0278, 1137, 10},
		{"one degree lat at equator", 0, 0, 0, 1, 111.19, 0.1},
		{"antimeridian", 179.9, 0, -179.9, 0, 22.24, 0.1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HaversineKm(tc.lon1, tc.lat1, tc.lon2, tc.lat2)
			if math.Abs(got-tc.wantKm) > tc.tolKm {
				t.Fatalf("distance=%v want %v (+/- %v)", got, tc.wantKm, tc.tolKm)
			}
		})
	}
}

func TestNewGrid_RejectsBadResolution(t *testing.T) {
	for _, res := range []int{-1, 16, 100} {
		if _, err := NewGrid(res); err == nil {
			t.Fatalf("NewGrid(%d): expected error", res)
		}
	}
}

func TestCellFor_Deterministic(t *testing.T) {
	g, err := NewGrid(7)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	a, err := g.CellFor(106.700, 10.770)
	if err != nil {
		t.Fatalf("CellFor: %v", err)
	}
	b, err := g.CellFor(106.700, 10.770)
	if err != nil {
		t.Fatalf("CellFor: %v", err)
	}
	if a != b {
		t.Fatalf("same input mapped to different cells: %v vs %v", a, b)
	}
}

func TestRingsForRadius_Monotonic(t *testing.T) {
	g, err := NewGrid(7)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	prev := 0
	for _, r := range []float64{0.5, 1, 2, 5, 10, 20} {
		k := g.RingsForRadius(r)
		if k < 1 {
			t.Fatalf("RingsForRadius(%v)=%d want >=1", r, k)
		}
		if k < prev {
			t.Fatalf("RingsForRadius not monotonic at %v: %d < %d", r, k, prev)
		}
		prev = k
	}
}

// Every point inside the radius must land in one of the neighbor
// cells; under-approximation would drop true results.
func TestNeighbors_SupersetOfRadius(t *testing.T) {
	g, err := NewGrid(7)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}

	const (
		centerLon = 106.700
		centerLat = 10.770
		radiusKm  = 5.0
	)

	cells, err := g.Neighbors(centerLon, centerLat, radiusKm)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(cells) == 0 {
		t.Fatal("empty neighbor set")
	}
	inDisk := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		inDisk[c.String()] = struct{}{}
	}

	// Probe positions spread inside the radius, including ones close
	// to the boundary.
	offsets := []struct{ dLon, dLat float64 }{
		{0, 0}, {0.01, 0.01}, {-0.02, 0.015}, {0.04, 0}, {0, -0.04},
		{-0.03, -0.03}, {0.02, -0.035}, {-0.04, 0.01},
	}
	for _, off := range offsets {
		lon := centerLon + off.dLon
		lat := centerLat + off.dLat
		if HaversineKm(centerLon, centerLat, lon, lat) > radiusKm {
			continue
		}
		cell, err := g.CellFor(lon, lat)
		if err != nil {
			t.Fatalf("CellFor(%v,%v): %v", lon, lat, err)
		}
		if _, ok := inDisk[cell.String()]; !ok {
			t.Fatalf("point %.4f,%.4f inside radius but its cell %s is not in the disk", lon, lat, cell)
		}
	}
}

func TestNeighbors_MemoReturnsSameSet(t *testing.T) {
	g, err := NewGrid(8)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	first, err := g.Neighbors(106.700, 10.770, 3)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	second, err := g.Neighbors(106.700, 10.770, 3)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("memoized disk differs: %d vs %d cells", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("memoized disk differs at %d: %v vs %v", i, first[i], second[i])
		}
	}
}
