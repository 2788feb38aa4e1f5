// Package geocell maps points to hexagonal grid cells and sizes the
// neighbor disks used to bound radius queries.
package geocell

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	h3 "github.com/uber/h3-go/v4"
)

// EarthRadiusKm is the mean Earth radius shared by every distance
// computation in the index. Both strategies and both backends must
// filter with the same constant or their result sets diverge.
const EarthRadiusKm = 6371.0

// avgEdgeKm is the average hexagon edge length per H3 resolution.
var avgEdgeKm = [16]float64{
	1107.712591, 418.6760055, 158.2446558, 59.81085794,
	22.6063794, 8.544408276, 3.229482772, 1.220629759,
	0.461354684, 0.174375668, 0.065907807, 0.024910561,
	0.009415526, 0.003559893, 0.001348575, 0.000509713,
}

type diskKey struct {
	home h3.Cell
	k    int
}

// Grid computes cells at a fixed resolution. Disk lookups are memoized;
// the grid is safe for concurrent use.
type Grid struct {
	res   int
	disks *lru.Cache[diskKey, []h3.Cell]
}

func NewGrid(res int) (*Grid, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	disks, _ := lru.New[diskKey, []h3.Cell](4096)
	return &Grid{res: res, disks: disks}, nil
}

func (g *Grid) Resolution() int { return g.res }

// CellFor maps a position to its home cell. Pure: identical inputs
// always return the same cell.
func (g *Grid) CellFor(lon, lat float64) (h3.Cell, error) {
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, g.res)
	if err != nil {
		return 0, fmt.Errorf("h3 cell for %.6f,%.6f: %w", lon, lat, err)
	}
	return cell, nil
}

// Neighbors returns the home cell of the center plus enough rings of
// adjacent cells that every point within radiusKm is guaranteed to be
// a member of one of them. The disk over-approximates; the caller
// filters by exact distance.
func (g *Grid) Neighbors(lon, lat, radiusKm float64) ([]h3.Cell, error) {
	home, err := g.CellFor(lon, lat)
	if err != nil {
		return nil, err
	}
	k := g.RingsForRadius(radiusKm)

	key := diskKey{home: home, k: k}
	if cached, ok := g.disks.Get(key); ok {
		return cached, nil
	}

	cells, err := h3.GridDisk(home, k)
	if err != nil {
		return nil, fmt.Errorf("h3 grid disk k=%d: %w", k, err)
	}
	g.disks.Add(key, cells)
	return cells, nil
}

// RingsForRadius converts a radius to a ring count. 1.5*edge
// understates the across-flats width of a hexagon and one extra ring
// absorbs projection distortion, so the disk is always a superset of
// the true radius result.
func (g *Grid) RingsForRadius(radiusKm float64) int {
	if radiusKm <= 0 {
		return 1
	}
	edge := avgEdgeKm[g.res]
	k := 1
	for float64(k)*edge*1.5 < radiusKm {
		k++
	}
	return k + 1
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
