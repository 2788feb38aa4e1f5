// Package memindex is the in-process index backend. Points are spread
// over lock stripes keyed by an xxhash of the id; a point's coordinates
// and its cell membership live in the same stripe and mutate under one
// lock, so concurrent readers never observe a torn point.
package memindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	h3 "github.com/uber/h3-go/v4"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
	"github.com/Janus-Aurelius/driver-proximity/internal/geocell"
	"github.com/Janus-Aurelius/driver-proximity/internal/index"
)

const numStripes = 64 // power of two, masks the hash

type entry struct {
	pt   model.Point
	cell h3.Cell // zero when no grid is attached
}

type stripe struct {
	mu     sync.RWMutex
	points map[string]entry
	cells  map[h3.Cell]map[string]struct{}
}

type Index struct {
	grid    *geocell.Grid // nil means hierarchical queries fail
	stripes [numStripes]*stripe
}

// New builds an index without a cell index; hierarchical queries
// return model.ErrIndexUnavailable.
func New() *Index {
	return newIndex(nil)
}

// NewWithGrid builds an index that maintains cell membership at the
// grid's resolution on every mutation.
func NewWithGrid(grid *geocell.Grid) *Index {
	return newIndex(grid)
}

func newIndex(grid *geocell.Grid) *Index {
	ix := &Index{grid: grid}
	for i := range ix.stripes {
		ix.stripes[i] = &stripe{
			points: make(map[string]entry),
			cells:  make(map[h3.Cell]map[string]struct{}),
		}
	}
	return ix
}

func (ix *Index) stripeFor(id string) *stripe {
	return ix.stripes[xxhash.Sum64String(id)&(numStripes-1)]
}

func (ix *Index) Upsert(_ context.Context, id string, lon, lat float64) error {
	if id == "" {
		return fmt.Errorf("empty id")
	}
	if err := model.ValidateCoordinate(lon, lat); err != nil {
		return err
	}

	var cell h3.Cell
	if ix.grid != nil {
		c, err := ix.grid.CellFor(lon, lat)
		if err != nil {
			return err
		}
		cell = c
	}

	s := ix.stripeFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.points[id]; ok && ix.grid != nil && old.cell != cell {
		s.dropMembership(old.cell, id)
	}
	s.points[id] = entry{pt: model.Point{ID: id, Longitude: lon, Latitude: lat}, cell: cell}
	if ix.grid != nil {
		members, ok := s.cells[cell]
		if !ok {
			members = make(map[string]struct{})
			s.cells[cell] = members
		}
		members[id] = struct{}{}
	}
	return nil
}

func (ix *Index) Remove(_ context.Context, id string) error {
	s := ix.stripeFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.points[id]
	if !ok {
		return nil
	}
	delete(s.points, id)
	if ix.grid != nil {
		s.dropMembership(old.cell, id)
	}
	return nil
}

// caller holds the stripe lock
func (s *stripe) dropMembership(cell h3.Cell, id string) {
	if members, ok := s.cells[cell]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(s.cells, cell)
		}
	}
}

func (ix *Index) ScanRadius(ctx context.Context, lon, lat, radiusKm float64, limit int) ([]model.Match, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRadius, radiusKm)
	}
	if err := model.ValidateCoordinate(lon, lat); err != nil {
		return nil, err
	}

	var matches []model.Match
	for _, s := range ix.stripes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.RLock()
		for _, e := range s.points {
			d := geocell.HaversineKm(lon, lat, e.pt.Longitude, e.pt.Latitude)
			if d <= radiusKm {
				matches = append(matches, model.Match{ID: e.pt.ID, DistanceKm: d})
			}
		}
		s.mu.RUnlock()
	}
	return index.SortAndTruncate(matches, limit), nil
}

func (ix *Index) Query(ctx context.Context, lon, lat, radiusKm float64, limit int) ([]model.Match, error) {
	if ix.grid == nil {
		return nil, model.ErrIndexUnavailable
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRadius, radiusKm)
	}
	if err := model.ValidateCoordinate(lon, lat); err != nil {
		return nil, err
	}

	cells, err := ix.grid.Neighbors(lon, lat, radiusKm)
	if err != nil {
		return nil, err
	}

	var matches []model.Match
	for _, s := range ix.stripes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.RLock()
		for _, cell := range cells {
			for id := range s.cells[cell] {
				e := s.points[id]
				d := geocell.HaversineKm(lon, lat, e.pt.Longitude, e.pt.Latitude)
				if d <= radiusKm {
					matches = append(matches, model.Match{ID: e.pt.ID, DistanceKm: d})
				}
			}
		}
		s.mu.RUnlock()
	}
	return index.SortAndTruncate(matches, limit), nil
}

// Len reports the number of stored points.
func (ix *Index) Len() int {
	n := 0
	for _, s := range ix.stripes {
		s.mu.RLock()
		n += len(s.points)
		s.mu.RUnlock()
	}
	return n
}
