// Package engine orchestrates proximity searches over a point store
// and an optional cell index, and owns the location update path.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/observability"
	"github.com/Janus-Aurelius/driver-proximity/internal/index"
	"github.com/Janus-Aurelius/driver-proximity/internal/overlay"
)

// DefaultCeiling bounds the candidate fetch before overlay filtering.
// Large enough that real drivers are not crowded out of the candidate
// set by synthetic load before the fill policy runs.
const DefaultCeiling = 1000

type Query struct {
	Longitude     float64
	Latitude      float64
	RadiusKm      float64
	Count         int
	Strategy      model.Strategy
	PreferPrimary bool
}

// Engine is read-only over its stores; it never mutates them.
type Engine struct {
	store      index.PointStore
	cells      index.CellIndex // nil when no cell index is built
	classifier overlay.Classifier
	ceiling    int
}

func New(store index.PointStore, cells index.CellIndex, classifier overlay.Classifier, ceiling int) *Engine {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Engine{store: store, cells: cells, classifier: classifier, ceiling: ceiling}
}

// Search answers "which entities are near this point". Candidates are
// fetched up to the configured ceiling so the overlay fill policy has
// enough primary entries to choose from, then capped at q.Count.
func (e *Engine) Search(ctx context.Context, q Query) ([]model.Match, error) {
	if q.Count <= 0 {
		return nil, nil
	}
	if q.RadiusKm <= 0 {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRadius, q.RadiusKm)
	}
	if err := model.ValidateCoordinate(q.Longitude, q.Latitude); err != nil {
		return nil, err
	}

	start := time.Now()
	candidates, err := e.fetch(ctx, q)
	if err != nil {
		observability.ObserveSearch(string(q.Strategy), "error", 0, time.Since(start).Seconds())
		return nil, err
	}

	out := e.classifier.PartitionAndFill(candidates, q.Count, q.PreferPrimary)
	observability.ObserveSearch(string(q.Strategy), "ok", len(out), time.Since(start).Seconds())
	return out, nil
}

func (e *Engine) fetch(ctx context.Context, q Query) ([]model.Match, error) {
	switch q.Strategy {
	case model.FlatScan, "":
		return e.store.ScanRadius(ctx, q.Longitude, q.Latitude, q.RadiusKm, e.ceiling)
	case model.Hierarchical:
		if e.cells == nil {
			return nil, model.ErrIndexUnavailable
		}
		return e.cells.Query(ctx, q.Longitude, q.Latitude, q.RadiusKm, e.ceiling)
	default:
		return nil, fmt.Errorf("unknown strategy %q", q.Strategy)
	}
}
