// Package index defines the storage contracts the search engine and
// the location gateway operate on.
package index

import (
	"context"
	"sort"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
)

// PointStore is a keyed mapping from entity id to position. Upsert
// replaces any prior entry for the id; Remove is idempotent. A store
// with an attached cell index keeps cell membership consistent with
// every mutation, atomically per point.
type PointStore interface {
	Upsert(ctx context.Context, id string, lon, lat float64) error
	Remove(ctx context.Context, id string) error

	// ScanRadius returns every point within radiusKm of the center,
	// ascending by distance, truncated to limit.
	ScanRadius(ctx context.Context, lon, lat, radiusKm float64, limit int) ([]model.Match, error)
}

// CellIndex answers the same radius query as ScanRadius but bounds the
// candidate set to the query's home cell and its neighbor rings.
// Query returns model.ErrIndexUnavailable when no index is built.
type CellIndex interface {
	Query(ctx context.Context, lon, lat, radiusKm float64, limit int) ([]model.Match, error)
}

// SortAndTruncate orders matches ascending by distance (ids break
// ties so results are deterministic) and caps them at limit. Every
// backend funnels its results through here so both strategies agree.
func SortAndTruncate(matches []model.Match, limit int) []model.Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm != matches[j].DistanceKm {
			return matches[i].DistanceKm < matches[j].DistanceKm
		}
		return matches[i].ID < matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
