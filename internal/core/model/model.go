package model

import (
	"fmt"
	"strings"
)

// Point is a tracked entity position in EPSG:4326 degrees.
type Point struct {
	ID        string
	Longitude float64
	Latitude  float64
}

func (p Point) String() string {
	return fmt.Sprintf("%s@%.6f,%.6f", p.ID, p.Longitude, p.Latitude)
}

// Match is one search hit. DistanceKm is the great-circle distance
// from the query center.
type Match struct {
	ID         string
	DistanceKm float64
}

// Strategy selects how a radius query is answered.
type Strategy string

const (
	// FlatScan walks every stored point and filters by distance.
	FlatScan Strategy = "flatscan"
	// Hierarchical restricts the candidate set to the query's home
	// cell and its neighbor rings. Requires a built cell index.
	Hierarchical Strategy = "hierarchical"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case FlatScan, "":
		return FlatScan, nil
	case Hierarchical:
		return Hierarchical, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want flatscan or hierarchical)", s)
	}
}

// ValidateCoordinate rejects positions outside EPSG:4326 bounds
// before they reach any store.
func ValidateCoordinate(lon, lat float64) error {
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v not in [-180,180]", ErrInvalidCoordinate, lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v not in [-90,90]", ErrInvalidCoordinate, lat)
	}
	return nil
}
