package model

import "errors"

var (
	// ErrInvalidCoordinate rejects malformed longitude/latitude on write.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidRadius rejects non-positive query radii.
	ErrInvalidRadius = errors.New("invalid radius")
	// ErrInvalidCount rejects malformed result counts at the boundary.
	ErrInvalidCount = errors.New("invalid count")
	// ErrIndexUnavailable means the hierarchical strategy was requested
	// but no cell index is built. Never downgraded to a flat scan.
	ErrIndexUnavailable = errors.New("cell index unavailable")
	// ErrStoreUnavailable wraps backing store connectivity failures.
	ErrStoreUnavailable = errors.New("point store unavailable")
)
