// Package redisgeo backs the point store with Redis GEO commands.
// Cell membership for the hierarchical strategy lives in per-cell id
// sets kept transactionally in step with the geo sorted set.
package redisgeo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/observability"
	"github.com/Janus-Aurelius/driver-proximity/internal/geocell"
	"github.com/Janus-Aurelius/driver-proximity/internal/index"
)

const defaultNamespace = "prox"

// txRetries bounds the optimistic-transaction retry loop in Upsert and
// Remove. A retry only happens when another writer for the same id
// committed between our read and EXEC, so contention is per id and a
// handful of attempts is plenty.
const txRetries = 5

// Redis measures geo distances on a slightly larger earth radius than
// our haversine (6372.8km vs 6371km), so the server-side radius is
// widened by this factor and the exact filter happens client-side.
const radiusSlack = 1.01

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

type Index struct {
	rdb  *redis.Client
	grid *geocell.Grid // nil means hierarchical queries fail
	ns   string
}

// New connects and pings the store. A non-nil grid enables the
// hierarchical strategy and cell membership maintenance.
func New(ctx context.Context, addr string, grid *geocell.Grid, opts ...Option) (*Index, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     64,
		MinIdleConns: 4,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveStoreOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, storeErr("ping", err)
	}
	return &Index{rdb: rdb, grid: grid, ns: defaultNamespace}, nil
}

// Ping verifies store connectivity; used by the readiness probe.
func (ix *Index) Ping(ctx context.Context) error {
	start := time.Now()
	err := ix.rdb.Ping(ctx).Err()
	observability.ObserveStoreOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (ix *Index) Close() error {
	if err := ix.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}

func (ix *Index) Upsert(ctx context.Context, id string, lon, lat float64) error {
	if id == "" {
		return errors.New("empty id")
	}
	if err := model.ValidateCoordinate(lon, lat); err != nil {
		return err
	}

	loc := &redis.GeoLocation{Name: id, Longitude: lon, Latitude: lat}

	if ix.grid == nil {
		start := time.Now()
		err := ix.rdb.GeoAdd(ctx, geoKey(ix.ns), loc).Err()
		observability.ObserveStoreOp("upsert", err, time.Since(start).Seconds())
		if err != nil {
			return storeErr("upsert", err)
		}
		return nil
	}

	c, err := ix.grid.CellFor(lon, lat)
	if err != nil {
		return err
	}
	newCell := c.String()
	res := ix.grid.Resolution()
	cellPtr := memberCellKey(ix.ns, id)

	// The old-cell read and the membership rewrite must be one unit, or
	// two writers racing on the same id both SRem the same stale cell
	// and the loser strands the id in a second set. WATCH on the per-id
	// cell pointer aborts the losing EXEC so it re-reads and retries.
	start := time.Now()
	for attempt := 0; ; attempt++ {
		err = ix.rdb.Watch(ctx, func(tx *redis.Tx) error {
			oldCell, err := cellOf(ctx, tx, cellPtr)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.GeoAdd(ctx, geoKey(ix.ns), loc)
				if oldCell != "" && oldCell != newCell {
					p.SRem(ctx, cellKey(ix.ns, res, oldCell), id)
				}
				p.SAdd(ctx, cellKey(ix.ns, res, newCell), id)
				p.Set(ctx, cellPtr, newCell, 0)
				return nil
			})
			return err
		}, cellPtr)
		if !errors.Is(err, redis.TxFailedErr) || attempt >= txRetries {
			break
		}
	}
	observability.ObserveStoreOp("upsert", err, time.Since(start).Seconds())
	if err != nil {
		return storeErr("upsert", err)
	}
	return nil
}

func (ix *Index) Remove(ctx context.Context, id string) error {
	if ix.grid == nil {
		start := time.Now()
		err := ix.rdb.ZRem(ctx, geoKey(ix.ns), id).Err()
		observability.ObserveStoreOp("remove", err, time.Since(start).Seconds())
		if err != nil {
			return storeErr("remove", err)
		}
		return nil
	}

	cellPtr := memberCellKey(ix.ns, id)

	start := time.Now()
	var err error
	for attempt := 0; ; attempt++ {
		err = ix.rdb.Watch(ctx, func(tx *redis.Tx) error {
			oldCell, err := cellOf(ctx, tx, cellPtr)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.ZRem(ctx, geoKey(ix.ns), id)
				if oldCell != "" {
					p.SRem(ctx, cellKey(ix.ns, ix.grid.Resolution(), oldCell), id)
				}
				p.Del(ctx, cellPtr)
				return nil
			})
			return err
		}, cellPtr)
		if !errors.Is(err, redis.TxFailedErr) || attempt >= txRetries {
			break
		}
	}
	observability.ObserveStoreOp("remove", err, time.Since(start).Seconds())
	if err != nil {
		return storeErr("remove", err)
	}
	return nil
}

func (ix *Index) ScanRadius(ctx context.Context, lon, lat, radiusKm float64, limit int) ([]model.Match, error) {
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRadius, radiusKm)
	}
	if err := model.ValidateCoordinate(lon, lat); err != nil {
		return nil, err
	}

	q := &redis.GeoRadiusQuery{
		Radius:    radiusKm * radiusSlack,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}
	if limit > 0 {
		q.Count = limit
	}

	start := time.Now()
	locs, err := ix.rdb.GeoRadius(ctx, geoKey(ix.ns), lon, lat, q).Result()
	observability.ObserveStoreOp("georadius", err, time.Since(start).Seconds())
	if err != nil {
		return nil, storeErr("georadius", err)
	}

	matches := make([]model.Match, 0, len(locs))
	for _, loc := range locs {
		d := geocell.HaversineKm(lon, lat, loc.Longitude, loc.Latitude)
		if d <= radiusKm {
			matches = append(matches, model.Match{ID: loc.Name, DistanceKm: d})
		}
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

	res := ix.grid.Resolution()
	start := time.Now()
	cmds := make([]*redis.StringSliceCmd, len(cells))
	_, err = ix.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, c := range cells {
			cmds[i] = p.SMembers(ctx, cellKey(ix.ns, res, c.String()))
		}
		return nil
	})
	observability.ObserveStoreOp("smembers", err, time.Since(start).Seconds())
	if err != nil {
		return nil, storeErr("smembers", err)
	}

	seen := make(map[string]struct{})
	var candidates []string
	for _, cmd := range cmds {
		for _, id := range cmd.Val() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	start = time.Now()
	positions, err := ix.rdb.GeoPos(ctx, geoKey(ix.ns), candidates...).Result()
	observability.ObserveStoreOp("geopos", err, time.Since(start).Seconds())
	if err != nil {
		return nil, storeErr("geopos", err)
	}

	var matches []model.Match
	for i, pos := range positions {
		if pos == nil {
			continue // removed between SMEMBERS and GEOPOS
		}
		d := geocell.HaversineKm(lon, lat, pos.Longitude, pos.Latitude)
		if d <= radiusKm {
			matches = append(matches, model.Match{ID: candidates[i], DistanceKm: d})
		}
	}
	return index.SortAndTruncate(matches, limit), nil
}

// cellOf reads the id's current cell token; absent means the id is
// not in any cell set.
func cellOf(ctx context.Context, c redis.Cmdable, key string) (string, error) {
	cell, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return cell, err
}

func storeErr(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %w", op, model.ErrStoreUnavailable, err)
}
