package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/observability"
	"github.com/Janus-Aurelius/driver-proximity/internal/index"
)

// Gateway validates and applies location updates. The store keeps
// point coordinates and cell membership consistent under one logical
// write, so the gateway stays a thin validation layer.
type Gateway struct {
	store index.PointStore
}

func NewGateway(store index.PointStore) *Gateway {
	return &Gateway{store: store}
}

func (g *Gateway) ReportLocation(ctx context.Context, id string, lon, lat float64) error {
	if id == "" {
		return errors.New("empty entity id")
	}
	if err := model.ValidateCoordinate(lon, lat); err != nil {
		observability.IncLocationUpdate("report", "rejected")
		return err
	}
	if err := g.store.Upsert(ctx, id, lon, lat); err != nil {
		observability.IncLocationUpdate("report", "error")
		return fmt.Errorf("upsert %q: %w", id, err)
	}
	observability.IncLocationUpdate("report", "ok")
	return nil
}

func (g *Gateway) Deregister(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("empty entity id")
	}
	if err := g.store.Remove(ctx, id); err != nil {
		observability.IncLocationUpdate("deregister", "error")
		return fmt.Errorf("remove %q: %w", id, err)
	}
	observability.IncLocationUpdate("deregister", "ok")
	return nil
}
