package kafkaconsumer

import (
	"fmt"
	"strings"
	"time"
)

const (
	OpUpdate     = "update"
	OpDeregister = "deregister"
)

// Event is one driver movement message. Seq orders events per driver;
// stale sequence numbers are dropped so replays stay last-write-wins.
type Event struct {
	Version   int       `json:"version"`
	Op        string    `json:"op"`
	DriverID  string    `json:"driver_id"`
	Longitude float64   `json:"longitude,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Seq       uint64    `json:"seq"`
	TS        time.Time `json:"ts"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpUpdate, OpDeregister:
	default:
		return fmt.Errorf("op must be update|deregister")
	}
	if strings.TrimSpace(e.DriverID) == "" {
		return fmt.Errorf("driver_id is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
