package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// seqDedupe tracks the highest applied sequence per driver. The check
// and the record are separate so a failed apply does not burn the seq:
// a redelivered message must still go through.
type seqDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newSeqDedupe(size int) *seqDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, uint64](size)
	return &seqDedupe{lru: c}
}

func (d *seqDedupe) isStale(driverID string, seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(driverID)
	return ok && seq <= last
}

func (d *seqDedupe) markApplied(driverID string, seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(driverID); ok && seq <= last {
		return
	}
	d.lru.Add(driverID, seq)
}
