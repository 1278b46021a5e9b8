// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/autobrr/qbit-exporter/internal/qbittorrent"
)

// Cache holds the most recent snapshot and decouples scrape frequency from
// the load placed on qBittorrent. Within maxAge the cached snapshot is
// served without contacting the upstream; past it, exactly one refresh runs
// no matter how many scrapers arrive concurrently.
type Cache struct {
	collector *Collector
	maxAge    time.Duration

	group singleflight.Group

	mu          sync.RWMutex
	current     *Snapshot
	errorCounts map[qbittorrent.ErrorKind]uint64
}

// NewCache creates a cache around the given collector.
func NewCache(collector *Collector, maxAge time.Duration) *Cache {
	if maxAge == 0 {
		maxAge = 5 * time.Second
	}
	return &Cache{
		collector:   collector,
		maxAge:      maxAge,
		errorCounts: make(map[qbittorrent.ErrorKind]uint64),
	}
}

// Get returns the current snapshot, refreshing it first when it is older
// than maxAge. Concurrent callers past the age check join the in-flight
// refresh and all receive its result.
func (c *Cache) Get(ctx context.Context) *Snapshot {
	if snapshot := c.fresh(); snapshot != nil {
		return snapshot
	}

	result, _, _ := c.group.Do("refresh", func() (any, error) {
		// A caller that was parked on the flight lock re-checks age so a
		// just-published snapshot is not refreshed twice.
		if snapshot := c.fresh(); snapshot != nil {
			return snapshot, nil
		}
		return c.publish(c.collector.Refresh(ctx)), nil
	})

	return result.(*Snapshot)
}

// Last returns the current snapshot without triggering a refresh, or nil
// when nothing has been collected yet.
func (c *Cache) Last() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// ErrorCounts returns the cumulative number of failed refreshes per error
// kind since startup.
func (c *Cache) ErrorCounts() map[qbittorrent.ErrorKind]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[qbittorrent.ErrorKind]uint64, len(c.errorCounts))
	for kind, n := range c.errorCounts {
		counts[kind] = n
	}
	return counts
}

func (c *Cache) fresh() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current != nil && time.Since(c.current.CollectedAt) <= c.maxAge {
		return c.current
	}
	return nil
}

// publish atomically replaces the current snapshot. A failed refresh keeps
// the previous good data fields so a transient outage does not zero out
// gauges; only the error and timestamp move forward.
func (c *Cache) publish(snapshot *Snapshot) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snapshot.Err != nil {
		if kind := qbittorrent.KindOf(snapshot.Err); kind != "" {
			c.errorCounts[kind]++
		}
		if c.current != nil && c.current.Stats != nil {
			snapshot = &Snapshot{
				Stats:       c.current.Stats,
				Torrents:    c.current.Torrents,
				CollectedAt: snapshot.CollectedAt,
				Err:         snapshot.Err,
			}
		}
	}

	c.current = snapshot
	return snapshot
}
