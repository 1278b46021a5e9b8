// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/qbit-exporter/internal/qbittorrent"
)

func TestCacheGetRefreshesOnce(t *testing.T) {
	upstream := newFakeUpstream()
	cache := NewCache(New(upstream, time.Second, false), time.Hour)

	first := cache.Get(context.Background())
	second := cache.Get(context.Background())

	assert.Same(t, first, second, "fresh snapshot is served from cache")

	_, transfer, _ := upstream.calls()
	assert.Equal(t, 1, transfer, "upstream contacted once within maxAge")
}

func TestCacheSingleFlight(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.transferDelay = 100 * time.Millisecond
	cache := NewCache(New(upstream, 5*time.Second, false), time.Hour)

	const scrapers = 16

	var wg sync.WaitGroup
	snapshots := make([]*Snapshot, scrapers)

	for i := 0; i < scrapers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshots[i] = cache.Get(context.Background())
		}(i)
	}
	wg.Wait()

	_, transfer, torrents := upstream.calls()
	assert.Equal(t, 1, transfer, "concurrent scrapers share one in-flight refresh")
	assert.Equal(t, 1, torrents)

	for i := 1; i < scrapers; i++ {
		assert.Same(t, snapshots[0], snapshots[i], "all callers receive the same snapshot")
	}
}

func TestCacheRefreshesAfterMaxAge(t *testing.T) {
	upstream := newFakeUpstream()
	cache := NewCache(New(upstream, time.Second, false), 10*time.Millisecond)

	cache.Get(context.Background())
	time.Sleep(30 * time.Millisecond)
	cache.Get(context.Background())

	_, transfer, _ := upstream.calls()
	assert.Equal(t, 2, transfer)
}

func TestCacheRetainsStaleDataOnFailure(t *testing.T) {
	upstream := newFakeUpstream()
	cache := NewCache(New(upstream, time.Second, false), 10*time.Millisecond)

	good := cache.Get(context.Background())
	require.True(t, good.OK())
	require.NotNil(t, good.Stats)

	// Upstream goes away, next refresh fails
	upstream.mu.Lock()
	upstream.transferErrs = []error{unreachableErr()}
	upstream.mu.Unlock()
	time.Sleep(30 * time.Millisecond)

	stale := cache.Get(context.Background())

	require.False(t, stale.OK())
	assert.Equal(t, qbittorrent.KindUnreachable, qbittorrent.KindOf(stale.Err))

	// Previous good data fields are kept, only error and timestamp move
	assert.Same(t, good.Stats, stale.Stats)
	assert.Equal(t, good.Torrents, stale.Torrents)
	assert.True(t, stale.CollectedAt.After(good.CollectedAt))
}

func TestCacheRecoversAfterFailure(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.transferErrs = []error{unreachableErr()}
	cache := NewCache(New(upstream, time.Second, false), 10*time.Millisecond)

	failed := cache.Get(context.Background())
	require.False(t, failed.OK())
	assert.Nil(t, failed.Stats, "nothing to retain before the first success")

	time.Sleep(30 * time.Millisecond)

	recovered := cache.Get(context.Background())
	require.True(t, recovered.OK())
	assert.NotNil(t, recovered.Stats)
}

func TestCacheErrorCounts(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.transferErrs = []error{unreachableErr(), unreachableErr(), sessionExpiredErr(), sessionExpiredErr()}
	cache := NewCache(New(upstream, time.Second, false), time.Nanosecond)

	assert.Empty(t, cache.ErrorCounts())

	cache.Get(context.Background())
	time.Sleep(time.Millisecond)
	cache.Get(context.Background())
	time.Sleep(time.Millisecond)
	// Third refresh hits two session expiries in a row: one re-login,
	// one retry, then failure
	cache.Get(context.Background())

	counts := cache.ErrorCounts()
	assert.Equal(t, uint64(2), counts[qbittorrent.KindUnreachable])
	assert.Equal(t, uint64(1), counts[qbittorrent.KindSessionExpired])
}

func TestCacheLast(t *testing.T) {
	upstream := newFakeUpstream()
	cache := NewCache(New(upstream, time.Second, false), time.Hour)

	assert.Nil(t, cache.Last(), "nothing collected yet")

	snapshot := cache.Get(context.Background())
	assert.Same(t, snapshot, cache.Last())

	_, transfer, _ := upstream.calls()
	assert.Equal(t, 1, transfer, "Last never triggers a refresh")
}
