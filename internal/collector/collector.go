// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"context"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/qbit-exporter/internal/qbittorrent"
)

// Upstream is the read-only qBittorrent API surface the collector needs.
type Upstream interface {
	Login(ctx context.Context) error
	GetTransferInfo(ctx context.Context) (*qbittorrent.TransferInfo, error)
	GetTorrents(ctx context.Context) ([]qbittorrent.Torrent, error)
	GetTorrentPeers(ctx context.Context, hash string) (map[string]qbittorrent.TorrentPeer, error)
}

// Collector turns upstream API responses into snapshots. It owns the retry
// policy: on a rejected session it re-authenticates once and retries the
// whole fetch once, so a snapshot never mixes data from two sessions.
type Collector struct {
	client      Upstream
	timeout     time.Duration
	exportPeers bool
}

// New creates a collector. timeout bounds one whole refresh against the
// upstream; a refresh that exceeds it fails as unreachable.
func New(client Upstream, timeout time.Duration, exportPeers bool) *Collector {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Collector{
		client:      client,
		timeout:     timeout,
		exportPeers: exportPeers,
	}
}

// Refresh performs one collection cycle and always returns a snapshot.
// Failures are recorded in the snapshot instead of being returned, so the
// cache can decide what to retain.
func (c *Collector) Refresh(ctx context.Context) *Snapshot {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, torrents, err := c.fetch(ctx)
	if qbittorrent.IsSessionExpired(err) {
		log.Debug().Msg("Session rejected by qBittorrent, re-authenticating")
		if loginErr := c.client.Login(ctx); loginErr != nil {
			return c.failed(loginErr)
		}
		info, torrents, err = c.fetch(ctx)
	}
	if err != nil {
		return c.failed(err)
	}

	snapshot := &Snapshot{
		Stats:       normalizeStats(info),
		Torrents:    normalizeTorrents(torrents),
		CollectedAt: time.Now(),
	}

	if c.exportPeers {
		if err := c.attachPeers(ctx, snapshot); err != nil {
			return c.failed(err)
		}
	}

	log.Debug().
		Int("torrents", len(snapshot.Torrents)).
		Str("connectionStatus", snapshot.Stats.ConnectionStatus).
		Msg("Collected snapshot from qBittorrent")

	return snapshot
}

// fetch performs the two fetch operations in order. Both must come from the
// same session, so a 403 on either call aborts the pair.
func (c *Collector) fetch(ctx context.Context) (*qbittorrent.TransferInfo, []qbittorrent.Torrent, error) {
	info, err := c.client.GetTransferInfo(ctx)
	if err != nil {
		return nil, nil, err
	}

	torrents, err := c.client.GetTorrents(ctx)
	if err != nil {
		return nil, nil, err
	}

	return info, torrents, nil
}

func (c *Collector) attachPeers(ctx context.Context, snapshot *Snapshot) error {
	for i := range snapshot.Torrents {
		t := &snapshot.Torrents[i]
		if t.Leechers == 0 {
			continue
		}

		peers, err := c.client.GetTorrentPeers(ctx, t.Hash)
		if err != nil {
			return err
		}

		t.Peers = make([]PeerStats, 0, len(peers))
		for _, peer := range peers {
			t.Peers = append(t.Peers, PeerStats{
				Address:       net.JoinHostPort(peer.IP, strconv.Itoa(peer.Port)),
				DownloadSpeed: clampBytes(peer.DlSpeed),
				UploadSpeed:   clampBytes(peer.UpSpeed),
				Progress:      clampProgress(peer.Progress),
			})
		}
		sort.Slice(t.Peers, func(a, b int) bool {
			return t.Peers[a].Address < t.Peers[b].Address
		})
	}
	return nil
}

func (c *Collector) failed(err error) *Snapshot {
	log.Warn().Err(err).Str("kind", string(qbittorrent.KindOf(err))).Msg("Refresh failed")
	return &Snapshot{CollectedAt: time.Now(), Err: err}
}

func normalizeStats(info *qbittorrent.TransferInfo) *GlobalStats {
	return &GlobalStats{
		DownloadSpeed:     clampBytes(info.DlInfoSpeed),
		UploadSpeed:       clampBytes(info.UpInfoSpeed),
		SessionDownloaded: clampBytes(info.DlInfoData),
		SessionUploaded:   clampBytes(info.UpInfoData),
		AlltimeDownloaded: clampBytes(info.AlltimeDl),
		AlltimeUploaded:   clampBytes(info.AlltimeUl),
		DHTNodes:          clampBytes(info.DHTNodes),
		ConnectionStatus:  info.ConnectionStatus,
		Connected:         info.ConnectionStatus == "connected",
	}
}

func normalizeTorrents(torrents []qbittorrent.Torrent) []TorrentStats {
	result := make([]TorrentStats, 0, len(torrents))
	for _, t := range torrents {
		category := t.Category
		if category == "" {
			category = "uncategorized"
		}

		result = append(result, TorrentStats{
			Hash:          t.Hash,
			Name:          t.Name,
			Category:      category,
			State:         MapState(t.State),
			Size:          clampBytes(t.Size),
			Progress:      clampProgress(t.Progress),
			DownloadSpeed: clampBytes(t.Dlspeed),
			UploadSpeed:   clampBytes(t.Upspeed),
			Downloaded:    clampBytes(t.Downloaded),
			Uploaded:      clampBytes(t.Uploaded),
			Seeders:       max(t.NumSeeds, 0),
			Leechers:      max(t.NumLeechs, 0),
		})
	}

	// Stable hash order keeps the exposition diffable between scrapes.
	sort.Slice(result, func(a, b int) bool {
		return result[a].Hash < result[b].Hash
	})

	return result
}
