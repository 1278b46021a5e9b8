// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"time"

	"github.com/autobrr/qbit-exporter/internal/qbittorrent"
)

// State is the exporter's torrent state enum, a stable superset mapped from
// qBittorrent's richer state strings.
type State string

const (
	StateDownloading State = "downloading"
	StateSeeding     State = "seeding"
	StatePaused      State = "paused"
	StateStalled     State = "stalled"
	StateError       State = "error"
	StateChecking    State = "checking"
	StateQueued      State = "queued"
	StateMoving      State = "moving"
	StateUnknown     State = "unknown"
)

// States lists all exporter states in exposition order.
var States = []State{
	StateChecking,
	StateDownloading,
	StateError,
	StateMoving,
	StatePaused,
	StateQueued,
	StateSeeding,
	StateStalled,
	StateUnknown,
}

// MapState converts a raw qBittorrent state string into the exporter enum.
func MapState(s qbittorrent.TorrentState) State {
	switch s {
	case qbittorrent.StateDownloading, qbittorrent.StateMetaDL, qbittorrent.StateForcedDL:
		return StateDownloading
	case qbittorrent.StateUploading, qbittorrent.StateForcedUP:
		return StateSeeding
	case qbittorrent.StatePausedUP, qbittorrent.StatePausedDL,
		qbittorrent.StateStoppedUP, qbittorrent.StateStoppedDL:
		return StatePaused
	case qbittorrent.StateStalledUP, qbittorrent.StateStalledDL:
		return StateStalled
	case qbittorrent.StateError, qbittorrent.StateMissingFiles:
		return StateError
	case qbittorrent.StateCheckingUP, qbittorrent.StateCheckingDL,
		qbittorrent.StateCheckingResumeData, qbittorrent.StateAllocating:
		return StateChecking
	case qbittorrent.StateQueuedUP, qbittorrent.StateQueuedDL:
		return StateQueued
	case qbittorrent.StateMoving:
		return StateMoving
	default:
		return StateUnknown
	}
}

// GlobalStats holds the normalized global transfer statistics.
type GlobalStats struct {
	DownloadSpeed     int64
	UploadSpeed       int64
	SessionDownloaded int64
	SessionUploaded   int64
	AlltimeDownloaded int64
	AlltimeUploaded   int64
	DHTNodes          int64
	ConnectionStatus  string
	Connected         bool
}

// PeerStats holds the normalized per-peer statistics of one torrent.
type PeerStats struct {
	Address       string
	DownloadSpeed int64
	UploadSpeed   int64
	Progress      float64
}

// TorrentStats holds the normalized per-torrent statistics.
type TorrentStats struct {
	Hash          string
	Name          string
	Category      string
	State         State
	Size          int64
	Progress      float64
	DownloadSpeed int64
	UploadSpeed   int64
	Downloaded    int64
	Uploaded      int64
	Seeders       int
	Leechers      int
	Peers         []PeerStats
}

// Snapshot is one consistent view of the upstream state. It is immutable
// once published; a failed refresh produces a snapshot with Err set and
// no data of its own.
type Snapshot struct {
	Stats       *GlobalStats
	Torrents    []TorrentStats
	CollectedAt time.Time
	Err         error
}

// OK reports whether the refresh that produced this snapshot succeeded.
func (s *Snapshot) OK() bool {
	return s.Err == nil
}

// clampProgress rejects out-of-range progress values from the upstream.
func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// clampBytes rejects negative byte counts and rates from the upstream.
func clampBytes(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
