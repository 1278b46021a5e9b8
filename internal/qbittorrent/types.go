// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

// TorrentState represents a raw torrent state string from the Web API
type TorrentState string

const (
	StateError              TorrentState = "error"
	StateMissingFiles       TorrentState = "missingFiles"
	StateUploading          TorrentState = "uploading"
	StatePausedUP           TorrentState = "pausedUP"
	StateStoppedUP          TorrentState = "stoppedUP"
	StateQueuedUP           TorrentState = "queuedUP"
	StateStalledUP          TorrentState = "stalledUP"
	StateCheckingUP         TorrentState = "checkingUP"
	StateForcedUP           TorrentState = "forcedUP"
	StateAllocating         TorrentState = "allocating"
	StateDownloading        TorrentState = "downloading"
	StateMetaDL             TorrentState = "metaDL"
	StatePausedDL           TorrentState = "pausedDL"
	StateStoppedDL          TorrentState = "stoppedDL"
	StateQueuedDL           TorrentState = "queuedDL"
	StateStalledDL          TorrentState = "stalledDL"
	StateCheckingDL         TorrentState = "checkingDL"
	StateForcedDL           TorrentState = "forcedDL"
	StateCheckingResumeData TorrentState = "checkingResumeData"
	StateMoving             TorrentState = "moving"
	StateUnknown            TorrentState = "unknown"
)

// TransferInfo represents the /api/v2/transfer/info response. The alltime
// fields are only reported by newer qBittorrent versions and decode to 0
// when absent.
type TransferInfo struct {
	ConnectionStatus string `json:"connection_status"`
	DHTNodes         int64  `json:"dht_nodes"`
	DlInfoData       int64  `json:"dl_info_data"`
	DlInfoSpeed      int64  `json:"dl_info_speed"`
	UpInfoData       int64  `json:"up_info_data"`
	UpInfoSpeed      int64  `json:"up_info_speed"`
	AlltimeDl        int64  `json:"alltime_dl"`
	AlltimeUl        int64  `json:"alltime_ul"`
}

// Torrent represents one entry of the /api/v2/torrents/info response,
// trimmed to the fields the exporter publishes
type Torrent struct {
	Hash       string       `json:"hash"`
	Name       string       `json:"name"`
	State      TorrentState `json:"state"`
	Category   string       `json:"category"`
	Tags       string       `json:"tags"`
	Size       int64        `json:"size"`
	Progress   float64      `json:"progress"`
	Dlspeed    int64        `json:"dlspeed"`
	Upspeed    int64        `json:"upspeed"`
	Downloaded int64        `json:"downloaded"`
	Uploaded   int64        `json:"uploaded"`
	Ratio      float64      `json:"ratio"`
	NumSeeds   int          `json:"num_seeds"`
	NumLeechs  int          `json:"num_leechs"`
	AddedOn    int64        `json:"added_on"`
}

// TorrentPeer represents one peer entry of the /api/v2/sync/torrentPeers response
type TorrentPeer struct {
	IP         string  `json:"ip"`
	Port       int     `json:"port"`
	Client     string  `json:"client"`
	Connection string  `json:"connection"`
	Country    string  `json:"country"`
	DlSpeed    int64   `json:"dl_speed"`
	UpSpeed    int64   `json:"up_speed"`
	Downloaded int64   `json:"downloaded"`
	Uploaded   int64   `json:"uploaded"`
	Progress   float64 `json:"progress"`
}

type torrentPeersResponse struct {
	Peers map[string]TorrentPeer `json:"peers"`
}
