// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/qbit-exporter/internal/collector"
	"github.com/autobrr/qbit-exporter/internal/domain"
)

const collectTimeout = 30 * time.Second

// ExporterCollector maps cached snapshots into metric samples. It implements
// prometheus.Collector, so every scrape runs one cache-aware refresh and the
// exposition writer takes care of deterministic name/label ordering.
type ExporterCollector struct {
	cache        *collector.Cache
	torrentLabel string

	upDesc               *prometheus.Desc
	downloadSpeedDesc    *prometheus.Desc
	uploadSpeedDesc      *prometheus.Desc
	downloadedDesc       *prometheus.Desc
	uploadedDesc         *prometheus.Desc
	alltimeDownloadDesc  *prometheus.Desc
	alltimeUploadDesc    *prometheus.Desc
	dhtNodesDesc         *prometheus.Desc
	connectedDesc        *prometheus.Desc
	connectionStatusDesc *prometheus.Desc
	torrentsDesc         *prometheus.Desc
	scrapeErrorsDesc     *prometheus.Desc

	torrentProgressDesc      *prometheus.Desc
	torrentSizeDesc          *prometheus.Desc
	torrentStateDesc         *prometheus.Desc
	torrentDownloadSpeedDesc *prometheus.Desc
	torrentUploadSpeedDesc   *prometheus.Desc
	torrentDownloadedDesc    *prometheus.Desc
	torrentUploadedDesc      *prometheus.Desc
	torrentSeedersDesc       *prometheus.Desc
	torrentLeechersDesc      *prometheus.Desc

	peerDownloadSpeedDesc *prometheus.Desc
	peerUploadSpeedDesc   *prometheus.Desc
}

// NewExporterCollector creates a collector publishing under the given
// namespace. torrentLabel selects whether the per-torrent label value is the
// info hash or the display name.
func NewExporterCollector(cache *collector.Cache, namespace, torrentLabel string) *ExporterCollector {
	if torrentLabel != domain.TorrentLabelName {
		torrentLabel = domain.TorrentLabelHash
	}

	torrentLabels := []string{"torrent", "category"}

	return &ExporterCollector{
		cache:        cache,
		torrentLabel: torrentLabel,

		upDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "up"),
			"Whether the last refresh against qBittorrent succeeded (1) or not (0)",
			nil,
			nil,
		),
		downloadSpeedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "download_speed_bytes_per_second"),
			"Current global download speed in bytes per second",
			nil,
			nil,
		),
		uploadSpeedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "upload_speed_bytes_per_second"),
			"Current global upload speed in bytes per second",
			nil,
			nil,
		),
		downloadedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "downloaded_bytes_total"),
			"Total data downloaded this session in bytes",
			nil,
			nil,
		),
		uploadedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "uploaded_bytes_total"),
			"Total data uploaded this session in bytes",
			nil,
			nil,
		),
		alltimeDownloadDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "alltime_downloaded_bytes_total"),
			"Total data downloaded over the lifetime of the instance in bytes",
			nil,
			nil,
		),
		alltimeUploadDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "alltime_uploaded_bytes_total"),
			"Total data uploaded over the lifetime of the instance in bytes",
			nil,
			nil,
		),
		dhtNodesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "dht_nodes"),
			"Number of DHT nodes connected to",
			nil,
			nil,
		),
		connectedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "connected"),
			"Whether qBittorrent reports its connection status as connected",
			nil,
			nil,
		),
		connectionStatusDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "connection_status"),
			"Connection status reported by qBittorrent (1 for the current status)",
			[]string{"status"},
			nil,
		),
		torrentsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrents"),
			"Number of torrents by state",
			[]string{"state"},
			nil,
		),
		scrapeErrorsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scrape_errors_total"),
			"Total number of failed refreshes by error type",
			[]string{"type"},
			nil,
		),

		torrentProgressDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_progress"),
			"Download progress of the torrent (0.0 to 1.0)",
			torrentLabels,
			nil,
		),
		torrentSizeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_size_bytes"),
			"Size of the torrent's selected files in bytes",
			torrentLabels,
			nil,
		),
		torrentStateDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_state"),
			"Current state of the torrent (1 for the active state)",
			append(torrentLabels, "state"),
			nil,
		),
		torrentDownloadSpeedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_download_speed_bytes_per_second"),
			"Current download speed of the torrent in bytes per second",
			torrentLabels,
			nil,
		),
		torrentUploadSpeedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_upload_speed_bytes_per_second"),
			"Current upload speed of the torrent in bytes per second",
			torrentLabels,
			nil,
		),
		torrentDownloadedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_downloaded_bytes_total"),
			"Total data downloaded for the torrent in bytes",
			torrentLabels,
			nil,
		),
		torrentUploadedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_uploaded_bytes_total"),
			"Total data uploaded for the torrent in bytes",
			torrentLabels,
			nil,
		),
		torrentSeedersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_seeders"),
			"Number of seeds connected to for the torrent",
			torrentLabels,
			nil,
		),
		torrentLeechersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_leechers"),
			"Number of leechers connected to for the torrent",
			torrentLabels,
			nil,
		),

		peerDownloadSpeedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_peer_download_speed_bytes_per_second"),
			"Current download speed from the peer in bytes per second",
			append(torrentLabels, "peer"),
			nil,
		),
		peerUploadSpeedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "torrent_peer_upload_speed_bytes_per_second"),
			"Current upload speed to the peer in bytes per second",
			append(torrentLabels, "peer"),
			nil,
		),
	}
}

func (c *ExporterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.upDesc
	ch <- c.downloadSpeedDesc
	ch <- c.uploadSpeedDesc
	ch <- c.downloadedDesc
	ch <- c.uploadedDesc
	ch <- c.alltimeDownloadDesc
	ch <- c.alltimeUploadDesc
	ch <- c.dhtNodesDesc
	ch <- c.connectedDesc
	ch <- c.connectionStatusDesc
	ch <- c.torrentsDesc
	ch <- c.scrapeErrorsDesc
	ch <- c.torrentProgressDesc
	ch <- c.torrentSizeDesc
	ch <- c.torrentStateDesc
	ch <- c.torrentDownloadSpeedDesc
	ch <- c.torrentUploadSpeedDesc
	ch <- c.torrentDownloadedDesc
	ch <- c.torrentUploadedDesc
	ch <- c.torrentSeedersDesc
	ch <- c.torrentLeechersDesc
	ch <- c.peerDownloadSpeedDesc
	ch <- c.peerUploadSpeedDesc
}

func (c *ExporterCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	snapshot := c.cache.Get(ctx)

	up := 0.0
	if snapshot.OK() {
		up = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, up)

	for kind, count := range c.cache.ErrorCounts() {
		ch <- prometheus.MustNewConstMetric(
			c.scrapeErrorsDesc,
			prometheus.CounterValue,
			float64(count),
			string(kind),
		)
	}

	if snapshot.Stats == nil {
		// Nothing was ever collected successfully. The up gauge alone
		// tells the scraping system the upstream is degraded.
		log.Debug().Msg("No snapshot data available, emitting up metric only")
		return
	}

	c.collectGlobal(ch, snapshot)
	c.collectTorrents(ch, snapshot)
}

func (c *ExporterCollector) collectGlobal(ch chan<- prometheus.Metric, snapshot *collector.Snapshot) {
	stats := snapshot.Stats

	ch <- prometheus.MustNewConstMetric(c.downloadSpeedDesc, prometheus.GaugeValue, float64(stats.DownloadSpeed))
	ch <- prometheus.MustNewConstMetric(c.uploadSpeedDesc, prometheus.GaugeValue, float64(stats.UploadSpeed))
	ch <- prometheus.MustNewConstMetric(c.downloadedDesc, prometheus.CounterValue, float64(stats.SessionDownloaded))
	ch <- prometheus.MustNewConstMetric(c.uploadedDesc, prometheus.CounterValue, float64(stats.SessionUploaded))
	ch <- prometheus.MustNewConstMetric(c.alltimeDownloadDesc, prometheus.CounterValue, float64(stats.AlltimeDownloaded))
	ch <- prometheus.MustNewConstMetric(c.alltimeUploadDesc, prometheus.CounterValue, float64(stats.AlltimeUploaded))
	ch <- prometheus.MustNewConstMetric(c.dhtNodesDesc, prometheus.GaugeValue, float64(stats.DHTNodes))

	connected := 0.0
	if stats.Connected {
		connected = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.connectedDesc, prometheus.GaugeValue, connected)
	ch <- prometheus.MustNewConstMetric(c.connectionStatusDesc, prometheus.GaugeValue, 1, stats.ConnectionStatus)

	counts := make(map[collector.State]int)
	for _, t := range snapshot.Torrents {
		counts[t.State]++
	}
	for _, state := range collector.States {
		ch <- prometheus.MustNewConstMetric(
			c.torrentsDesc,
			prometheus.GaugeValue,
			float64(counts[state]),
			string(state),
		)
	}
}

func (c *ExporterCollector) collectTorrents(ch chan<- prometheus.Metric, snapshot *collector.Snapshot) {
	// Torrent names are not unique. Two torrents with the same name and
	// category would produce duplicate label sets, which the registry
	// rejects and promhttp turns into a failed scrape, so colliding names
	// fall back to the hash.
	var nameCounts map[string]int
	if c.torrentLabel == domain.TorrentLabelName {
		nameCounts = make(map[string]int, len(snapshot.Torrents))
		for _, t := range snapshot.Torrents {
			nameCounts[t.Name+"\x00"+t.Category]++
		}
	}

	for _, t := range snapshot.Torrents {
		label := t.Hash
		if c.torrentLabel == domain.TorrentLabelName && nameCounts[t.Name+"\x00"+t.Category] == 1 {
			label = t.Name
		}

		ch <- prometheus.MustNewConstMetric(c.torrentProgressDesc, prometheus.GaugeValue, t.Progress, label, t.Category)
		ch <- prometheus.MustNewConstMetric(c.torrentSizeDesc, prometheus.GaugeValue, float64(t.Size), label, t.Category)
		ch <- prometheus.MustNewConstMetric(c.torrentStateDesc, prometheus.GaugeValue, 1, label, t.Category, string(t.State))
		ch <- prometheus.MustNewConstMetric(c.torrentDownloadSpeedDesc, prometheus.GaugeValue, float64(t.DownloadSpeed), label, t.Category)
		ch <- prometheus.MustNewConstMetric(c.torrentUploadSpeedDesc, prometheus.GaugeValue, float64(t.UploadSpeed), label, t.Category)
		ch <- prometheus.MustNewConstMetric(c.torrentDownloadedDesc, prometheus.CounterValue, float64(t.Downloaded), label, t.Category)
		ch <- prometheus.MustNewConstMetric(c.torrentUploadedDesc, prometheus.CounterValue, float64(t.Uploaded), label, t.Category)
		ch <- prometheus.MustNewConstMetric(c.torrentSeedersDesc, prometheus.GaugeValue, float64(t.Seeders), label, t.Category)
		ch <- prometheus.MustNewConstMetric(c.torrentLeechersDesc, prometheus.GaugeValue, float64(t.Leechers), label, t.Category)

		for _, peer := range t.Peers {
			ch <- prometheus.MustNewConstMetric(c.peerDownloadSpeedDesc, prometheus.GaugeValue, float64(peer.DownloadSpeed), label, t.Category, peer.Address)
			ch <- prometheus.MustNewConstMetric(c.peerUploadSpeedDesc, prometheus.GaugeValue, float64(peer.UploadSpeed), label, t.Category, peer.Address)
		}
	}
}
