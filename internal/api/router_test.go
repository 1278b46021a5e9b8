// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/qbit-exporter/internal/collector"
	"github.com/autobrr/qbit-exporter/internal/domain"
	"github.com/autobrr/qbit-exporter/internal/metrics"
	"github.com/autobrr/qbit-exporter/internal/qbittorrent"
)

// newFakeQbit spins up a fake qBittorrent Web API with one torrent.
func newFakeQbit(t *testing.T, acceptLogin bool) *httptest.Server {
	t.Helper()

	const sid = "router-test-sid"

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if !acceptLogin {
			w.Write([]byte("Fails."))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: sid})
		w.Write([]byte("Ok."))
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("SID")
			if err != nil || cookie.Value != sid {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/api/v2/transfer/info", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"connection_status": "connected", "dht_nodes": 10, "dl_info_data": 1000, "dl_info_speed": 1048576, "up_info_data": 2000, "up_info_speed": 512, "alltime_dl": 5000, "alltime_ul": 6000}`))
	}))
	mux.HandleFunc("/api/v2/torrents/info", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"hash": "abc123", "name": "ubuntu.iso", "state": "downloading", "size": 4096, "progress": 0.5}]`))
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestExporter(t *testing.T, upstreamURL string) *httptest.Server {
	t.Helper()

	client, err := qbittorrent.NewClient(qbittorrent.Config{
		URL:      upstreamURL,
		Username: "admin",
		Password: "secret",
		Timeout:  2 * time.Second,
	})
	require.NoError(t, err)

	cache := collector.NewCache(collector.New(client, 2*time.Second, false), time.Hour)
	manager := metrics.NewManager(cache, "qbittorrent", domain.TorrentLabelHash)

	router := NewRouter(&Dependencies{MetricsManager: manager})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func scrape(t *testing.T, exporter *httptest.Server) (int, string) {
	t.Helper()

	resp, err := http.Get(exporter.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMetricsEndToEnd(t *testing.T) {
	upstream := newFakeQbit(t, true)
	exporter := newTestExporter(t, upstream.URL)

	status, body := scrape(t, exporter)

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "qbittorrent_up 1")
	assert.Contains(t, body, "qbittorrent_download_speed_bytes_per_second 1.048576e+06")
	assert.Contains(t, body, `qbittorrent_torrent_progress{category="uncategorized",torrent="abc123"} 0.5`)
	assert.Contains(t, body, `qbittorrent_torrent_state{category="uncategorized",state="downloading",torrent="abc123"} 1`)
	assert.Contains(t, body, "qbittorrent_alltime_downloaded_bytes_total 5000")
	assert.Contains(t, body, "qbittorrent_alltime_uploaded_bytes_total 6000")
	assert.Contains(t, body, "qbittorrent_dht_nodes 10")
	assert.Contains(t, body, "qbittorrent_connected 1")
}

func TestMetricsAuthFailureStillServes200(t *testing.T) {
	upstream := newFakeQbit(t, false)
	exporter := newTestExporter(t, upstream.URL)

	status, body := scrape(t, exporter)

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "qbittorrent_up 0")
	assert.NotContains(t, body, "qbittorrent_torrent_progress")
	assert.NotContains(t, body, "qbittorrent_download_speed_bytes_per_second")
}

func TestMetricsOutputIsStableAcrossScrapes(t *testing.T) {
	upstream := newFakeQbit(t, true)
	exporter := newTestExporter(t, upstream.URL)

	_, first := scrape(t, exporter)
	_, second := scrape(t, exporter)

	assert.Equal(t, first, second, "scrapes within maxAge produce byte-identical output")
}

func TestHealthEndpoints(t *testing.T) {
	// Health answers even with an unreachable upstream
	exporter := newTestExporter(t, "http://127.0.0.1:1")

	for _, path := range []string{"/", "/health"} {
		resp, err := http.Get(exporter.URL + path)
		require.NoError(t, err)

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"ok"}`, string(body))
	}
}
