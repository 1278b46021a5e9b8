// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/qbit-exporter/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath
}

func TestConfigDefaults(t *testing.T) {
	configPath := writeConfig(t, `
[qbittorrent]
url = "http://qbit.local:8080"
`)

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Config.Host)
	assert.Equal(t, 8090, cfg.Config.Port)
	assert.Equal(t, "INFO", cfg.Config.LogLevel)
	assert.Equal(t, "http://qbit.local:8080", cfg.Config.QBittorrent.URL)
	assert.Equal(t, "qbittorrent", cfg.Config.Metrics.Prefix)
	assert.Equal(t, domain.TorrentLabelHash, cfg.Config.Metrics.TorrentLabel)
	assert.False(t, cfg.Config.Metrics.ExportPeers)
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval())
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout())
}

func TestConfigFileValues(t *testing.T) {
	configPath := writeConfig(t, `
host = "127.0.0.1"
port = 9100
logLevel = "DEBUG"

[qbittorrent]
url = "https://seedbox.example.com"
username = "metrics"
password = "hunter2"
timeout = 30

[metrics]
prefix = "qb"
refreshInterval = 15
torrentLabel = "name"
exportPeers = true
`)

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Config.Host)
	assert.Equal(t, 9100, cfg.Config.Port)
	assert.Equal(t, "metrics", cfg.Config.QBittorrent.Username)
	assert.Equal(t, "hunter2", cfg.Config.QBittorrent.Password)
	assert.Equal(t, "qb", cfg.Config.Metrics.Prefix)
	assert.Equal(t, domain.TorrentLabelName, cfg.Config.Metrics.TorrentLabel)
	assert.True(t, cfg.Config.Metrics.ExportPeers)
	assert.Equal(t, 15*time.Second, cfg.RefreshInterval())
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout())
}

func TestConfigEnvOverride(t *testing.T) {
	configPath := writeConfig(t, `
port = 9100

[qbittorrent]
url = "http://from-file:8080"
`)

	t.Setenv(envPrefix+"PORT", "9999")
	t.Setenv(envPrefix+"QBITTORRENT_URL", "http://from-env:8080")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Config.Port)
	assert.Equal(t, "http://from-env:8080", cfg.Config.QBittorrent.URL)
}

func TestConfigPasswordFile(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(secretPath, []byte("s3cret\n"), 0o600))

	configPath := writeConfig(t, `
[qbittorrent]
url = "http://qbit.local:8080"
passwordFile = "`+filepath.ToSlash(secretPath)+`"
`)

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Config.QBittorrent.Password, "password read from file and trimmed")
}

func TestConfigInlinePasswordWinsOverFile(t *testing.T) {
	configPath := writeConfig(t, `
[qbittorrent]
url = "http://qbit.local:8080"
password = "inline"
passwordFile = "/does/not/exist"
`)

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, "inline", cfg.Config.QBittorrent.Password)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name: "invalid_torrent_label",
			content: `
[qbittorrent]
url = "http://qbit.local:8080"

[metrics]
torrentLabel = "tracker"
`,
			errMsg: "torrentLabel",
		},
		{
			name: "refresh_interval_too_small",
			content: `
[qbittorrent]
url = "http://qbit.local:8080"

[metrics]
refreshInterval = 0
`,
			errMsg: "refreshInterval",
		},
		{
			name: "missing_url",
			content: `
[qbittorrent]
url = ""
`,
			errMsg: "qbittorrent.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.content)

			_, err := New(configPath)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigGeneratedWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	cfg, err := New(tmpDir)
	require.NoError(t, err)

	assert.FileExists(t, configPath)
	assert.Equal(t, 8090, cfg.Config.Port)
}
