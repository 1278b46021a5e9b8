// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const defaultConfigTemplate = `# config.toml - qbit-exporter

# Hostname / IP the exporter listens on
#
host = "0.0.0.0"

# Port the exporter listens on
#
port = 8090

# Log level
#
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
#
logLevel = "INFO"

# Log path
#
# Optional. Logs to stderr when empty, rotated file otherwise.
#
#logPath = "log/qbit-exporter.log"

[qbittorrent]
# Base URL of the qBittorrent Web UI
#
url = "http://localhost:8080"

# Web UI credentials
#
username = "admin"
password = ""

# Optional. Read the password from a file instead, e.g. a mounted secret.
#
#passwordFile = "/run/secrets/qbittorrent_password"

# Optional HTTP basic auth in front of the Web UI (reverse proxy)
#
#basicUser = ""
#basicPassword = ""

# Request timeout against qBittorrent in seconds. A refresh exceeding it
# counts as unreachable.
#
timeout = 15

[metrics]
# Metric name prefix
#
prefix = "qbittorrent"

# Minimum age in seconds between refreshes against qBittorrent. Scrapes
# within this window are served from cache.
#
refreshInterval = 5

# Per-torrent label value: "hash" or "name". Names are not unique and can
# blow up label cardinality.
#
torrentLabel = "hash"

# Export per-peer metrics. High cardinality, off by default.
#
exportPeers = false

[httpTimeouts]
readTimeout = 60
writeTimeout = 120
idleTimeout = 180
`

// WriteDefaultConfig writes the default configuration file to the given
// path. Existing files are never overwritten.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create config directory %s", filepath.Dir(path))
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", path)
	}

	return nil
}
