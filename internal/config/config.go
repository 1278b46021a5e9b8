// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/qbit-exporter/internal/domain"
)

// envPrefix is the prefix for environment variable overrides, e.g.
// QBIT_EXPORTER__PORT or QBIT_EXPORTER__QBITTORRENT_URL.
const envPrefix = "QBIT_EXPORTER__"

type AppConfig struct {
	Config *domain.Config
	viper  *viper.Viper
}

// New loads the configuration from the given path (a .toml file or a
// directory containing config.toml). An empty path uses the OS-specific
// default location; a missing file is generated with defaults.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		viper:  viper.New(),
		Config: &domain.Config{},
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.unmarshal(); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	c.watch()

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("host", "0.0.0.0")
	c.viper.SetDefault("port", 8090)
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")

	c.viper.SetDefault("qbittorrent.url", "http://localhost:8080")
	c.viper.SetDefault("qbittorrent.username", "admin")
	c.viper.SetDefault("qbittorrent.password", "")
	c.viper.SetDefault("qbittorrent.passwordFile", "")
	c.viper.SetDefault("qbittorrent.basicUser", "")
	c.viper.SetDefault("qbittorrent.basicPassword", "")
	c.viper.SetDefault("qbittorrent.timeout", 15)

	c.viper.SetDefault("metrics.prefix", "qbittorrent")
	c.viper.SetDefault("metrics.refreshInterval", 5)
	c.viper.SetDefault("metrics.torrentLabel", domain.TorrentLabelHash)
	c.viper.SetDefault("metrics.exportPeers", false)

	c.viper.SetDefault("httpTimeouts.readTimeout", 60)
	c.viper.SetDefault("httpTimeouts.writeTimeout", 120)
	c.viper.SetDefault("httpTimeouts.idleTimeout", 180)
}

func (c *AppConfig) load(configPath string) error {
	// Environment overrides beat file values, QBIT_EXPORTER__SECTION_KEY
	c.viper.SetEnvPrefix("QBIT_EXPORTER_")
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.viper.AutomaticEnv()

	var configFile string
	switch {
	case configPath == "":
		configFile = filepath.Join(GetDefaultConfigDir(), "config.toml")
	case strings.HasSuffix(strings.ToLower(configPath), ".toml"):
		configFile = configPath
	default:
		if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
			configFile = configPath
		} else {
			configFile = filepath.Join(configPath, "config.toml")
		}
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configFile); err != nil {
			return errors.Wrap(err, "failed to write default config file")
		}
		log.Info().Str("path", configFile).Msg("Generated default configuration file")
	}

	c.viper.SetConfigFile(configFile)
	if err := c.viper.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read config file %s", configFile)
	}

	return nil
}

func (c *AppConfig) unmarshal() error {
	if err := c.viper.Unmarshal(c.Config); err != nil {
		return errors.Wrap(err, "failed to unmarshal config")
	}

	// Secrets can live in a file next to the config instead of inline,
	// for use with docker/k8s secret mounts.
	if c.Config.QBittorrent.Password == "" && c.Config.QBittorrent.PasswordFile != "" {
		data, err := os.ReadFile(c.Config.QBittorrent.PasswordFile)
		if err != nil {
			return errors.Wrapf(err, "failed to read password file %s", c.Config.QBittorrent.PasswordFile)
		}
		c.Config.QBittorrent.Password = strings.TrimSpace(string(data))
	}

	return nil
}

func (c *AppConfig) validate() error {
	if c.Config.QBittorrent.URL == "" {
		return errors.New("qbittorrent.url must be set")
	}

	switch c.Config.Metrics.TorrentLabel {
	case domain.TorrentLabelHash, domain.TorrentLabelName:
	default:
		return errors.Errorf("metrics.torrentLabel must be %q or %q, got %q",
			domain.TorrentLabelHash, domain.TorrentLabelName, c.Config.Metrics.TorrentLabel)
	}

	if c.Config.Metrics.RefreshInterval < 1 {
		return errors.New("metrics.refreshInterval must be at least 1 second")
	}

	return nil
}

// watch reloads dynamic settings when the config file changes on disk.
// Only the log level is applied live; connection settings need a restart.
func (c *AppConfig) watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug().Str("file", e.Name).Msg("Config file changed")

		if err := c.viper.Unmarshal(c.Config); err != nil {
			log.Error().Err(err).Msg("Failed to reload config")
			return
		}

		c.ApplyLogConfig()
	})
	c.viper.WatchConfig()
}

// ApplyLogConfig configures the global zerolog logger from the current
// config values.
func (c *AppConfig) ApplyLogConfig() {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Config.LogLevel))
	if err != nil {
		log.Warn().Str("logLevel", c.Config.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.Config.LogPath != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   c.Config.LogPath,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		log.Logger = log.Output(zerolog.MultiLevelWriter(console, fileWriter))
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// RefreshInterval returns the minimum age between upstream refreshes.
func (c *AppConfig) RefreshInterval() time.Duration {
	return time.Duration(c.Config.Metrics.RefreshInterval) * time.Second
}

// UpstreamTimeout returns the per-refresh timeout against qBittorrent.
func (c *AppConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.Config.QBittorrent.Timeout) * time.Second
}

// GetDefaultConfigDir returns the OS-specific default config directory.
func GetDefaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "qbit-exporter")
	}
	return "."
}
