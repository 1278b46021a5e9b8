// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/qbit-exporter/internal/api"
	"github.com/autobrr/qbit-exporter/internal/collector"
	"github.com/autobrr/qbit-exporter/internal/config"
	"github.com/autobrr/qbit-exporter/internal/metrics"
	"github.com/autobrr/qbit-exporter/internal/qbittorrent"
)

var Version = "dev"

func main() {
	var rootCmd = &cobra.Command{
		Use:   "qbit-exporter",
		Short: "Prometheus exporter for qBittorrent",
		Long: `qbit-exporter - Prometheus exporter for a qBittorrent instance.

Polls the qBittorrent Web API on demand and serves global and per-torrent
transfer metrics in Prometheus exposition format.`,
	}

	// Initialize logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.Version = Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		logPath   string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the exporter",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/qbit-exporter/). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stderr)")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(Version, configDir, logPath)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of qbit-exporter",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the exporter.

If no --config-dir is specified, uses the OS-specific default location.

You can specify either a directory path or a direct file path:
- Directory: qbit-exporter generate-config --config-dir /path/to/config/
- File: qbit-exporter generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

type Application struct {
	version   string
	configDir string
	logPath   string
}

func NewApplication(version, configDir, logPath string) *Application {
	return &Application{
		version:   version,
		configDir: configDir,
		logPath:   logPath,
	}
}

func (app *Application) runServer() {
	log.Info().Str("version", app.version).Msg("Starting qbit-exporter")

	// Initialize configuration
	cfg, err := config.New(app.configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if app.logPath != "" {
		cfg.Config.LogPath = app.logPath
	}

	cfg.ApplyLogConfig()

	// Initialize the upstream client
	client, err := qbittorrent.NewClient(qbittorrent.Config{
		URL:       cfg.Config.QBittorrent.URL,
		Username:  cfg.Config.QBittorrent.Username,
		Password:  cfg.Config.QBittorrent.Password,
		BasicUser: cfg.Config.QBittorrent.BasicUser,
		BasicPass: cfg.Config.QBittorrent.BasicPassword,
		Timeout:   cfg.UpstreamTimeout(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize qBittorrent client")
	}

	// Initialize the collection pipeline
	snapshotCollector := collector.New(client, cfg.UpstreamTimeout(), cfg.Config.Metrics.ExportPeers)
	cache := collector.NewCache(snapshotCollector, cfg.RefreshInterval())

	metricsManager := metrics.NewManager(cache, cfg.Config.Metrics.Prefix, cfg.Config.Metrics.TorrentLabel)

	// Authenticate eagerly so credential problems show up in the logs at
	// startup instead of on the first scrape. Failure is not fatal, the
	// up metric reports it.
	go func() {
		loginCtx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout())
		defer cancel()

		if err := client.Login(loginCtx); err != nil {
			log.Warn().Err(err).Msg("Initial login to qBittorrent failed")
		} else {
			log.Info().Str("url", cfg.Config.QBittorrent.URL).Msg("Connected to qBittorrent")
		}
	}()

	// Initialize router
	deps := &api.Dependencies{
		MetricsManager: metricsManager,
	}
	router := api.NewRouter(deps)

	// Create HTTP server with configurable timeouts
	readTimeout := time.Duration(cfg.Config.HTTPTimeouts.ReadTimeout) * time.Second
	writeTimeout := time.Duration(cfg.Config.HTTPTimeouts.WriteTimeout) * time.Second
	idleTimeout := time.Duration(cfg.Config.HTTPTimeouts.IdleTimeout) * time.Second

	// Use defaults if not configured
	if readTimeout == 0 {
		readTimeout = 60 * time.Second
	}
	if writeTimeout == 0 {
		writeTimeout = 120 * time.Second
	}
	if idleTimeout == 0 {
		idleTimeout = 180 * time.Second
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port),
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", srv.Addr).
			Dur("readTimeout", readTimeout).
			Dur("writeTimeout", writeTimeout).
			Dur("idleTimeout", idleTimeout).
			Msg("Starting HTTP server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down exporter...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Exporter stopped")
}
