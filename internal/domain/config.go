package domain

// Config represents the application configuration
type Config struct {
	Host         string       `toml:"host" mapstructure:"host"`
	Port         int          `toml:"port" mapstructure:"port"`
	LogLevel     string       `toml:"logLevel" mapstructure:"logLevel"`
	LogPath      string       `toml:"logPath" mapstructure:"logPath"`
	QBittorrent  QBittorrent  `toml:"qbittorrent" mapstructure:"qbittorrent"`
	Metrics      Metrics      `toml:"metrics" mapstructure:"metrics"`
	HTTPTimeouts HTTPTimeouts `toml:"httpTimeouts" mapstructure:"httpTimeouts"`
}

// QBittorrent represents the upstream qBittorrent Web API connection settings
type QBittorrent struct {
	URL           string `toml:"url" mapstructure:"url"`
	Username      string `toml:"username" mapstructure:"username"`
	Password      string `toml:"password" mapstructure:"password"`
	PasswordFile  string `toml:"passwordFile" mapstructure:"passwordFile"`
	BasicUser     string `toml:"basicUser" mapstructure:"basicUser"`
	BasicPassword string `toml:"basicPassword" mapstructure:"basicPassword"`
	Timeout       int    `toml:"timeout" mapstructure:"timeout"` // seconds
}

// Metrics represents the exporter behavior settings
type Metrics struct {
	Prefix          string `toml:"prefix" mapstructure:"prefix"`
	RefreshInterval int    `toml:"refreshInterval" mapstructure:"refreshInterval"` // seconds, minimum age between upstream refreshes
	TorrentLabel    string `toml:"torrentLabel" mapstructure:"torrentLabel"`       // "hash" or "name"
	ExportPeers     bool   `toml:"exportPeers" mapstructure:"exportPeers"`
}

// HTTPTimeouts represents HTTP server timeout configuration
type HTTPTimeouts struct {
	ReadTimeout  int `toml:"readTimeout" mapstructure:"readTimeout"`   // seconds
	WriteTimeout int `toml:"writeTimeout" mapstructure:"writeTimeout"` // seconds
	IdleTimeout  int `toml:"idleTimeout" mapstructure:"idleTimeout"`   // seconds
}

// TorrentLabelHash and TorrentLabelName select which torrent property is used
// as the per-torrent metric label value. Names are not guaranteed unique and
// can blow up label cardinality, so hash is the default.
const (
	TorrentLabelHash = "hash"
	TorrentLabelName = "name"
)
