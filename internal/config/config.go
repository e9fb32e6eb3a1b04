package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CaptureConfig holds the settings for live packet capture.
type CaptureConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Interface   string `yaml:"interface"`
	SnapshotLen int32  `yaml:"snapshot_len"`
	Promiscuous bool   `yaml:"promiscuous"`
	BPFFilter   string `yaml:"bpf_filter"`
}

// ProbeConfig holds the NATS transport settings for remote probes.
type ProbeConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// EngineConfig holds the settings for the session tracking engine.
// Durations are stored as strings and parsed with time.ParseDuration.
type EngineConfig struct {
	NumShards           uint32 `yaml:"num_shards"`
	MaxSessions         int    `yaml:"max_sessions"`
	IdleTimeout         string `yaml:"idle_timeout"`
	SweepInterval       string `yaml:"sweep_interval"`
	HistorySize         int    `yaml:"history_size"`
	HistoryWindow       string `yaml:"history_window"`
	SizeOfPacketChannel int    `yaml:"size_of_packet_channel"`
	FinalizedQueueSize  int    `yaml:"finalized_queue_size"`
}

// SQLiteConfig holds the settings for the SQLite sink.
type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ClickHouseConfig holds the connection settings for the ClickHouse sink.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StorageConfig groups the persistence sinks, the flush cadence and the
// retention window applied to the SQLite store. RetentionDays <= 0 disables
// cleanup.
type StorageConfig struct {
	FlushInterval string           `yaml:"flush_interval"`
	RetentionDays int              `yaml:"retention_days"`
	SQLite        SQLiteConfig     `yaml:"sqlite"`
	ClickHouse    ClickHouseConfig `yaml:"clickhouse"`
}

// GeoIPConfig holds the settings for the IP location lookup service.
type GeoIPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds the settings for the HTTP API server.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Probe   ProbeConfig   `yaml:"probe"`
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
	GeoIP   GeoIPConfig   `yaml:"geoip"`
	API     APIConfig     `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	return &cfg, nil
}
