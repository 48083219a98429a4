package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for dfs.
type Config struct {
	BaseDir      string         `toml:"base_dir" validate:"required"`
	LogDir       string         `toml:"log_dir" validate:"required"`
	ReplicaCount int            `toml:"replica_count" validate:"gte=2"`
	Database     DatabaseConfig `toml:"database"`
	Peers        []PeerConfig   `toml:"peers" validate:"dive"`
	Server       ServerConfig   `toml:"server"`
	Session      SessionConfig  `toml:"session"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required,oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"` // only used for type=sqlite
}

// PeerConfig represents configuration for one storage peer.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type PeerConfig struct {
	Type string `toml:"type" validate:"required,oneof=memory filesystem s3 http"`
	ID   string `toml:"id" validate:"required"`

	// Capacity bounds the bytes a memory or s3 peer may hold; 0 means unbounded.
	Capacity int64 `toml:"capacity,omitempty" validate:"gte=0"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty" validate:"required_if=Type filesystem"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// HTTP-specific fields (only used when Type == "http")
	URL string `toml:"url,omitempty" validate:"required_if=Type http,omitempty,url"`

	// Timeout bounds each call to an s3 or http peer, e.g. "10s".
	Timeout string `toml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout. An empty Timeout yields 0 (the peer's default).
func (p PeerConfig) TimeoutDuration() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, fmt.Errorf("peer %s: invalid timeout %q: %w", p.ID, p.Timeout, err)
	}
	return d, nil
}

// ServerConfig configures the HTTP API served by "dfs serve".
type ServerConfig struct {
	Listen  string `toml:"listen" validate:"required"`
	Metrics bool   `toml:"metrics"` // expose /metrics
}

// SessionConfig configures login sessions.
type SessionConfig struct {
	TTL string `toml:"ttl" validate:"required"` // e.g. "24h"
}

// TTLDuration parses TTL.
func (s SessionConfig) TTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session ttl %q: %w", s.TTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session ttl must be positive, got %s", s.TTL)
	}
	return d, nil
}

// NewConfig creates a new Config rooted at baseDir with three local filesystem
// peers and defaults for everything else.
func NewConfig(baseDir string) *Config {
	peers := make([]PeerConfig, 0, 3)
	for _, id := range []string{"node1", "node2", "node3"} {
		peers = append(peers, PeerConfig{
			Type:   "filesystem",
			ID:     id,
			FSRoot: filepath.Join(baseDir, "peers", id),
		})
	}

	return &Config{
		BaseDir:      baseDir,
		LogDir:       filepath.Join(baseDir, "log"),
		ReplicaCount: 3,
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Peers: peers,
		Server: ServerConfig{
			Listen:  ":8080",
			Metrics: true,
		},
		Session: SessionConfig{TTL: "24h"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold S3 credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init validates cfg and writes it to a new config file at path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
