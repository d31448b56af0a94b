// Package config handles configuration for the file host, including
// defaults, JSON overlay, environment, command-line flags and validation.
package config

import (
	"time"
)

// Config holds runtime settings for the dekinai server. It is immutable once
// LoadConfig returns.
//
// Fields:
//   - ListenAddr: TCP bind address for the HTTP API; empty disables TCP.
//   - UnixSocket: optional unix socket path for the HTTP API.
//   - OutputDir: directory receiving uploaded blobs (local backend).
//   - DatabaseDSN: "sqlite://path" or a PostgreSQL URL (pgx).
//   - Password: optional global upload password, checked against X-Api-Key.
//   - Blacklist: lowercased extensions refused on upload.
//   - MaxUploadSize: request body limit in bytes, 0 means unlimited.
//   - HashAlgorithm / MaxReserveAttempts: secret hashing and allocator policy.
//   - StorageBackend: "local" or "s3"; S3* fields configure the latter.
//   - HealthAddrGRPC: bind address of the gRPC health service; empty disables it.
type Config struct {
	ListenAddr          string
	UnixSocket          string
	OutputDir           string
	DatabaseDSN         string
	DBPoolSize          int
	Password            string
	PromptPassword      bool
	Blacklist           []string
	MaxUploadSize       int64
	HashAlgorithm       string
	MaxReserveAttempts  int
	StorageBackend      string
	S3BaseEndpoint      string
	S3Bucket            string
	S3Region            string
	S3AccessKey         string
	S3SecretKey         string
	HealthAddrGRPC      string
	HealthCheckInterval time.Duration
	LogLevel            string
	LogFormat           string
}

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// LoadDefaults populates Config with defaults matching a single-host setup:
// local disk next to the working directory and an embedded SQLite ledger.
func (c *Config) LoadDefaults() {
	c.ListenAddr = "127.0.0.1:54298"
	c.OutputDir = "."
	c.DatabaseDSN = "sqlite://./dekinai.sqlite"
	c.HashAlgorithm = "pbkdf2"
	c.MaxReserveAttempts = 256
	c.StorageBackend = BackendLocal
	c.S3Region = "us-east-1"
	c.HealthCheckInterval = 10 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
// Blacklist entries are normalised and, when requested, the password is read
// from the terminal. Parse failures panic; call Validate for semantic checks.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	cfg.Blacklist = NormalizeBlacklist(cfg.Blacklist)

	if cfg.PromptPassword {
		if err := promptPassword(cfg); err != nil {
			panic(err)
		}
	}

	return cfg
}
