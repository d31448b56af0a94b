package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/docker/go-units"

	"github.com/dmitrijs2005/dekinai/internal/flagx"
)

// JsonConfig is the on-disk form of Config. Sizes and durations are strings
// ("25MB", "30s"); zero values leave the corresponding setting untouched.
type JsonConfig struct {
	ListenAddr          string   `json:"listen_addr"`
	UnixSocket          string   `json:"unix_socket"`
	OutputDir           string   `json:"output_dir"`
	DatabaseDSN         string   `json:"database_dsn"`
	DBPoolSize          int      `json:"db_pool_size"`
	Password            string   `json:"password"`
	Blacklist           []string `json:"blacklist"`
	MaxUploadSize       string   `json:"max_upload_size"`
	HashAlgorithm       string   `json:"hash_algorithm"`
	MaxReserveAttempts  int      `json:"max_reserve_attempts"`
	StorageBackend      string   `json:"storage_backend"`
	S3BaseEndpoint      string   `json:"s3_base_endpoint"`
	S3Bucket            string   `json:"s3_bucket"`
	S3Region            string   `json:"s3_region"`
	S3AccessKey         string   `json:"s3_access_key"`
	S3SecretKey         string   `json:"s3_secret_key"`
	HealthAddrGRPC      string   `json:"health_addr_grpc"`
	HealthCheckInterval string   `json:"health_check_interval"`
	LogLevel            string   `json:"log_level"`
	LogFormat           string   `json:"log_format"`
}

// parseJson loads configuration values from the JSON file named by -c or
// -config. Without either flag nothing is loaded. Unreadable files, invalid
// JSON and malformed sizes or durations panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.UnixSocket, c.UnixSocket)
	setString(&config.OutputDir, c.OutputDir)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.Password, c.Password)
	setString(&config.HashAlgorithm, c.HashAlgorithm)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.HealthAddrGRPC, c.HealthAddrGRPC)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	if c.DBPoolSize != 0 {
		config.DBPoolSize = c.DBPoolSize
	}
	if c.MaxReserveAttempts != 0 {
		config.MaxReserveAttempts = c.MaxReserveAttempts
	}
	if len(c.Blacklist) > 0 {
		config.Blacklist = c.Blacklist
	}

	if c.MaxUploadSize != "" {
		size, err := ParseSize(c.MaxUploadSize)
		if err != nil {
			panic(err)
		}
		config.MaxUploadSize = size
	}

	if c.HealthCheckInterval != "" {
		d, err := time.ParseDuration(c.HealthCheckInterval)
		if err != nil {
			panic(err)
		}
		config.HealthCheckInterval = d
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ParseSize converts a human readable size ("512KB", "25MiB", "1g") into
// bytes using binary multiples. "0" or "" mean unlimited.
func ParseSize(s string) (int64, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	return units.RAMInBytes(s)
}
