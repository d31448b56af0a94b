package config

import "os"

const (
	EnvPassword    = "DEKINAI_PASSWORD"
	EnvS3AccessKey = "DEKINAI_S3_ACCESS_KEY"
	EnvS3SecretKey = "DEKINAI_S3_SECRET_KEY"
)

// parseEnv overlays secrets that should not appear in process listings.
// Unset or empty variables leave the current value.
func parseEnv(config *Config) {
	setString(&config.Password, os.Getenv(EnvPassword))
	setString(&config.S3AccessKey, os.Getenv(EnvS3AccessKey))
	setString(&config.S3SecretKey, os.Getenv(EnvS3SecretKey))
}
