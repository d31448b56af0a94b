package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/dekinai/internal/cryptox"
	"github.com/dmitrijs2005/dekinai/internal/filex"
)

// NormalizeBlacklist lowercases entries, strips a leading dot and drops
// empties and duplicates.
func NormalizeBlacklist(in []string) []string {
	out := lo.Map(in, func(s string, _ int) string {
		return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	})
	return lo.Uniq(lo.Compact(out))
}

// Validate reports the first setting that prevents the server from starting.
func (c *Config) Validate() error {
	if c.ListenAddr == "" && c.UnixSocket == "" {
		return errors.New("no listener configured: set a TCP address or a unix socket")
	}

	if c.Password != "" && !isASCII(c.Password) {
		return errors.New("password must contain only ASCII characters")
	}

	if _, err := cryptox.NewHasher(c.HashAlgorithm); err != nil {
		return err
	}

	if c.MaxReserveAttempts <= 0 {
		return fmt.Errorf("max reserve attempts must be positive, got %d", c.MaxReserveAttempts)
	}

	if c.MaxUploadSize < 0 {
		return fmt.Errorf("max upload size must not be negative, got %d", c.MaxUploadSize)
	}

	switch c.StorageBackend {
	case BackendLocal:
		if !filex.IsDir(c.OutputDir) {
			return fmt.Errorf("output directory %q does not exist", c.OutputDir)
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return errors.New("s3 backend requires a bucket")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	if path, ok := strings.CutPrefix(c.DatabaseDSN, "sqlite://"); ok {
		dir := filepath.Dir(path)
		if !filex.IsDir(dir) {
			return fmt.Errorf("database directory %q does not exist", dir)
		}
	}

	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}
