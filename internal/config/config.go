package config

import (
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/viper"
)

type S3 struct {
	Bucket       string
	Region       string
	StorageClass string
}

type Globus struct {
	Endpoint    string
	ArchivePath string
}

type Restore struct {
	PollInterval time.Duration
	Timeout      time.Duration
	Days         int
	Tier         string
}

type Config struct {
	S3       S3
	Globus   Globus
	Database string // sqlite file path, or a mysql DSN containing "@tcp("
	Owner    string
	LogPath  string
	Restore  Restore
}

var storageClasses = map[string]bool{
	"STANDARD":     true,
	"STANDARD_IA":  true,
	"GLACIER_IR":   true,
	"GLACIER":      true,
	"DEEP_ARCHIVE": true,
}

// ValidStorageClass reports whether s is one of the storage classes the
// archive pipeline supports.
func ValidStorageClass(s string) bool { return storageClasses[s] }

// Load reads the YAML configuration at path and returns a fully
// defaulted Config. The result is passed explicitly into every
// component constructor; there is no package-level config state.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.storage_class", "STANDARD_IA")
	v.SetDefault("restore.poll_interval", "2m")
	v.SetDefault("restore.timeout", "48h")
	v.SetDefault("restore.days", 7)
	v.SetDefault("restore.tier", "Bulk")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{
		S3: S3{
			Bucket:       v.GetString("s3.bucket"),
			Region:       v.GetString("s3.region"),
			StorageClass: v.GetString("s3.storage_class"),
		},
		Globus: Globus{
			Endpoint:    v.GetString("globus.endpoint"),
			ArchivePath: v.GetString("globus.archive_path"),
		},
		Database: v.GetString("database"),
		Owner:    v.GetString("owner"),
		LogPath:  v.GetString("log_path"),
		Restore: Restore{
			PollInterval: v.GetDuration("restore.poll_interval"),
			Timeout:      v.GetDuration("restore.timeout"),
			Days:         v.GetInt("restore.days"),
			Tier:         v.GetString("restore.tier"),
		},
	}
	if cfg.Owner == "" {
		if u, err := user.Current(); err == nil {
			cfg.Owner = u.Username
		}
	}
	if !ValidStorageClass(cfg.S3.StorageClass) {
		return nil, fmt.Errorf("unsupported storage class %q", cfg.S3.StorageClass)
	}
	return cfg, nil
}
