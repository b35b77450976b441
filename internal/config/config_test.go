package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coldvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
s3:
  bucket: lab-archive-bucket
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lab-archive-bucket", cfg.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Equal(t, "STANDARD_IA", cfg.S3.StorageClass)
	assert.Equal(t, 2*time.Minute, cfg.Restore.PollInterval)
	assert.Equal(t, 48*time.Hour, cfg.Restore.Timeout)
	assert.Equal(t, 7, cfg.Restore.Days)
	assert.Equal(t, "Bulk", cfg.Restore.Tier)
	assert.NotEmpty(t, cfg.Owner)
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
s3:
  bucket: lab-archive-bucket
  region: us-west-2
  storage_class: DEEP_ARCHIVE
globus:
  endpoint: ep-1234
  archive_path: /archive/lab
database: /var/lib/coldvault/index.db
owner: labadmin
restore:
  poll_interval: 30s
  timeout: 12h
  days: 3
  tier: Standard
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", cfg.S3.Region)
	assert.Equal(t, "DEEP_ARCHIVE", cfg.S3.StorageClass)
	assert.Equal(t, "ep-1234", cfg.Globus.Endpoint)
	assert.Equal(t, "/archive/lab", cfg.Globus.ArchivePath)
	assert.Equal(t, "/var/lib/coldvault/index.db", cfg.Database)
	assert.Equal(t, "labadmin", cfg.Owner)
	assert.Equal(t, 30*time.Second, cfg.Restore.PollInterval)
	assert.Equal(t, 3, cfg.Restore.Days)
}

func TestLoadRejectsUnknownStorageClass(t *testing.T) {
	path := writeConfig(t, `
s3:
  storage_class: REDUCED_REDUNDANCY
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "storage class")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidStorageClass(t *testing.T) {
	assert.True(t, ValidStorageClass("STANDARD"))
	assert.True(t, ValidStorageClass("DEEP_ARCHIVE"))
	assert.False(t, ValidStorageClass("bulk"))
	assert.False(t, ValidStorageClass(""))
}
