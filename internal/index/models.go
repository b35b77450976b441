package index

import "time"

// ArchiveRecord is one (manifest, file) pair in the queryable index.
// The manifest's file list is exploded into rows sharing the scalar
// fields, so "which archive contains file X" is a single query with no
// sidecar deserialization. Record is the auto-increment row identity,
// separate from the archive's own id.
type ArchiveRecord struct {
	Record            uint      `gorm:"primaryKey;autoIncrement"`
	ArchiveID         string    `gorm:"size:64;index"`
	Timestamp         time.Time
	Location          string `gorm:"size:32"`
	Filename          string `gorm:"size:255"`
	LocalPath         string `gorm:"size:1024"`
	ArchivePath       string `gorm:"size:1024"`
	File              string `gorm:"size:1024;index"`
	Size              int64
	Fingerprint       string `gorm:"size:64"`
	BundleFingerprint string `gorm:"size:64"`
	Owner             string `gorm:"size:191"`
}
