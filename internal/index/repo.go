package index

import (
	"gorm.io/gorm"

	"coldvault/internal/manifest"
)

type ArchiveRepository struct {
	db *gorm.DB
}

func NewArchiveRepository(db *gorm.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Insert mirrors a manifest into the index, one row per file. An
// overwrite operation replaces the rows carrying the reused archive id
// so the index never shows two generations of the same archive.
func (r *ArchiveRepository) Insert(m *manifest.Manifest) error {
	rows := make([]ArchiveRecord, 0, len(m.Files))
	for _, f := range m.Files {
		rows = append(rows, ArchiveRecord{
			ArchiveID:         m.ID,
			Timestamp:         m.Timestamp,
			Location:          m.Location,
			Filename:          m.Filename,
			LocalPath:         m.LocalPath,
			ArchivePath:       m.ArchivePath,
			File:              f.Path,
			Size:              f.Size,
			Fingerprint:       f.Fingerprint,
			BundleFingerprint: m.BundleFingerprint,
			Owner:             m.Owner,
		})
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("archive_id = ?", m.ID).Delete(&ArchiveRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
}

// All returns every index row, oldest archive first.
func (r *ArchiveRepository) All() ([]ArchiveRecord, error) {
	var out []ArchiveRecord
	if err := r.db.Order("record ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SearchFile returns rows whose archived file path contains substr.
func (r *ArchiveRepository) SearchFile(substr string) ([]ArchiveRecord, error) {
	var out []ArchiveRecord
	if err := r.db.
		Where("file LIKE ?", "%"+substr+"%").
		Order("record ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
