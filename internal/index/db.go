package index

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the index database and migrates the schema. A
// location containing "@tcp(" is treated as a MySQL DSN for shared lab
// indexes; anything else is a local sqlite file.
func Open(location string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if strings.Contains(location, "@tcp(") {
		db, err = gorm.Open(mysql.Open(location), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(location), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", location, err)
	}
	if err := db.AutoMigrate(&ArchiveRecord{}); err != nil {
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return db, nil
}
