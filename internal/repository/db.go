package repository

import (
	"fmt"

	"github.com/safenestapp/safenest/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects the device-local SQLite database and migrates the schema.
// Pass ":memory:" for an ephemeral database in tests.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local db: %w", err)
	}

	if err := db.AutoMigrate(
		&model.QueueAction{},
		&model.CacheEntry{},
		&model.SessionState{},
	); err != nil {
		return nil, fmt.Errorf("migrate local db: %w", err)
	}
	return db, nil
}
