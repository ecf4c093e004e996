package db

import (
	"github.com/buzzposter/buzzposter/internal/db/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens the SQLite database and runs migrations.
func Init(dbPath string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models
	if err := gdb.AutoMigrate(&models.User{}, &models.UsageLog{}); err != nil {
		return nil, err
	}

	return gdb, nil
}
