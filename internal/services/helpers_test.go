package services

import (
	"testing"

	"github.com/batyrai/backend/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB returns a migrated in-memory database. A single connection
// keeps every query on the same in-memory instance.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func usageRecord(t *testing.T, db *gorm.DB, userID int64) *models.UsageRecord {
	t.Helper()
	var rec models.UsageRecord
	if err := db.Where("user_id = ?", userID).First(&rec).Error; err != nil {
		t.Fatalf("usage record %d: %v", userID, err)
	}
	return &rec
}
