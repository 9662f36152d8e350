package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables owned by the API.
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(&UsageRecord{}); err != nil {
		log.Printf("Migration failed: %v", err)
		return err
	}

	log.Println("Database migrations completed")
	return nil
}
