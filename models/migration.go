package models

import (
	"log"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
)

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&Product{},
		&InventoryAdjustment{},
		&SyncRun{},
		&SyncLogEntry{},
		&UnpublishedProduct{},
		&MissingProduct{},
		&SyncSetting{},
	)
	if err != nil {
		log.Printf("auto migrate failed: %v", err)
	}
}
