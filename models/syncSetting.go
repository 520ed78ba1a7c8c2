package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const DefaultAllowedPrefixes = "GN,PD,PB,PP,LVL,LP,PW"

// SyncSetting is the single settings row behind the sync control panel.
// The worker reads it once at run start into an explicit config snapshot;
// nothing inside the engine re-reads it mid-run.
type SyncSetting struct {
	ID                    uint      `gorm:"primary_key" json:"id"`
	FilterMissingProducts bool      `gorm:"not null;default:false" json:"filter_missing_products"`
	AllowedPrefixes       string    `gorm:"size:255" json:"allowed_prefixes"`
	NotifyEnabled         bool      `gorm:"not null;default:true" json:"notify_enabled"`
	RecipientEmail        string    `gorm:"size:255" json:"recipient_email"`
	ChunkSize             int       `gorm:"not null;default:100" json:"chunk_size"`
	MissingRetentionHours int       `gorm:"not null;default:24" json:"missing_retention_hours"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetSyncSetting returns the settings row, creating the default one on first use.
func GetSyncSetting(ctx context.Context, db *gorm.DB) (*SyncSetting, error) {
	var setting SyncSetting
	err := db.WithContext(ctx).Order("id").Take(&setting).Error
	if err == nil {
		return &setting, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	setting = SyncSetting{
		AllowedPrefixes:       DefaultAllowedPrefixes,
		NotifyEnabled:         true,
		ChunkSize:             100,
		MissingRetentionHours: 24,
	}
	if err := db.WithContext(ctx).Create(&setting).Error; err != nil {
		return nil, err
	}
	return &setting, nil
}
