package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryAdjustment records every stock write the sync engine performs.
// Stock levels are never decremented in place; each change is an adjustment
// row plus the resulting on-hand value, so the ledger stays auditable.
type InventoryAdjustment struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ProductId   int             `gorm:"index;not null" json:"product_id"`
	SyncRunId   uint            `gorm:"index" json:"sync_run_id"`
	PreviousQty decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"previous_qty"`
	NewQty      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"new_qty"`
	Reason      string          `gorm:"size:255" json:"reason"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ApplyInventoryAdjustment writes the adjustment row and the new on-hand
// quantity inside the caller's transaction.
func ApplyInventoryAdjustment(tx *gorm.DB, productId int, previousQty decimal.Decimal, newQty decimal.Decimal, syncRunId uint, reason string) error {
	adjustment := InventoryAdjustment{
		ProductId:   productId,
		SyncRunId:   syncRunId,
		PreviousQty: previousQty,
		NewQty:      newQty,
		Reason:      reason,
	}
	if err := tx.Create(&adjustment).Error; err != nil {
		return err
	}
	return tx.Model(&Product{}).
		Where("id = ?", productId).
		Update("quantity_on_hand", newQty).Error
}
