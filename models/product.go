package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the local inventory item this service reconciles against the
// warehouse feed. Identifier fields may be empty or hold placeholder text
// entered by operators; validity is decided by the sync engine, not here.
type Product struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Sku            string          `gorm:"index;size:100" json:"sku"`
	Barcode        string          `gorm:"index;size:100" json:"barcode"`
	Brand          string          `gorm:"size:100" json:"brand"`
	QuantityOnHand decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_on_hand"`
	IsStockable    bool            `gorm:"not null;default:true" json:"is_stockable"`
	IsPublished    bool            `gorm:"not null;default:false" json:"is_published"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func CountProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&Product{}).Count(&total).Error
	return total, err
}

// ListProductsPage returns one page of products in stable id order so the
// chunked driver can resume deterministically across batches.
func ListProductsPage(ctx context.Context, db *gorm.DB, offset int, limit int) ([]Product, error) {
	var products []Product
	err := db.WithContext(ctx).
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&products).Error
	return products, err
}

// SearchProductsBySkuFragments narrows relaxed-SKU candidates with LIKE on the
// head and tail of the normalized key, so the caller only normalize-compares a
// bounded set instead of scanning the whole table.
func SearchProductsBySkuFragments(ctx context.Context, db *gorm.DB, head string, tail string, limit int) ([]Product, error) {
	var products []Product
	err := db.WithContext(ctx).
		Where("sku LIKE ? AND sku LIKE ?", "%"+head+"%", "%"+tail+"%").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func FindProductBySkuExact(ctx context.Context, db *gorm.DB, sku string) (*Product, error) {
	var product Product
	err := db.WithContext(ctx).Where("sku = ?", sku).Take(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}
