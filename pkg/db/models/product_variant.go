package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductVariant is a specific purchasable configuration of a product with
// its own price and stock counts. AvailableQty never goes negative; stock is
// only mutated through the stock ledger's conditional updates.
type ProductVariant struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	ShopID       uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;index"`
	SKU          string          `gorm:"column:sku;not null;uniqueIndex"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	AvailableQty int             `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int             `gorm:"column:reserved_qty;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
