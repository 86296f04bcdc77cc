package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product groups the purchasable variants a shop sells.
type Product struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ShopID    uuid.UUID        `gorm:"column:shop_id;type:uuid;not null;index"`
	Name      string           `gorm:"column:name;not null"`
	Variants  []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
