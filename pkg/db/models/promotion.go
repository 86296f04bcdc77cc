package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/enums"
)

// Promotion is a time-bounded shop discount. The cron worker flips promotions
// past EndsAt to Inactive.
type Promotion struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ShopID       uuid.UUID             `gorm:"column:shop_id;type:uuid;not null;index"`
	Name         string                `gorm:"column:name;not null"`
	DiscountRate decimal.Decimal       `gorm:"column:discount_rate;type:numeric(3,2);not null"`
	StartsAt     time.Time             `gorm:"column:starts_at;not null"`
	EndsAt       time.Time             `gorm:"column:ends_at;not null"`
	Status       enums.PromotionStatus `gorm:"column:status;type:text;not null;default:'Active'"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Promotion) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
