package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CancelReason is a catalog entry describing why an order was cancelled and
// what fraction of the total is refunded. RefundRate stays within [0,1].
type CancelReason struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Description string          `gorm:"column:description;not null"`
	RefundRate  decimal.Decimal `gorm:"column:refund_rate;type:numeric(3,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CancelReason) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
