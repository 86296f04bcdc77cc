package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/enums"
)

// Payment tracks payment progress for an order. At most one non-terminal
// payment exists per order; TotalAmount equals the order total at creation.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Status      enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'Pending'"`
	TotalAmount decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ExpiresAt   time.Time           `gorm:"column:expires_at;not null"`
	Details     []PaymentDetail     `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
