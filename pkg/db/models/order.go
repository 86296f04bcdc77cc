package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/enums"
)

// Order is the per-shop order produced by checkout. It is never physically
// deleted; its lifecycle is carried entirely by Status, with every change
// mirrored into the append-only StatusChanges audit trail.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	ShopID          uuid.UUID         `gorm:"column:shop_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'Pending'"`
	TotalPrice      decimal.Decimal   `gorm:"column:total_price;type:numeric(12,2);not null"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	CustomerName    string            `gorm:"column:customer_name;not null"`
	Phone           string            `gorm:"column:phone;not null"`
	Note            *string           `gorm:"column:note"`
	CancelReasonID  *uuid.UUID        `gorm:"column:cancel_reason_id;type:uuid"`
	Lines           []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusChanges   []StatusChange    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
