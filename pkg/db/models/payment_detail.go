package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/enums"
)

// PaymentDetail records one payment attempt against a payment. Immutable once
// written except for status correction.
type PaymentDetail struct {
	ID                  uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID           uuid.UUID                 `gorm:"column:payment_id;type:uuid;not null;index"`
	Status              enums.PaymentDetailStatus `gorm:"column:status;type:text;not null"`
	Amount              decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	Method              enums.PaymentMethod       `gorm:"column:method;type:text;not null"`
	ExternalTransaction *string                   `gorm:"column:external_transaction"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *PaymentDetail) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
