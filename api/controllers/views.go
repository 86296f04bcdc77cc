package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
)

// Response projections for persisted entities. Models carry gorm tags only,
// so the wire shape is pinned here instead.

type OrderLineView struct {
	ID        uuid.UUID       `json:"id"`
	VariantID uuid.UUID       `json:"variant_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type StatusChangeView struct {
	Status    enums.OrderStatus `json:"status"`
	ChangedAt time.Time         `json:"changed_at"`
}

type OrderView struct {
	ID              uuid.UUID          `json:"id"`
	ShopID          uuid.UUID          `json:"shop_id"`
	Status          enums.OrderStatus  `json:"status"`
	TotalPrice      decimal.Decimal    `json:"total_price"`
	ShippingAddress string             `json:"shipping_address"`
	CustomerName    string             `json:"customer_name"`
	Phone           string             `json:"phone"`
	Note            *string            `json:"note,omitempty"`
	CancelReasonID  *uuid.UUID         `json:"cancel_reason_id,omitempty"`
	Lines           []OrderLineView    `json:"lines,omitempty"`
	StatusHistory   []StatusChangeView `json:"status_history,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

func newOrderView(order models.Order) OrderView {
	view := OrderView{
		ID:              order.ID,
		ShopID:          order.ShopID,
		Status:          order.Status,
		TotalPrice:      order.TotalPrice,
		ShippingAddress: order.ShippingAddress,
		CustomerName:    order.CustomerName,
		Phone:           order.Phone,
		Note:            order.Note,
		CancelReasonID:  order.CancelReasonID,
		CreatedAt:       order.CreatedAt,
	}
	for _, line := range order.Lines {
		view.Lines = append(view.Lines, OrderLineView{
			ID:        line.ID,
			VariantID: line.VariantID,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}
	for _, change := range order.StatusChanges {
		view.StatusHistory = append(view.StatusHistory, StatusChangeView{
			Status:    change.Status,
			ChangedAt: change.ChangedAt,
		})
	}
	return view
}

func newOrderViews(orders []models.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order))
	}
	return views
}

type PaymentDetailView struct {
	ID                  uuid.UUID                 `json:"id"`
	Status              enums.PaymentDetailStatus `json:"status"`
	Amount              decimal.Decimal           `json:"amount"`
	Method              enums.PaymentMethod       `json:"method"`
	ExternalTransaction *string                   `json:"external_transaction,omitempty"`
	CreatedAt           time.Time                 `json:"created_at"`
}

type PaymentView struct {
	ID          uuid.UUID           `json:"id"`
	OrderID     uuid.UUID           `json:"order_id"`
	Status      enums.PaymentStatus `json:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	ExpiresAt   time.Time           `json:"expires_at"`
	Details     []PaymentDetailView `json:"details,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

func newPaymentView(payment models.Payment) PaymentView {
	view := PaymentView{
		ID:          payment.ID,
		OrderID:     payment.OrderID,
		Status:      payment.Status,
		TotalAmount: payment.TotalAmount,
		ExpiresAt:   payment.ExpiresAt,
		CreatedAt:   payment.CreatedAt,
	}
	for _, detail := range payment.Details {
		view.Details = append(view.Details, PaymentDetailView{
			ID:                  detail.ID,
			Status:              detail.Status,
			Amount:              detail.Amount,
			Method:              detail.Method,
			ExternalTransaction: detail.ExternalTransaction,
			CreatedAt:           detail.CreatedAt,
		})
	}
	return view
}

type CancelReasonView struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	RefundRate  decimal.Decimal `json:"refund_rate"`
}

func newCancelReasonViews(reasons []models.CancelReason) []CancelReasonView {
	views := make([]CancelReasonView, 0, len(reasons))
	for _, reason := range reasons {
		views = append(views, CancelReasonView{
			ID:          reason.ID,
			Description: reason.Description,
			RefundRate:  reason.RefundRate,
		})
	}
	return views
}

type PromotionView struct {
	ID           uuid.UUID       `json:"id"`
	ShopID       uuid.UUID       `json:"shop_id"`
	Name         string          `json:"name"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	StartsAt     time.Time       `json:"starts_at"`
	EndsAt       time.Time       `json:"ends_at"`
}

func newPromotionViews(promos []models.Promotion) []PromotionView {
	views := make([]PromotionView, 0, len(promos))
	for _, promo := range promos {
		views = append(views, PromotionView{
			ID:           promo.ID,
			ShopID:       promo.ShopID,
			Name:         promo.Name,
			DiscountRate: promo.DiscountRate,
			StartsAt:     promo.StartsAt,
			EndsAt:       promo.EndsAt,
		})
	}
	return views
}

type CartLineCreatedView struct {
	ID        uuid.UUID `json:"id"`
	VariantID uuid.UUID `json:"variant_id"`
	Qty       int       `json:"qty"`
}
