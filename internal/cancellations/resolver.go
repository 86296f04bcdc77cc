package cancellations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
)

// Branch distinguishes how an eligible order leaves the happy path: goods
// still with the seller are cancelled, goods already shipped come back as a
// return.
type Branch string

const (
	BranchCancel Branch = "cancel"
	BranchReturn Branch = "return"
)

// Decision is the resolver's verdict for one order and reason pair. The
// refund amount is the order total scaled by the reason's refund rate,
// rounded to cents.
type Decision struct {
	Eligible          bool            `json:"eligible"`
	Branch            Branch          `json:"branch"`
	RefundAmount      decimal.Decimal `json:"refund_amount"`
	ReasonDescription string          `json:"reason_description"`
}

// Resolver answers whether an order can be cancelled or returned and what
// the refund would be. It never mutates the order.
type Resolver interface {
	Resolve(ctx context.Context, order *models.Order, reasonID uuid.UUID) (*Decision, error)
	ListReasons(ctx context.Context) ([]models.CancelReason, error)
}

type resolver struct {
	repo ReasonRepository
}

// NewResolver builds the cancel reason resolver.
func NewResolver(repo ReasonRepository) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("cancel reason repository required")
	}
	return &resolver{repo: repo}, nil
}

// Resolve validates the reason and quotes the refund for the order.
func (r *resolver) Resolve(ctx context.Context, order *models.Order, reasonID uuid.UUID) (*Decision, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.Newf(pkgerrors.CodeOrderClosed, "order %s is %s and accepts no cancellation", order.ID, order.Status)
	}
	if reasonID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCancelReason, "cancel reason is required")
	}

	reason, err := r.repo.FindByID(ctx, reasonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidCancelReason, "cancel reason %s not found", reasonID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cancel reason")
	}

	return &Decision{
		Eligible:          true,
		Branch:            branchFor(order.Status),
		RefundAmount:      order.TotalPrice.Mul(reason.RefundRate).Round(2),
		ReasonDescription: reason.Description,
	}, nil
}

// ListReasons returns the cancel reason catalog.
func (r *resolver) ListReasons(ctx context.Context) ([]models.CancelReason, error) {
	reasons, err := r.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cancel reasons")
	}
	return reasons, nil
}

// branchFor picks the exit path: orders that have not shipped are cancelled
// outright, everything at or past Shipped goes through the return flow.
func branchFor(status enums.OrderStatus) Branch {
	switch status {
	case enums.OrderStatusPending,
		enums.OrderStatusAwaitingPayment,
		enums.OrderStatusProcessing,
		enums.OrderStatusDelivering,
		enums.OrderStatusDeliveryFailed,
		enums.OrderStatusOnHold,
		enums.OrderStatusDeliveringRetry,
		enums.OrderStatusPaymentFailed:
		return BranchCancel
	default:
		return BranchReturn
	}
}
