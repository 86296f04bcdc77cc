package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/internal/cancellations"
	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
	"github.com/shopora/shopora-backend/pkg/outbox"
	"github.com/shopora/shopora-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockMover releases or finalizes reserved stock as orders leave the happy
// path or ship.
type StockMover interface {
	Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

type cancelResolver interface {
	Resolve(ctx context.Context, order *models.Order, reasonID uuid.UUID) (*cancellations.Decision, error)
}

// Actor is the authenticated identity driving an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// TransitionInput carries one requested status change.
type TransitionInput struct {
	OrderID        uuid.UUID
	Target         enums.OrderStatus
	CancelReasonID *uuid.UUID
	Actor          Actor
}

// ListInput narrows an order listing for the calling actor.
type ListInput struct {
	Actor  Actor
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// ListResult is one page of orders plus the cursor for the next page.
type ListResult struct {
	Orders     []models.Order
	NextCursor string
}

// StatusChangedEvent is the outbox payload emitted on every transition.
type StatusChangedEvent struct {
	OrderID        uuid.UUID             `json:"order_id"`
	From           enums.OrderStatus     `json:"from"`
	To             enums.OrderStatus     `json:"to"`
	CancelReasonID *uuid.UUID            `json:"cancel_reason_id,omitempty"`
	RefundAmount   *decimal.Decimal      `json:"refund_amount,omitempty"`
	Branch         *cancellations.Branch `json:"branch,omitempty"`
}

// Service drives order lifecycle operations. TransitionInTx exists for
// collaborators that need a status change inside their own transaction, such
// as the payment expiry sweep.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	TransitionInTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	stock    StockMover
	resolver cancelResolver
	now      func() time.Time
}

// NewService builds the order state machine service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, stock StockMover, resolver cancelResolver) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock mover required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("cancel resolver required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		stock:    stock,
		resolver: resolver,
		now:      time.Now,
	}, nil
}

// Transition moves an order to the target status. The status update, the
// audit record, any stock movement and the outbox event commit in one
// transaction or not at all.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		result, terr = s.TransitionInTx(ctx, tx, input)
		return terr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransitionInTx applies one status change inside the caller's transaction.
func (s *service) TransitionInTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown order status %q", input.Target)
	}
	if input.Actor.UserID == uuid.Nil && input.Actor.Role != enums.ActorRoleSystem {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}

	repo := s.repo.WithTx(tx)

	order, err := repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if err := authorizeTransition(order, input); err != nil {
		return nil, err
	}

	if order.Status.IsTerminal() {
		return nil, pkgerrors.
			Newf(pkgerrors.CodeOrderClosed, "order %s is %s and accepts no transitions", order.ID, order.Status).
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	if !CanTransition(order.Status, input.Target) {
		return nil, pkgerrors.
			Newf(pkgerrors.CodeInvalidStatusTransition, "cannot transition order from %s to %s", order.Status, input.Target).
			WithDetails(map[string]any{
				"from": order.Status.String(),
				"to":   input.Target.String(),
			})
	}

	event := StatusChangedEvent{
		OrderID: order.ID,
		From:    order.Status,
		To:      input.Target,
	}

	updates := map[string]any{"status": input.Target}
	if isCancellationTarget(input.Target) {
		decision, err := s.resolveCancellation(ctx, order, input)
		if err != nil {
			return nil, err
		}
		if decision != nil {
			event.CancelReasonID = input.CancelReasonID
			event.RefundAmount = &decision.RefundAmount
			event.Branch = &decision.Branch
			if input.Target == enums.OrderStatusCanceled {
				updates["cancel_reason_id"] = *input.CancelReasonID
			}
		}
	}

	if err := s.moveStock(ctx, tx, repo, order, input.Target); err != nil {
		return nil, err
	}

	if err := repo.UpdateStatus(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	change := &models.StatusChange{
		OrderID:   order.ID,
		Status:    input.Target,
		ChangedAt: s.now().UTC(),
	}
	if err := repo.CreateStatusChange(ctx, change); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status change")
	}

	order.Status = input.Target
	if id, ok := updates["cancel_reason_id"].(uuid.UUID); ok {
		order.CancelReasonID = &id
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role.String()},
		Data:          event,
	}); err != nil {
		return nil, err
	}
	return order, nil
}

// Get returns an order with lines and status history. Customers only see
// their own orders.
func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindDetailed(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.Role.IsPrivileged() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return order, nil
}

// List pages orders newest first. Customers are scoped to their own orders;
// privileged roles see everything.
func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	filter := ListFilter{
		Status: input.Status,
		Cursor: cursor,
		Limit:  pagination.LimitWithBuffer(input.Limit),
	}
	if !input.Actor.Role.IsPrivileged() {
		userID := input.Actor.UserID
		if userID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
		}
		filter.UserID = &userID
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	result := &ListResult{Orders: rows}
	if len(rows) > limit {
		result.Orders = rows[:limit]
		last := result.Orders[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

func (s *service) resolveCancellation(ctx context.Context, order *models.Order, input TransitionInput) (*cancellations.Decision, error) {
	if input.CancelReasonID == nil {
		if input.Target == enums.OrderStatusCanceled {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidCancelReason, "cancel reason is required")
		}
		return nil, nil
	}
	return s.resolver.Resolve(ctx, order, *input.CancelReasonID)
}

// moveStock releases reservations when an order dies before shipping and
// commits them when it ships. Statuses past shipping hold no reservations,
// so re-entering Shipped after a denied refund moves nothing.
func (s *service) moveStock(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, target enums.OrderStatus) error {
	if !stockHeld(order.Status) {
		return nil
	}

	var move func(context.Context, *gorm.DB, uuid.UUID, int) error
	switch target {
	case enums.OrderStatusCanceled, enums.OrderStatusPaymentFailed:
		move = s.stock.Release
	case enums.OrderStatusShipped:
		move = s.stock.Commit
	default:
		return nil
	}

	lines, err := repo.FindLines(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	for _, line := range lines {
		if err := move(ctx, tx, line.VariantID, line.Qty); err != nil {
			return err
		}
	}
	return nil
}

func authorizeTransition(order *models.Order, input TransitionInput) error {
	if input.Actor.Role.IsPrivileged() {
		return nil
	}
	if !isCancellationTarget(input.Target) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "status change requires a privileged role")
	}
	if order.UserID != input.Actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}
	return nil
}
