package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/internal/orders"
	"github.com/shopora/shopora-backend/pkg/db"
	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
	"github.com/shopora/shopora-backend/pkg/logger"
	"github.com/shopora/shopora-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderTransitioner interface {
	TransitionInTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

// DetailInput records one payment attempt.
type DetailInput struct {
	Status              enums.PaymentDetailStatus
	Amount              decimal.Decimal
	Method              enums.PaymentMethod
	ExternalTransaction *string
}

// PaymentCreatedEvent is emitted when a payment window opens.
type PaymentCreatedEvent struct {
	PaymentID   uuid.UUID       `json:"payment_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// PaymentExpiredEvent is emitted when the sweep expires a payment.
type PaymentExpiredEvent struct {
	PaymentID uuid.UUID `json:"payment_id"`
	OrderID   uuid.UUID `json:"order_id"`
}

// Service manages the payment lifecycle for orders.
type Service interface {
	CreatePayment(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Payment, error)
	CreatePaymentDetail(ctx context.Context, paymentID uuid.UUID, input DetailInput) (*models.PaymentDetail, error)
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Payment, error)
	CheckAndExpirePayments(ctx context.Context) (int, error)
}

type service struct {
	repo           Repository
	ordersRepo     orders.Repository
	transitions    orderTransitioner
	tx             txRunner
	outbox         outboxPublisher
	logg           *logger.Logger
	expirationDays int
	now            func() time.Time
}

// NewService builds the payment lifecycle service. expirationDays bounds how
// long a payment stays open before the sweep expires it.
func NewService(repo Repository, ordersRepo orders.Repository, transitions orderTransitioner, tx txRunner, publisher outboxPublisher, logg *logger.Logger, expirationDays int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if transitions == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if expirationDays <= 0 {
		return nil, fmt.Errorf("expiration days must be positive")
	}
	return &service{
		repo:           repo,
		ordersRepo:     ordersRepo,
		transitions:    transitions,
		tx:             tx,
		outbox:         publisher,
		logg:           logg,
		expirationDays: expirationDays,
		now:            time.Now,
	}, nil
}

// CreatePayment opens a payment window for a payable order. The payment
// amount is pinned to the order total and the order moves to Awaiting
// Payment in the same transaction.
func (s *service) CreatePayment(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var created *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		order, err := ordersRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !actor.Role.IsPrivileged() && order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusAwaitingPayment {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %s is %s and cannot be paid", order.ID, order.Status)
		}

		existing, err := repo.FindActiveByOrder(ctx, orderID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payment")
		}
		if existing != nil {
			return pkgerrors.
				Newf(pkgerrors.CodePaymentAlreadyExists, "order %s already has payment %s", orderID, existing.ID).
				WithDetails(map[string]any{"payment_id": existing.ID.String()})
		}

		payment := &models.Payment{
			OrderID:     orderID,
			Status:      enums.PaymentStatusPending,
			TotalAmount: order.TotalPrice,
			ExpiresAt:   s.now().UTC().AddDate(0, 0, s.expirationDays),
		}
		if _, err := repo.Create(ctx, payment); err != nil {
			// A concurrent create can pass the read check and lose the race
			// against the active-payment unique index.
			if db.IsUniqueViolation(err, "ux_payments_order_active") {
				return pkgerrors.Wrap(pkgerrors.CodePaymentAlreadyExists, err, "order already has an active payment")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		if order.Status == enums.OrderStatusPending {
			if _, err := s.transitions.TransitionInTx(ctx, tx, orders.TransitionInput{
				OrderID: orderID,
				Target:  enums.OrderStatusAwaitingPayment,
				Actor:   orders.Actor{Role: enums.ActorRoleSystem},
			}); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCreated,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: PaymentCreatedEvent{
				PaymentID:   payment.ID,
				OrderID:     orderID,
				TotalAmount: payment.TotalAmount,
				ExpiresAt:   payment.ExpiresAt,
			},
		}); err != nil {
			return err
		}

		created = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreatePaymentDetail records a payment attempt. When successful attempts
// cover the payment total, the payment flips to Paid.
func (s *service) CreatePaymentDetail(ctx context.Context, paymentID uuid.UUID, input DetailInput) (*models.PaymentDetail, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown detail status %q", input.Status)
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown payment method %q", input.Method)
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var created *models.PaymentDetail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payment, err := repo.FindByID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if !payment.Status.AcceptsAttempts() {
			return pkgerrors.
				Newf(pkgerrors.CodeInvalidPaymentStatus, "payment %s is %s and accepts no attempts", payment.ID, payment.Status).
				WithDetails(map[string]any{"status": payment.Status.String()})
		}

		detail := &models.PaymentDetail{
			PaymentID:           paymentID,
			Status:              input.Status,
			Amount:              input.Amount,
			Method:              input.Method,
			ExternalTransaction: input.ExternalTransaction,
		}
		if err := repo.CreateDetail(ctx, detail); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment detail")
		}

		if input.Status == enums.PaymentDetailStatusSuccess {
			raw, err := repo.SumSuccessfulDetails(ctx, paymentID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum payment details")
			}
			paid, err := decimal.NewFromString(raw)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse detail sum")
			}
			if paid.GreaterThanOrEqual(payment.TotalAmount) {
				if _, err := repo.MarkPaid(ctx, paymentID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
				}
			}
		}

		created = detail
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetPaymentByOrderID returns the order's latest payment with its attempts.
func (s *service) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID, actor orders.Actor) (*models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.Role.IsPrivileged() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
	}

	payment, err := s.repo.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// CheckAndExpirePayments expires overdue pending payments. Each payment is
// handled in its own transaction so one poisoned row never aborts the batch;
// failures are logged and aggregated. Returns how many payments expired.
func (s *service) CheckAndExpirePayments(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpiredPending(ctx, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired payments")
	}

	expired := 0
	var errs error
	for _, id := range ids {
		if err := s.expireOne(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payment %s: %w", id, err))
			if s.logg != nil {
				s.logg.Error(ctx, "expire payment failed", err)
			}
			continue
		}
		expired++
	}
	return expired, errs
}

// itemTimeout bounds each expiry so one hung transaction cannot stall the
// whole sweep.
const itemTimeout = 30 * time.Second

func (s *service) expireOne(ctx context.Context, paymentID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, itemTimeout)
	defer cancel()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		flipped, err := repo.MarkExpired(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment expired")
		}
		if !flipped {
			// Another sweep or a successful attempt won the race.
			return nil
		}

		payment, err := repo.FindByID(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		order, err := s.ordersRepo.WithTx(tx).FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusAwaitingPayment {
			if _, err := s.transitions.TransitionInTx(ctx, tx, orders.TransitionInput{
				OrderID: order.ID,
				Target:  enums.OrderStatusPaymentFailed,
				Actor:   orders.Actor{Role: enums.ActorRoleSystem},
			}); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentExpired,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem.String()},
			Data: PaymentExpiredEvent{
				PaymentID: payment.ID,
				OrderID:   payment.OrderID,
			},
		})
	})
}
