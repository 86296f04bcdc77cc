package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/internal/cancellations"
	"github.com/shopora/shopora-backend/internal/orders"
	"github.com/shopora/shopora-backend/internal/stock"
	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
	"github.com/shopora/shopora-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestCreatePaymentPinsOrderTotal(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	order := seedOrder(t, db, userID, enums.OrderStatusPending, "25.50")

	before := time.Now().UTC()
	payment, err := svc.CreatePayment(ctx, order.ID, orders.Actor{UserID: userID, Role: enums.ActorRoleCustomer})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("expected Pending payment, got %s", payment.Status)
	}
	if !payment.TotalAmount.Equal(order.TotalPrice) {
		t.Fatalf("payment amount %s does not equal order total %s", payment.TotalAmount, order.TotalPrice)
	}
	wantExpiry := before.AddDate(0, 0, 3)
	if payment.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || payment.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Fatalf("expected expiry near %s, got %s", wantExpiry, payment.ExpiresAt)
	}

	var reloaded models.Order
	if err := db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusAwaitingPayment {
		t.Fatalf("expected order Awaiting Payment, got %s", reloaded.Status)
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentCreated).
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one payment.created event, got %d", events)
	}
}

func TestCreatePaymentRejectsDuplicate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	order := seedOrder(t, db, userID, enums.OrderStatusPending, "10.00")
	actor := orders.Actor{UserID: userID, Role: enums.ActorRoleCustomer}

	if _, err := svc.CreatePayment(ctx, order.ID, actor); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	_, err := svc.CreatePayment(ctx, order.ID, actor)
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentAlreadyExists) {
		t.Fatalf("expected payment already exists, got %v", err)
	}
}

// racingCreateRepo simulates a concurrent create winning between the active
// payment read check and the insert: the read sees nothing, the insert trips
// the active-payment unique index.
type racingCreateRepo struct {
	Repository
}

func (r racingCreateRepo) WithTx(tx *gorm.DB) Repository {
	return racingCreateRepo{Repository: r.Repository.WithTx(tx)}
}

func (r racingCreateRepo) FindActiveByOrder(context.Context, uuid.UUID) (*models.Payment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r racingCreateRepo) Create(context.Context, *models.Payment) (*models.Payment, error) {
	return nil, errors.New(`duplicate key value violates unique constraint "ux_payments_order_active"`)
}

func TestCreatePaymentLosesInsertRace(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	order := seedOrder(t, db, userID, enums.OrderStatusPending, "10.00")

	resolver, err := cancellations.NewResolver(cancellations.NewRepository(db))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ordersRepo := orders.NewRepository(db)
	publisher := outbox.NewService(nil)
	ordersSvc, err := orders.NewService(ordersRepo, gormTxRunner{db: db}, publisher, stock.NewLedger(), resolver)
	if err != nil {
		t.Fatalf("new orders service: %v", err)
	}
	svc, err := NewService(racingCreateRepo{Repository: NewRepository(db)}, ordersRepo, ordersSvc, gormTxRunner{db: db}, publisher, nil, 3)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.CreatePayment(ctx, order.ID, orders.Actor{UserID: userID, Role: enums.ActorRoleCustomer})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentAlreadyExists) {
		t.Fatalf("expected payment already exists, got %v", err)
	}
}

func TestCreatePaymentUnpayableOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	userID := uuid.New()
	order := seedOrder(t, db, userID, enums.OrderStatusProcessing, "10.00")

	_, err := svc.CreatePayment(context.Background(), order.ID, orders.Actor{UserID: userID, Role: enums.ActorRoleCustomer})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCreatePaymentForeignOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, "10.00")

	_, err := svc.CreatePayment(context.Background(), order.ID, orders.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDetailCoveringTotalMarksPaid(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	order := seedOrder(t, db, userID, enums.OrderStatusPending, "20.00")

	payment, err := svc.CreatePayment(ctx, order.ID, orders.Actor{UserID: userID, Role: enums.ActorRoleCustomer})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	// A failed attempt and a partial success leave the payment pending.
	for _, attempt := range []DetailInput{
		{Status: enums.PaymentDetailStatusFailed, Amount: decimal.RequireFromString("20.00"), Method: enums.PaymentMethodCard},
		{Status: enums.PaymentDetailStatusSuccess, Amount: decimal.RequireFromString("5.00"), Method: enums.PaymentMethodWallet},
	} {
		if _, err := svc.CreatePaymentDetail(ctx, payment.ID, attempt); err != nil {
			t.Fatalf("record attempt: %v", err)
		}
	}
	assertPaymentStatus(t, db, payment.ID, enums.PaymentStatusPending)

	if _, err := svc.CreatePaymentDetail(ctx, payment.ID, DetailInput{
		Status: enums.PaymentDetailStatusSuccess,
		Amount: decimal.RequireFromString("15.00"),
		Method: enums.PaymentMethodWallet,
	}); err != nil {
		t.Fatalf("final attempt: %v", err)
	}
	assertPaymentStatus(t, db, payment.ID, enums.PaymentStatusPaid)
}

func TestDetailOnTerminalPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusAwaitingPayment, "10.00")
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusExpired, "10.00", time.Now().Add(-time.Hour))

	_, err := svc.CreatePaymentDetail(context.Background(), payment.ID, DetailInput{
		Status: enums.PaymentDetailStatusSuccess,
		Amount: decimal.RequireFromString("10.00"),
		Method: enums.PaymentMethodCard,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidPaymentStatus) {
		t.Fatalf("expected invalid payment status, got %v", err)
	}
}

func TestSweepExpiresStalePayments(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	order := seedOrder(t, db, uuid.New(), enums.OrderStatusAwaitingPayment, "10.00")
	payment := seedPayment(t, db, order.ID, enums.PaymentStatusPending, "10.00", time.Now().UTC().Add(-time.Hour))

	fresh := seedOrder(t, db, uuid.New(), enums.OrderStatusAwaitingPayment, "10.00")
	freshPayment := seedPayment(t, db, fresh.ID, enums.PaymentStatusPending, "10.00", time.Now().UTC().Add(time.Hour))

	expired, err := svc.CheckAndExpirePayments(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired payment, got %d", expired)
	}

	assertPaymentStatus(t, db, payment.ID, enums.PaymentStatusExpired)
	assertPaymentStatus(t, db, freshPayment.ID, enums.PaymentStatusPending)

	var reloaded models.Order
	if err := db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusPaymentFailed {
		t.Fatalf("expected Payment Failed order, got %s", reloaded.Status)
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentExpired).
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one payment.expired event, got %d", events)
	}

	// Second sweep finds nothing to do.
	again, err := svc.CheckAndExpirePayments(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected idempotent sweep, got %d", again)
	}
}

func TestGetPaymentByOrderID(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	order := seedOrder(t, db, userID, enums.OrderStatusPending, "10.00")

	created, err := svc.CreatePayment(ctx, order.ID, orders.Actor{UserID: userID, Role: enums.ActorRoleCustomer})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if _, err := svc.CreatePaymentDetail(ctx, created.ID, DetailInput{
		Status: enums.PaymentDetailStatusFailed,
		Amount: decimal.RequireFromString("10.00"),
		Method: enums.PaymentMethodCard,
	}); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	payment, err := svc.GetPaymentByOrderID(ctx, order.ID, orders.Actor{UserID: userID, Role: enums.ActorRoleCustomer})
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.ID != created.ID || len(payment.Details) != 1 {
		t.Fatalf("unexpected projection: %+v", payment)
	}

	_, err = svc.GetPaymentByOrderID(ctx, order.ID, orders.Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	resolver, err := cancellations.NewResolver(cancellations.NewRepository(db))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	ordersRepo := orders.NewRepository(db)
	publisher := outbox.NewService(nil)
	ordersSvc, err := orders.NewService(ordersRepo, gormTxRunner{db: db}, publisher, stock.NewLedger(), resolver)
	if err != nil {
		t.Fatalf("new orders service: %v", err)
	}
	svc, err := NewService(NewRepository(db), ordersRepo, ordersSvc, gormTxRunner{db: db}, publisher, nil, 3)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedOrder(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.OrderStatus, total string) *models.Order {
	t.Helper()
	order := models.Order{
		UserID:          userID,
		ShopID:          uuid.New(),
		Status:          status,
		TotalPrice:      decimal.RequireFromString(total),
		ShippingAddress: "1 Main St",
		CustomerName:    "Test Customer",
		Phone:           "555-0100",
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return &order
}

func seedPayment(t *testing.T, db *gorm.DB, orderID uuid.UUID, status enums.PaymentStatus, total string, expiresAt time.Time) *models.Payment {
	t.Helper()
	payment := models.Payment{
		OrderID:     orderID,
		Status:      status,
		TotalAmount: decimal.RequireFromString(total),
		ExpiresAt:   expiresAt,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return &payment
}

func assertPaymentStatus(t *testing.T, db *gorm.DB, paymentID uuid.UUID, want enums.PaymentStatus) {
	t.Helper()
	var payment models.Payment
	if err := db.First(&payment, "id = ?", paymentID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if payment.Status != want {
		t.Fatalf("expected payment %s, got %s", want, payment.Status)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderLine{},
		&models.StatusChange{},
		&models.CancelReason{},
		&models.ProductVariant{},
		&models.Payment{},
		&models.PaymentDetail{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
