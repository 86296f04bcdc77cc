package orders

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/internal/cancellations"
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

var (
	adminActor  = Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}
	systemActor = Actor{Role: enums.ActorRoleSystem}
)

func TestTransitionHappyPath(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, "100.00")

	updated, err := svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusProcessing,
		Actor:   adminActor,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected Processing, got %s", updated.Status)
	}

	var changes []models.StatusChange
	if err := db.Where("order_id = ?", order.ID).Find(&changes).Error; err != nil {
		t.Fatalf("load changes: %v", err)
	}
	if len(changes) != 1 || changes[0].Status != enums.OrderStatusProcessing {
		t.Fatalf("expected one Processing status change, got %+v", changes)
	}
	if changes[0].ChangedAt.IsZero() {
		t.Fatal("status change timestamp missing")
	}

	var events int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", order.ID, enums.EventOrderStatusChanged).
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one status change event, got %d", events)
	}
}

func TestTransitionTerminalOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusClosed, "10.00")

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusReturning,
		Actor:   adminActor,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeOrderClosed) {
		t.Fatalf("expected order closed, got %v", err)
	}
}

func TestTransitionDisallowedEdge(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusShipped, "10.00")

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusCanceled,
		Actor:   adminActor,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidStatusTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "Shipped") || !strings.Contains(msg, "Canceled") {
		t.Fatalf("message must carry both statuses, got %q", msg)
	}
}

func TestCustomerCancelsOwnOrderAndStockIsReleased(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	userID := uuid.New()
	variant := seedVariant(t, db, 0, 3)
	order := seedOrder(t, db, userID, enums.OrderStatusPending, "30.00")
	seedLine(t, db, order.ID, variant, 3, "10.00")
	reason := seedReason(t, db, "0.50")

	updated, err := svc.Transition(ctx, TransitionInput{
		OrderID:        order.ID,
		Target:         enums.OrderStatusCanceled,
		CancelReasonID: &reason.ID,
		Actor:          Actor{UserID: userID, Role: enums.ActorRoleCustomer},
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != enums.OrderStatusCanceled {
		t.Fatalf("expected Canceled, got %s", updated.Status)
	}
	if updated.CancelReasonID == nil || *updated.CancelReasonID != reason.ID {
		t.Fatalf("cancel reason not recorded: %+v", updated.CancelReasonID)
	}

	var reloaded models.ProductVariant
	if err := db.First(&reloaded, "id = ?", variant).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if reloaded.AvailableQty != 3 || reloaded.ReservedQty != 0 {
		t.Fatalf("expected stock released, got available=%d reserved=%d", reloaded.AvailableQty, reloaded.ReservedQty)
	}
}

func TestCancelWithoutReason(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	userID := uuid.New()
	order := seedOrder(t, db, userID, enums.OrderStatusPending, "10.00")

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusCanceled,
		Actor:   Actor{UserID: userID, Role: enums.ActorRoleCustomer},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidCancelReason) {
		t.Fatalf("expected invalid cancel reason, got %v", err)
	}
}

func TestCustomerCannotDriveFulfillment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	userID := uuid.New()
	order := seedOrder(t, db, userID, enums.OrderStatusProcessing, "10.00")

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusDelivering,
		Actor:   Actor{UserID: userID, Role: enums.ActorRoleCustomer},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCustomerCannotCancelForeignOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, "10.00")
	reason := seedReason(t, db, "1.00")

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:        order.ID,
		Target:         enums.OrderStatusCanceled,
		CancelReasonID: &reason.ID,
		Actor:          Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestMissingIdentity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusPending, "10.00")

	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusProcessing,
		Actor:   Actor{Role: enums.ActorRoleCustomer},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestShippingCommitsReservation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	variant := seedVariant(t, db, 1, 2)
	order := seedOrder(t, db, uuid.New(), enums.OrderStatusDelivering, "20.00")
	seedLine(t, db, order.ID, variant, 2, "10.00")

	_, err := svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusShipped,
		Actor:   systemActor,
	})
	if err != nil {
		t.Fatalf("ship: %v", err)
	}

	var reloaded models.ProductVariant
	if err := db.First(&reloaded, "id = ?", variant).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if reloaded.AvailableQty != 1 || reloaded.ReservedQty != 0 {
		t.Fatalf("expected reservation committed, got available=%d reserved=%d", reloaded.AvailableQty, reloaded.ReservedQty)
	}
}

func TestGetScopesToOwner(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()
	order := seedOrder(t, db, userID, enums.OrderStatusPending, "10.00")

	if _, err := svc.Get(ctx, order.ID, Actor{UserID: userID, Role: enums.ActorRoleCustomer}); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := svc.Get(ctx, order.ID, adminActor); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	_, err := svc.Get(ctx, order.ID, Actor{UserID: uuid.New(), Role: enums.ActorRoleCustomer})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		seedOrder(t, db, userID, enums.OrderStatusPending, "10.00")
	}
	seedOrder(t, db, uuid.New(), enums.OrderStatusPending, "10.00")

	first, err := svc.List(ctx, ListInput{
		Actor: Actor{UserID: userID, Role: enums.ActorRoleCustomer},
		Limit: 3,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Orders) != 3 || first.NextCursor == "" {
		t.Fatalf("expected first page of 3 with cursor, got %d %q", len(first.Orders), first.NextCursor)
	}

	second, err := svc.List(ctx, ListInput{
		Actor:  Actor{UserID: userID, Role: enums.ActorRoleCustomer},
		Limit:  3,
		Cursor: first.NextCursor,
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Orders) != 2 || second.NextCursor != "" {
		t.Fatalf("expected final page of 2, got %d %q", len(second.Orders), second.NextCursor)
	}

	seen := map[uuid.UUID]bool{}
	for _, order := range append(first.Orders, second.Orders...) {
		if order.UserID != userID {
			t.Fatalf("leaked foreign order %s", order.ID)
		}
		if seen[order.ID] {
			t.Fatalf("duplicate order %s across pages", order.ID)
		}
		seen[order.ID] = true
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	resolver, err := cancellations.NewResolver(cancellations.NewRepository(db))
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, outbox.NewService(nil), stock.NewLedger(), resolver)
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

func seedLine(t *testing.T, db *gorm.DB, orderID, variantID uuid.UUID, qty int, unitPrice string) {
	t.Helper()
	price := decimal.RequireFromString(unitPrice)
	line := models.OrderLine{
		OrderID:   orderID,
		VariantID: variantID,
		Qty:       qty,
		UnitPrice: price,
		LineTotal: price.Mul(decimal.NewFromInt(int64(qty))),
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed line: %v", err)
	}
}

func seedVariant(t *testing.T, db *gorm.DB, available, reserved int) uuid.UUID {
	t.Helper()
	variant := models.ProductVariant{
		ProductID:    uuid.New(),
		ShopID:       uuid.New(),
		SKU:          "sku-" + uuid.NewString(),
		UnitPrice:    decimal.RequireFromString("10.00"),
		AvailableQty: available,
		ReservedQty:  reserved,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant.ID
}

func seedReason(t *testing.T, db *gorm.DB, rate string) models.CancelReason {
	t.Helper()
	reason := models.CancelReason{
		Description: "test reason",
		RefundRate:  decimal.RequireFromString(rate),
	}
	if err := db.Create(&reason).Error; err != nil {
		t.Fatalf("seed reason: %v", err)
	}
	return reason
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
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
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
