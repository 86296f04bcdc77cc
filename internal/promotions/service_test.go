package promotions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
	"github.com/shopora/shopora-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestExpirePromotionsFlipsOnlyPastActive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	past := seedPromotion(t, db, enums.PromotionStatusActive, -48*time.Hour, -time.Hour)
	current := seedPromotion(t, db, enums.PromotionStatusActive, -time.Hour, time.Hour)
	alreadyInactive := seedPromotion(t, db, enums.PromotionStatusInactive, -48*time.Hour, -time.Hour)

	flipped, err := svc.ExpirePromotions(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if flipped != 1 {
		t.Fatalf("expected 1 flipped promotion, got %d", flipped)
	}

	assertStatus(t, db, past, enums.PromotionStatusInactive)
	assertStatus(t, db, current, enums.PromotionStatusActive)
	assertStatus(t, db, alreadyInactive, enums.PromotionStatusInactive)

	var events int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPromotionExpired).
		Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected one promotion.expired event, got %d", events)
	}

	// A second sweep finds nothing and emits nothing.
	again, err := svc.ExpirePromotions(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected idempotent sweep, got %d", again)
	}
}

func TestListActiveScopesToWindow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	seedPromotion(t, db, enums.PromotionStatusActive, -48*time.Hour, -time.Hour)
	current := seedPromotion(t, db, enums.PromotionStatusActive, -time.Hour, time.Hour)
	seedPromotion(t, db, enums.PromotionStatusActive, time.Hour, 48*time.Hour)

	rows, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != current {
		t.Fatalf("expected only the in-window promotion, got %+v", rows)
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(db, gormTxRunner{db: db}, outbox.NewService(nil))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedPromotion(t *testing.T, db *gorm.DB, status enums.PromotionStatus, startOffset, endOffset time.Duration) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	promo := models.Promotion{
		ShopID:       uuid.New(),
		Name:         "promo-" + uuid.NewString(),
		DiscountRate: decimal.RequireFromString("0.10"),
		StartsAt:     now.Add(startOffset),
		EndsAt:       now.Add(endOffset),
		Status:       status,
	}
	if err := db.Create(&promo).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}
	return promo.ID
}

func assertStatus(t *testing.T, db *gorm.DB, id uuid.UUID, want enums.PromotionStatus) {
	t.Helper()
	var promo models.Promotion
	if err := db.First(&promo, "id = ?", id).Error; err != nil {
		t.Fatalf("reload promotion: %v", err)
	}
	if promo.Status != want {
		t.Fatalf("expected %s, got %s", want, promo.Status)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:promotions_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Promotion{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
