package promotions

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
	"github.com/shopora/shopora-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ExpiredEvent summarizes one expiry sweep.
type ExpiredEvent struct {
	Count     int64     `json:"count"`
	SweptAt   time.Time `json:"swept_at"`
	SweptUpTo time.Time `json:"swept_up_to"`
}

// Service deactivates promotions whose window has closed.
type Service interface {
	ExpirePromotions(ctx context.Context) (int64, error)
	ListActive(ctx context.Context) ([]models.Promotion, error)
}

type service struct {
	db     *gorm.DB
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService builds the promotion expiry service.
func NewService(db *gorm.DB, tx txRunner, publisher outboxPublisher) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{db: db, tx: tx, outbox: publisher, now: time.Now}, nil
}

// ExpirePromotions flips every active promotion past its end date to
// Inactive in one conditional update, so concurrent sweeps never double
// count. Returns how many promotions were deactivated.
func (s *service) ExpirePromotions(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC()

	var flipped int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).
			Model(&models.Promotion{}).
			Where("status = ? AND ends_at < ?", enums.PromotionStatusActive, cutoff).
			Update("status", enums.PromotionStatusInactive)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "expire promotions")
		}
		flipped = res.RowsAffected
		if flipped == 0 {
			return nil
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPromotionExpired,
			AggregateType: enums.AggregatePromotion,
			Version:       1,
			Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem.String()},
			Data: ExpiredEvent{
				Count:     flipped,
				SweptAt:   cutoff,
				SweptUpTo: cutoff,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return flipped, nil
}

// ListActive returns promotions currently in their window.
func (s *service) ListActive(ctx context.Context) ([]models.Promotion, error) {
	now := s.now().UTC()
	var rows []models.Promotion
	err := s.db.WithContext(ctx).
		Where("status = ? AND starts_at <= ? AND ends_at >= ?", enums.PromotionStatusActive, now, now).
		Order("ends_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promotions")
	}
	return rows, nil
}
