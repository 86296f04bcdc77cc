package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
)

// Repository exposes payment persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	CreateDetail(ctx context.Context, detail *models.PaymentDetail) error
	SumSuccessfulDetails(ctx context.Context, paymentID uuid.UUID) (string, error)
	MarkPaid(ctx context.Context, id uuid.UUID) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Details").
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindActiveByOrder returns the order's payment that still accepts activity.
func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, []enums.PaymentStatus{
			enums.PaymentStatusPending,
			enums.PaymentStatusPaid,
		}).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) CreateDetail(ctx context.Context, detail *models.PaymentDetail) error {
	return r.db.WithContext(ctx).Create(detail).Error
}

// SumSuccessfulDetails totals the successful attempt amounts as a string so
// decimal precision survives the database round trip.
func (r *repository) SumSuccessfulDetails(ctx context.Context, paymentID uuid.UUID) (string, error) {
	var sum *string
	err := r.db.WithContext(ctx).
		Model(&models.PaymentDetail{}).
		Select("CAST(COALESCE(SUM(amount), 0) AS TEXT)").
		Where("payment_id = ? AND status = ?", paymentID, enums.PaymentDetailStatusSuccess).
		Scan(&sum).Error
	if err != nil {
		return "", err
	}
	if sum == nil {
		return "0", nil
	}
	return *sum, nil
}

// MarkPaid flips a pending payment to Paid. Returns false when the payment
// was not pending.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Update("status", enums.PaymentStatusPaid)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkExpired flips a pending payment to Expired. Returns false when another
// sweep or a payment attempt got there first, which makes the sweep
// idempotent.
func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Update("status", enums.PaymentStatusExpired)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("status = ? AND expires_at < ?", enums.PaymentStatusPending, cutoff).
		Order("expires_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
