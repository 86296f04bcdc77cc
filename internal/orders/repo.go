package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
	"github.com/shopora/shopora-backend/pkg/pagination"
)

// Repository exposes order persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateLines(ctx context.Context, lines []models.OrderLine) error
	CreateStatusChange(ctx context.Context, change *models.StatusChange) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindDetailed(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
}

// ListFilter narrows a cursor-paginated order listing. A nil UserID lists
// across all users (privileged callers only).
type ListFilter struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
	Cursor *pagination.Cursor
	Limit  int
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) CreateStatusChange(ctx context.Context, change *models.StatusChange) error {
	return r.db.WithContext(ctx).Create(change).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindDetailed loads an order with its lines and full status history.
func (r *repository) FindDetailed(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("StatusChanges", func(db *gorm.DB) *gorm.DB {
			return db.Order("changed_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// List returns orders newest first using created_at plus id as the cursor.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID,
		)
	}

	var rows []models.Order
	err := query.
		Order("created_at DESC, id DESC").
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
