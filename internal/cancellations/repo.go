package cancellations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/db/models"
)

// ReasonRepository exposes reads over the cancel reason catalog.
type ReasonRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.CancelReason, error)
	List(ctx context.Context) ([]models.CancelReason, error)
}

// Repository is the gorm-backed ReasonRepository.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cancel reason repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a single cancel reason.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CancelReason, error) {
	var reason models.CancelReason
	err := r.db.WithContext(ctx).First(&reason, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &reason, nil
}

// List returns the catalog ordered by description.
func (r *Repository) List(ctx context.Context) ([]models.CancelReason, error) {
	var rows []models.CancelReason
	err := r.db.WithContext(ctx).
		Order("description ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
