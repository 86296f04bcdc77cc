package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/db/models"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
)

// Ledger mutates per-variant stock counts. Every operation is a single
// conditional UPDATE so the decision to grant or refuse quantity is made by
// the database atomically, never by a read-then-write sequence.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

type ledger struct{}

// NewLedger returns the database-backed stock ledger.
func NewLedger() Ledger {
	return ledger{}
}

// Reserve moves qty from available to reserved if enough stock remains.
// Zero rows affected against an existing variant means the conditional guard
// refused the decrement, which surfaces as InsufficientStock.
func (ledger) Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if err := validateArgs(tx, variantID, qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET available_qty = available_qty - ?,
			reserved_qty = reserved_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_qty >= ?
	`, qty, qty, variantID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		return reserveFailure(ctx, tx, variantID, qty)
	}
	return nil
}

// Release returns qty from reserved to available, reversing a Reserve after
// the reservation already committed (cancellation, payment expiry).
func (ledger) Release(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if err := validateArgs(tx, variantID, qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET available_qty = available_qty + ?,
			reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty >= ?
	`, qty, qty, variantID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "variant %s has fewer than %d reserved", variantID, qty)
	}
	return nil
}

// Commit finalizes a reservation once the order ships: the quantity left
// available stays untouched (it was decremented at reserve time) and the
// reserved bookkeeping is cleared.
func (ledger) Commit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if err := validateArgs(tx, variantID, qty); err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_qty >= ?
	`, qty, variantID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "commit stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "variant %s has fewer than %d reserved", variantID, qty)
	}
	return nil
}

func validateArgs(tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock mutation")
	}
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func reserveFailure(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	var variant models.ProductVariant
	err := tx.WithContext(ctx).Select("id", "available_qty").First(&variant, "id = ?", variantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "variant %s not found", variantID)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inspect variant stock")
	}
	return pkgerrors.
		Newf(pkgerrors.CodeInsufficientStock, "variant %s has %d available, requested %d", variantID, variant.AvailableQty, qty).
		WithDetails(map[string]any{
			"variant_id": variantID.String(),
			"available":  variant.AvailableQty,
			"requested":  qty,
		})
}
