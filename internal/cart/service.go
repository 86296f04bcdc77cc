package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/pkg/db"
	"github.com/shopora/shopora-backend/pkg/db/models"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes cart operations for a single user's cart.
type Service interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddLine(ctx context.Context, userID, variantID uuid.UUID, qty int) (*models.CartLine, error)
	UpdateLineQty(ctx context.Context, userID, lineID uuid.UUID, qty int) error
	RemoveLine(ctx context.Context, userID, lineID uuid.UUID) error
	View(ctx context.Context, userID uuid.UUID) (*View, error)
}

// View is the cart grouped by shop, priced at current variant prices.
type View struct {
	CartID uuid.UUID       `json:"cart_id"`
	Groups []ShopGroup     `json:"groups"`
	Total  decimal.Decimal `json:"total"`
}

// ShopGroup holds one shop's lines and their subtotal.
type ShopGroup struct {
	ShopID   uuid.UUID       `json:"shop_id"`
	Lines    []LineView      `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// LineView is a priced cart line.
type LineView struct {
	LineID    uuid.UUID       `json:"line_id"`
	VariantID uuid.UUID       `json:"variant_id"`
	SKU       string          `json:"sku"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type service struct {
	repo CartRepository
	tx   txRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// GetOrCreate returns the user's cart, creating it on first touch. The
// unique index on user_id keeps the relationship one-to-one; a concurrent
// create loses the race and re-reads.
func (s *service) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	cart, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{UserID: userID})
	if err == nil {
		return created, nil
	}

	cart, ferr := s.repo.FindByUser(ctx, userID)
	if ferr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

// AddLine upserts a variant into the user's cart: an existing line for the
// same variant has its quantity increased, otherwise a new line is created
// with the variant's shop denormalized onto it.
func (s *service) AddLine(ctx context.Context, userID, variantID uuid.UUID, qty int) (*models.CartLine, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	variants, err := s.repo.FindVariants(ctx, []uuid.UUID{variantID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if len(variants) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
	}
	variant := variants[0]

	var saved *models.CartLine
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		line, err := txRepo.FindLineByVariant(ctx, cart.ID, variantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if line != nil {
			line.Qty += qty
			if err := txRepo.UpdateLineQty(ctx, line.ID, line.Qty); err != nil {
				return err
			}
			saved = line
			return nil
		}

		line = &models.CartLine{
			CartID:    cart.ID,
			VariantID: variantID,
			ShopID:    variant.ShopID,
			Qty:       qty,
		}
		if err := txRepo.CreateLine(ctx, line); err != nil {
			// A concurrent add for the same variant can slip past the read
			// and lose the race against the cart/variant unique index.
			if db.IsUniqueViolation(err, "ux_cart_lines_cart_variant") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart already holds a line for this variant")
			}
			return err
		}
		saved = line
		return nil
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart line")
	}
	return saved, nil
}

// UpdateLineQty replaces the quantity on a line the user owns.
func (s *service) UpdateLineQty(ctx context.Context, userID, lineID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	line, err := s.ownedLine(ctx, userID, lineID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateLineQty(ctx, line.ID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	return nil
}

// RemoveLine deletes a line the user owns.
func (s *service) RemoveLine(ctx context.Context, userID, lineID uuid.UUID) error {
	line, err := s.ownedLine(ctx, userID, lineID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteLine(ctx, line.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return nil
}

// View prices the cart at current variant prices and groups lines per shop.
// Group and line order is deterministic: lines keep insertion order, groups
// are sorted by shop id.
func (s *service) View(ctx context.Context, userID uuid.UUID) (*View, error) {
	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.ListLines(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}

	view := &View{CartID: cart.ID, Groups: []ShopGroup{}, Total: decimal.Zero}
	if len(lines) == 0 {
		return view, nil
	}

	variantIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		variantIDs = append(variantIDs, line.VariantID)
	}
	variants, err := s.repo.FindVariants(ctx, variantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	byID := make(map[uuid.UUID]models.ProductVariant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	grouped := map[uuid.UUID]*ShopGroup{}
	var order []uuid.UUID
	for _, line := range lines {
		variant, ok := byID[line.VariantID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "cart references missing variant %s", line.VariantID)
		}

		group, ok := grouped[line.ShopID]
		if !ok {
			group = &ShopGroup{ShopID: line.ShopID, Subtotal: decimal.Zero}
			grouped[line.ShopID] = group
			order = append(order, line.ShopID)
		}

		lineTotal := variant.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
		group.Lines = append(group.Lines, LineView{
			LineID:    line.ID,
			VariantID: line.VariantID,
			SKU:       variant.SKU,
			Qty:       line.Qty,
			UnitPrice: variant.UnitPrice,
			LineTotal: lineTotal,
		})
		group.Subtotal = group.Subtotal.Add(lineTotal)
		view.Total = view.Total.Add(lineTotal)
	}

	sort.Slice(order, func(i, j int) bool {
		return order[i].String() < order[j].String()
	})
	for _, shopID := range order {
		view.Groups = append(view.Groups, *grouped[shopID])
	}
	return view, nil
}

func (s *service) ownedLine(ctx context.Context, userID, lineID uuid.UUID) (*models.CartLine, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if lineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line id is required")
	}

	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	line, err := s.repo.FindLine(ctx, cart.ID, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	return line, nil
}
