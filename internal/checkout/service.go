package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/internal/cart"
	"github.com/shopora/shopora-backend/internal/orders"
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

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

// Input selects which cart lines to convert and where to ship them. An empty
// LineIDs slice converts the whole cart.
type Input struct {
	LineIDs         []uuid.UUID
	ShippingAddress string
	CustomerName    string
	Phone           string
	Note            *string
}

// OrderCreatedEvent is emitted once per order produced by a checkout.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	ShopID     uuid.UUID         `json:"shop_id"`
	Status     enums.OrderStatus `json:"status"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	LineCount  int               `json:"line_count"`
}

// Service converts cart lines into orders.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input Input) ([]models.Order, error)
}

type service struct {
	cartRepo   cart.CartRepository
	ordersRepo orders.Repository
	stock      stockReserver
	tx         txRunner
	outbox     outboxPublisher
	now        func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(cartRepo cart.CartRepository, ordersRepo orders.Repository, stock stockReserver, tx txRunner, publisher outboxPublisher) (Service, error) {
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reserver required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		cartRepo:   cartRepo,
		ordersRepo: ordersRepo,
		stock:      stock,
		tx:         tx,
		outbox:     publisher,
		now:        time.Now,
	}, nil
}

// Execute runs the whole checkout in one transaction: reservations, order
// rows, audit records, cart cleanup and events commit together. Any failure,
// including insufficient stock on the last line, leaves nothing behind.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, input Input) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}

	var created []models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		userCart, err := cartRepo.FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		lines, err := cartRepo.ListLines(ctx, userCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
		}
		selected, err := selectLines(lines, input.LineIDs)
		if err != nil {
			return err
		}
		if len(selected) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		variants, err := s.loadVariants(ctx, cartRepo, selected)
		if err != nil {
			return err
		}

		// Lines keep their insertion order inside each group, and groups
		// follow the first line seen for the shop, so reservation order is
		// deterministic across retries.
		groups, shopOrder := groupByShop(selected)

		checkedOut := make([]uuid.UUID, 0, len(selected))
		for _, shopID := range shopOrder {
			group := groups[shopID]

			orderLines := make([]models.OrderLine, 0, len(group))
			total := decimal.Zero
			for _, line := range group {
				variant := variants[line.VariantID]
				if err := s.stock.Reserve(ctx, tx, line.VariantID, line.Qty); err != nil {
					return err
				}

				lineTotal := variant.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
				orderLines = append(orderLines, models.OrderLine{
					VariantID: line.VariantID,
					Qty:       line.Qty,
					UnitPrice: variant.UnitPrice,
					LineTotal: lineTotal,
				})
				total = total.Add(lineTotal)
				checkedOut = append(checkedOut, line.ID)
			}

			order, err := ordersRepo.Create(ctx, &models.Order{
				UserID:          userID,
				ShopID:          shopID,
				Status:          enums.OrderStatusPending,
				TotalPrice:      total,
				ShippingAddress: input.ShippingAddress,
				CustomerName:    input.CustomerName,
				Phone:           input.Phone,
				Note:            input.Note,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}

			for i := range orderLines {
				orderLines[i].OrderID = order.ID
			}
			if err := ordersRepo.CreateLines(ctx, orderLines); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order lines")
			}
			if err := ordersRepo.CreateStatusChange(ctx, &models.StatusChange{
				OrderID:   order.ID,
				Status:    enums.OrderStatusPending,
				ChangedAt: s.now().UTC(),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record initial status")
			}

			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: userID, Role: enums.ActorRoleCustomer.String()},
				Data: OrderCreatedEvent{
					OrderID:    order.ID,
					UserID:     userID,
					ShopID:     shopID,
					Status:     order.Status,
					TotalPrice: total,
					LineCount:  len(orderLines),
				},
			}); err != nil {
				return err
			}

			order.Lines = orderLines
			created = append(created, *order)
		}

		return cartRepo.DeleteLines(ctx, userCart.ID, checkedOut)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) loadVariants(ctx context.Context, repo cart.CartRepository, lines []models.CartLine) (map[uuid.UUID]models.ProductVariant, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	variants, err := repo.FindVariants(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	byID := make(map[uuid.UUID]models.ProductVariant, len(variants))
	for _, variant := range variants {
		byID[variant.ID] = variant
	}
	for _, line := range lines {
		if _, ok := byID[line.VariantID]; !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "variant %s not found", line.VariantID)
		}
	}
	return byID, nil
}

// selectLines filters the cart down to the requested line ids, keeping cart
// order. An empty request selects every line; an id that is not in the cart
// is an error rather than a silent skip.
func selectLines(lines []models.CartLine, requested []uuid.UUID) ([]models.CartLine, error) {
	if len(requested) == 0 {
		return lines, nil
	}

	wanted := make(map[uuid.UUID]bool, len(requested))
	for _, id := range requested {
		wanted[id] = true
	}

	selected := make([]models.CartLine, 0, len(requested))
	for _, line := range lines {
		if wanted[line.ID] {
			selected = append(selected, line)
			delete(wanted, line.ID)
		}
	}
	if len(wanted) != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request references lines not in the cart")
	}
	return selected, nil
}

func groupByShop(lines []models.CartLine) (map[uuid.UUID][]models.CartLine, []uuid.UUID) {
	groups := map[uuid.UUID][]models.CartLine{}
	var order []uuid.UUID
	for _, line := range lines {
		if _, ok := groups[line.ShopID]; !ok {
			order = append(order, line.ShopID)
		}
		groups[line.ShopID] = append(groups[line.ShopID], line)
	}
	return groups, order
}
