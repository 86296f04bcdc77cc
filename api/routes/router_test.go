package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopora/shopora-backend/internal/cancellations"
	cartsvc "github.com/shopora/shopora-backend/internal/cart"
	checkoutsvc "github.com/shopora/shopora-backend/internal/checkout"
	ordersvc "github.com/shopora/shopora-backend/internal/orders"
	paymentsvc "github.com/shopora/shopora-backend/internal/payments"
	pkgAuth "github.com/shopora/shopora-backend/pkg/auth"
	"github.com/shopora/shopora-backend/pkg/config"
	"github.com/shopora/shopora-backend/pkg/db/models"
	"github.com/shopora/shopora-backend/pkg/enums"
	"github.com/shopora/shopora-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubCartService struct{}

func (stubCartService) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return &models.Cart{}, nil
}

func (stubCartService) AddLine(ctx context.Context, userID, variantID uuid.UUID, qty int) (*models.CartLine, error) {
	return &models.CartLine{}, nil
}

func (stubCartService) UpdateLineQty(ctx context.Context, userID, lineID uuid.UUID, qty int) error {
	return nil
}

func (stubCartService) RemoveLine(ctx context.Context, userID, lineID uuid.UUID) error {
	return nil
}

func (stubCartService) View(ctx context.Context, userID uuid.UUID) (*cartsvc.View, error) {
	return &cartsvc.View{}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) Execute(ctx context.Context, userID uuid.UUID, input checkoutsvc.Input) ([]models.Order, error) {
	return nil, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Transition(ctx context.Context, input ordersvc.TransitionInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) TransitionInTx(ctx context.Context, tx *gorm.DB, input ordersvc.TransitionInput) (*models.Order, error) {
	panic("unimplemented")
}

func (stubOrdersService) Get(ctx context.Context, orderID uuid.UUID, actor ordersvc.Actor) (*models.Order, error) {
	return &models.Order{ID: orderID}, nil
}

func (stubOrdersService) List(ctx context.Context, input ordersvc.ListInput) (*ordersvc.ListResult, error) {
	return &ordersvc.ListResult{}, nil
}

type stubPaymentsService struct{}

func (stubPaymentsService) CreatePayment(ctx context.Context, orderID uuid.UUID, actor ordersvc.Actor) (*models.Payment, error) {
	return &models.Payment{OrderID: orderID}, nil
}

func (stubPaymentsService) CreatePaymentDetail(ctx context.Context, paymentID uuid.UUID, input paymentsvc.DetailInput) (*models.PaymentDetail, error) {
	return &models.PaymentDetail{PaymentID: paymentID}, nil
}

func (stubPaymentsService) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID, actor ordersvc.Actor) (*models.Payment, error) {
	return &models.Payment{OrderID: orderID}, nil
}

func (stubPaymentsService) CheckAndExpirePayments(ctx context.Context) (int, error) {
	return 0, nil
}

type stubPromotionsService struct{}

func (stubPromotionsService) ExpirePromotions(ctx context.Context) (int64, error) {
	return 0, nil
}

func (stubPromotionsService) ListActive(ctx context.Context) ([]models.Promotion, error) {
	return nil, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, order *models.Order, reasonID uuid.UUID) (*cancellations.Decision, error) {
	return &cancellations.Decision{}, nil
}

func (stubResolver) ListReasons(ctx context.Context) ([]models.CancelReason, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            stubPinger{},
		Redis:         stubPinger{},
		Cart:          stubCartService{},
		Checkout:      stubCheckoutService{},
		Orders:        stubOrdersService{},
		Payments:      stubPaymentsService{},
		Cancellations: stubResolver{},
		Promotions:    stubPromotionsService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpointsAreUnauthenticated(t *testing.T) {
	router := newTestRouter(testConfig())

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestAPIGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAPIGroupAcceptsValidJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAPIGroupRejectsGarbageToken(t *testing.T) {
	router := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token got %d", resp.Code)
	}
}

func TestPromotionsReachableWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/promotions", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCancelReasonsReachableWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cancel-reasons", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
