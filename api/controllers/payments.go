package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/shopora/shopora-backend/api/middleware"
	"github.com/shopora/shopora-backend/api/responses"
	"github.com/shopora/shopora-backend/api/validators"
	paymentsvc "github.com/shopora/shopora-backend/internal/payments"
	"github.com/shopora/shopora-backend/pkg/enums"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
	"github.com/shopora/shopora-backend/pkg/logger"
)

type paymentDetailRequest struct {
	Status              string          `json:"status" validate:"required"`
	Amount              decimal.Decimal `json:"amount" validate:"required"`
	Method              string          `json:"method" validate:"required"`
	ExternalTransaction *string         `json:"external_transaction,omitempty"`
}

// PaymentCreate opens the payment window for an order.
func PaymentCreate(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.CreatePayment(r.Context(), orderID, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentView(*payment))
	}
}

// PaymentFetch returns the latest payment for an order with its attempts.
func PaymentFetch(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetPaymentByOrderID(r.Context(), orderID, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPaymentView(*payment))
	}
}

// PaymentDetailCreate records one payment attempt against a payment.
func PaymentDetailCreate(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		paymentID, err := validators.ParsePathUUID(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentDetailRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.CreatePaymentDetail(r.Context(), paymentID, paymentsvc.DetailInput{
			Status:              enums.PaymentDetailStatus(payload.Status),
			Amount:              payload.Amount,
			Method:              enums.PaymentMethod(payload.Method),
			ExternalTransaction: payload.ExternalTransaction,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, PaymentDetailView{
			ID:                  detail.ID,
			Status:              detail.Status,
			Amount:              detail.Amount,
			Method:              detail.Method,
			ExternalTransaction: detail.ExternalTransaction,
			CreatedAt:           detail.CreatedAt,
		})
	}
}
