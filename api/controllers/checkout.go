package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shopora/shopora-backend/api/responses"
	"github.com/shopora/shopora-backend/api/validators"
	checkoutsvc "github.com/shopora/shopora-backend/internal/checkout"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
	"github.com/shopora/shopora-backend/pkg/logger"
)

type checkoutShipping struct {
	Address      string  `json:"address" validate:"required"`
	CustomerName string  `json:"customer_name" validate:"required"`
	Phone        string  `json:"phone" validate:"required"`
	Note         *string `json:"note,omitempty"`
}

type checkoutRequest struct {
	LineIDs  []uuid.UUID      `json:"line_ids,omitempty"`
	Shipping checkoutShipping `json:"shipping" validate:"required"`
}

// Checkout converts the caller's cart (or a selection of its lines) into one
// Pending order per shop.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.Execute(r.Context(), userID, checkoutsvc.Input{
			LineIDs:         payload.LineIDs,
			ShippingAddress: payload.Shipping.Address,
			CustomerName:    payload.Shipping.CustomerName,
			Phone:           payload.Shipping.Phone,
			Note:            payload.Shipping.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"orders": newOrderViews(orders),
		})
	}
}
