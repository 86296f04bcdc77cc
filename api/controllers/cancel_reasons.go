package controllers

import (
	"net/http"

	"github.com/shopora/shopora-backend/api/responses"
	"github.com/shopora/shopora-backend/internal/cancellations"
	pkgerrors "github.com/shopora/shopora-backend/pkg/errors"
	"github.com/shopora/shopora-backend/pkg/logger"
)

// CancelReasonsList returns the cancellation reason catalog.
func CancelReasonsList(resolver cancellations.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cancellations service unavailable"))
			return
		}

		reasons, err := resolver.ListReasons(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCancelReasonViews(reasons))
	}
}
