package controllers

import (
	"net/http"

	"github.com/joaquinvalderas/regenmarket-backend/api/responses"
	"github.com/joaquinvalderas/regenmarket-backend/internal/loyalty"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/logger"
)

// LoyaltyBalance returns the buyer's regen score and points balance.
func LoyaltyBalance(svc *loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "loyalty service unavailable"))
			return
		}

		userID, err := actorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
