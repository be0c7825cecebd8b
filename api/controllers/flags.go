package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joaquinvalderas/regenmarket-backend/api/responses"
	"github.com/joaquinvalderas/regenmarket-backend/api/validators"
	"github.com/joaquinvalderas/regenmarket-backend/internal/flags"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/logger"
)

// CreateFlag files a moderation flag against a product, review, or vendor.
func CreateFlag(svc flags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flags service unavailable"))
			return
		}

		reporterID, err := actorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload flags.CreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Create(r.Context(), reporterID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dto)
	}
}

// AdminListFlags pages through the moderation queue.
func AdminListFlags(svc flags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flags service unavailable"))
			return
		}

		filters := flags.ListFilters{}
		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.Pagination = params

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseFlagStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filters.Status = &status
		}

		page, err := svc.List(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminResolveFlag closes a flag, optionally pulling the listing.
func AdminResolveFlag(svc flags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flags service unavailable"))
			return
		}

		adminID, err := actorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flagID, err := validators.ParsePathUUID(chi.URLParam(r, "flagID"), "flagID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload flags.ResolveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Resolve(r.Context(), adminID, flagID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

type dismissFlagRequest struct {
	Note string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// AdminDismissFlag closes a flag without action.
func AdminDismissFlag(svc flags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flags service unavailable"))
			return
		}

		adminID, err := actorIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		flagID, err := validators.ParsePathUUID(chi.URLParam(r, "flagID"), "flagID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload dismissFlagRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Dismiss(r.Context(), adminID, flagID, payload.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}
