package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/api/middleware"
	"github.com/joaquinvalderas/regenmarket-backend/pkg/enums"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
)

func actorIDFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}

func actorRoleFromContext(r *http.Request) enums.UserRole {
	return enums.UserRole(middleware.RoleFromContext(r.Context()))
}
