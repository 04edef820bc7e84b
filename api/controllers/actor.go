package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mallhive/mallhive-backend/api/middleware"
	"github.com/mallhive/mallhive-backend/pkg/enums"
	pkgerrors "github.com/mallhive/mallhive-backend/pkg/errors"
)

// requestActor resolves the authenticated identity seeded by the auth
// middleware.
func requestActor(r *http.Request) (uuid.UUID, enums.UserRole, *uuid.UUID, error) {
	ctx := r.Context()

	userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, "", nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity")
	}
	role := enums.UserRole(middleware.RoleFromContext(ctx))
	if !role.IsValid() {
		return uuid.Nil, "", nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing role")
	}

	var shopID *uuid.UUID
	if raw := middleware.ShopIDFromContext(ctx); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, "", nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid shop scope")
		}
		shopID = &id
	}
	return userID, role, shopID, nil
}
