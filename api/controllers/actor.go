package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/walletcore/api/middleware"
	"github.com/angelmondragon/walletcore/internal/escrow"
	"github.com/angelmondragon/walletcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user context")
	}
	return id, nil
}

func actorFromRequest(r *http.Request) (escrow.Actor, error) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		return escrow.Actor{}, err
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return escrow.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid role context")
	}
	return escrow.Actor{UserID: userID, Role: role}, nil
}
