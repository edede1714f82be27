package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/merakimart/backend/api/middleware"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/outbox"
)

// currentUserID resolves the authenticated user from the request context.
func currentUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

// actorRef captures who performed a mutation, for outbox event attribution.
func actorRef(r *http.Request) *outbox.ActorRef {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &outbox.ActorRef{
		UserID: id,
		Role:   middleware.RoleFromContext(r.Context()),
	}
}
