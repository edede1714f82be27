package controllers

import (
	"net/http"
	"strings"

	"github.com/merakimart/backend/api/responses"
	"github.com/merakimart/backend/api/validators"
	"github.com/merakimart/backend/internal/loyalty"
	"github.com/merakimart/backend/pkg/db/models"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/logger"
	"github.com/merakimart/backend/pkg/pagination"
)

type loyaltyRedeemRequest struct {
	Points int `json:"points" validate:"required,min=1"`
}

type loyaltySummaryResponse struct {
	Balance    int                       `json:"balance"`
	Ledger     []models.PointTransaction `json:"ledger"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}

// LoyaltySummary returns the caller's point balance plus a ledger page.
func LoyaltySummary(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "loyalty service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ledger, nextCursor, err := svc.Ledger(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loyaltySummaryResponse{
			Balance:    balance,
			Ledger:     ledger,
			NextCursor: nextCursor,
		})
	}
}

// LoyaltyRedeem converts points into a single-use coupon.
func LoyaltyRedeem(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "loyalty service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body loyaltyRedeemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.Redeem(r.Context(), userID, body.Points)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, coupon)
	}
}
