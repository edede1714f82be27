package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/merakimart/backend/api/responses"
	"github.com/merakimart/backend/api/validators"
	"github.com/merakimart/backend/internal/giftcards"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/logger"
)

type giftCardCheckRequest struct {
	Code string `json:"code" validate:"required"`
}

type giftCardCheckResponse struct {
	Code         string `json:"code"`
	BalancePaise int64  `json:"balance_paise"`
	Status       string `json:"status"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// GiftCardCheck reports a card's balance and status. POST so codes stay out
// of access logs.
func GiftCardCheck(svc giftcards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift card service unavailable"))
			return
		}

		var body giftCardCheckRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		card, err := svc.GetByCode(r.Context(), body.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := giftCardCheckResponse{
			Code:         card.Code,
			BalancePaise: card.BalancePaise,
			Status:       string(card.Status),
		}
		if card.ExpiresAt != nil {
			resp.ExpiresAt = card.ExpiresAt.Format("2006-01-02")
		}
		responses.WriteSuccess(w, resp)
	}
}

// GiftCardRedeem debits a card outside of checkout.
func GiftCardRedeem(svc giftcards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift card service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body giftcards.RedeemInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		redemption, err := svc.Redeem(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, redemption)
	}
}

// AdminGiftCardIssue mints a new card.
func AdminGiftCardIssue(svc giftcards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift card service unavailable"))
			return
		}

		var body giftcards.IssueInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		card, err := svc.Issue(r.Context(), actorRef(r), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, card)
	}
}

// AdminGiftCardDisable blocks a card from further spending.
func AdminGiftCardDisable(svc giftcards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift card service unavailable"))
			return
		}

		cardID, err := uuid.Parse(chi.URLParam(r, "giftCardId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gift card id"))
			return
		}

		if err := svc.Disable(r.Context(), cardID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "disabled"})
	}
}

// AdminGiftCardRedemptions lists a card's debit history.
func AdminGiftCardRedemptions(svc giftcards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift card service unavailable"))
			return
		}

		cardID, err := uuid.Parse(chi.URLParam(r, "giftCardId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid gift card id"))
			return
		}

		rows, err := svc.ListRedemptions(r.Context(), cardID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}
