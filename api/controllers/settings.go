package controllers

import (
	"net/http"

	"github.com/merakimart/backend/api/responses"
	"github.com/merakimart/backend/api/validators"
	"github.com/merakimart/backend/internal/settings"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/logger"
)

type updateSettingsRequest struct {
	ShippingFeePaise     *int64 `json:"shipping_fee_paise,omitempty" validate:"omitempty,min=0"`
	FreeShippingMinPaise *int64 `json:"free_shipping_min_paise,omitempty" validate:"omitempty,min=0"`
	LoyaltyPointsPer100  *int   `json:"loyalty_points_per_100,omitempty" validate:"omitempty,min=0"`
	PointsToPaiseRate    *int64 `json:"points_to_paise_rate,omitempty" validate:"omitempty,min=1"`
	MinRedeemPoints      *int   `json:"min_redeem_points,omitempty" validate:"omitempty,min=1"`
	ReferralBonusPoints  *int   `json:"referral_bonus_points,omitempty" validate:"omitempty,min=0"`
	LowStockThreshold    *int   `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
}

// AdminSettingsFetch returns the store-wide settings row.
func AdminSettingsFetch(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		row, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, row)
	}
}

// AdminSettingsUpdate patches settings fields; nil fields stay untouched.
func AdminSettingsUpdate(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		var body updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Update(r.Context(), settings.UpdateInput{
			ShippingFeePaise:     body.ShippingFeePaise,
			FreeShippingMinPaise: body.FreeShippingMinPaise,
			LoyaltyPointsPer100:  body.LoyaltyPointsPer100,
			PointsToPaiseRate:    body.PointsToPaiseRate,
			MinRedeemPoints:      body.MinRedeemPoints,
			ReferralBonusPoints:  body.ReferralBonusPoints,
			LowStockThreshold:    body.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, row)
	}
}
