package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/merakimart/backend/api/responses"
	"github.com/merakimart/backend/api/validators"
	"github.com/merakimart/backend/internal/coupons"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/logger"
)

type couponSetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type couponBulkRequest struct {
	Prefix string                    `json:"prefix" validate:"required,min=2,max=12"`
	Count  int                       `json:"count" validate:"required,min=1,max=500"`
	Coupon coupons.CreateCouponInput `json:"coupon" validate:"required"`
}

// AdminCouponCreate registers a single coupon code.
func AdminCouponCreate(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var body coupons.CreateCouponInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, coupon)
	}
}

// AdminCouponList returns every coupon for the admin dashboard.
func AdminCouponList(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// AdminCouponSetActive flips a coupon on or off.
func AdminCouponSetActive(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		couponID, err := uuid.Parse(chi.URLParam(r, "couponId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coupon id"))
			return
		}

		var body couponSetActiveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.SetActive(r.Context(), couponID, *body.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, coupon)
	}
}

// AdminCouponBulk mints a batch of prefixed codes sharing one rule set.
func AdminCouponBulk(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var body couponBulkRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.GenerateBulk(r.Context(), body.Prefix, body.Count, body.Coupon)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, batch)
	}
}
