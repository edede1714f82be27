package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/merakimart/backend/api/responses"
	"github.com/merakimart/backend/api/validators"
	internalorders "github.com/merakimart/backend/internal/orders"
	"github.com/merakimart/backend/pkg/config"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/logger"
	"github.com/merakimart/backend/pkg/razorpay"
)

// webhookBodyLimit caps how much of a gateway callback we will buffer.
const webhookBodyLimit = 1 << 20

type razorpayWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// RazorpayVerify settles an order from the signed triple the checkout widget
// posts back. Safe to call unauthenticated: the HMAC is the proof.
func RazorpayVerify(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var body internalorders.VerifyPaymentInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.VerifyPayment(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// RazorpayWebhook consumes gateway push notifications. Failed payments are
// recorded here; captures settle through the verify callback, which carries
// the checkout signature, so they are acknowledged without action.
func RazorpayWebhook(svc internalorders.Service, cfg config.RazorpayConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get("X-Razorpay-Signature"))
		if !razorpay.VerifyWebhookSignature(payload, signature, cfg.WebhookSecret) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var event razorpayWebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook event"))
			return
		}

		switch event.Event {
		case "payment.failed":
			gatewayOrderID := strings.TrimSpace(event.Payload.Payment.Entity.OrderID)
			if gatewayOrderID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing order id in webhook"))
				return
			}
			if _, err := svc.MarkPaymentFailed(r.Context(), gatewayOrderID); err != nil {
				if pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
					// Gateway retries webhooks; an unknown order is not ours to fail on.
					responses.WriteSuccess(w, map[string]string{"status": "ignored"})
					return
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		default:
			if logg != nil {
				ctx := logg.WithField(r.Context(), "webhook_event", event.Event)
				logg.Info(ctx, "razorpay webhook acknowledged")
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
