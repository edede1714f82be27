package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/internal/cart"
	"github.com/merakimart/backend/internal/catalog"
	"github.com/merakimart/backend/internal/coupons"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/outbox/payloads"
	"github.com/merakimart/backend/pkg/razorpay"
	"github.com/merakimart/backend/pkg/types"
)

// paymentSweepBatch bounds how many stale Razorpay orders one sweep pass
// expires.
const paymentSweepBatch = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type settingsLoader interface {
	Get(ctx context.Context) (*models.StoreSettings, error)
}

type paymentGateway interface {
	CreateOrder(ctx context.Context, receipt string, amountPaise int64) (*razorpay.GatewayOrder, error)
	KeyID() string
	KeySecret() string
}

type loyaltyEngine interface {
	AccrueOrderTx(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, totalPaise int64) (int, error)
	ReferralBonusTx(ctx context.Context, tx *gorm.DB, referrerID, referredUserID uuid.UUID) (int, error)
}

type giftCardEngine interface {
	GetByCode(ctx context.Context, code string) (*models.GiftCard, error)
	DebitTx(ctx context.Context, tx *gorm.DB, card *models.GiftCard, userID uuid.UUID, orderID *uuid.UUID, amountPaise int64) (*models.GiftCardRedemption, error)
	RefundOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CheckoutInput carries everything the customer submits at checkout. The
// items themselves come from the server-side cart.
type CheckoutInput struct {
	Method          enums.PaymentMethod `json:"payment_method"`
	ShippingAddress types.Address       `json:"shipping_address"`
	GiftCardCode    *string             `json:"gift_card_code,omitempty"`
}

// CheckoutResult is returned to the client. For Razorpay orders it carries
// the gateway handoff; AmountDuePaise is what remains after any gift card.
type CheckoutResult struct {
	Order           *models.Order `json:"order"`
	RazorpayKeyID   string        `json:"razorpay_key_id,omitempty"`
	RazorpayOrderID string        `json:"razorpay_order_id,omitempty"`
	AmountDuePaise  int64         `json:"amount_due_paise"`
}

// VerifyPaymentInput is the signed triple Razorpay posts back after the
// customer completes the payment widget.
type VerifyPaymentInput struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// Service owns the order lifecycle: checkout, payment settlement, and the
// fulfillment state machine.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*CheckoutResult, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, query ListOrdersInput) (*OrderListResult, error)
	VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	UpdateStatus(ctx context.Context, actor *outbox.ActorRef, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ExpirePendingPayments(ctx context.Context, olderThan time.Duration) (int, error)
}

// ServiceParams bundles the order service dependencies.
type ServiceParams struct {
	Repo      OrderRepository
	Carts     cart.CartRepository
	Coupons   coupons.CouponRepository
	Products  catalog.ProductRepository
	Settings  settingsLoader
	GiftCards giftCardEngine
	Loyalty   loyaltyEngine
	Users     userLoader
	Gateway   paymentGateway
	Tx        txRunner
	Events    outboxEmitter
}

type service struct {
	repo      OrderRepository
	carts     cart.CartRepository
	coupons   coupons.CouponRepository
	products  catalog.ProductRepository
	settings  settingsLoader
	giftCards giftCardEngine
	loyalty   loyaltyEngine
	users     userLoader
	gateway   paymentGateway
	tx        txRunner
	events    outboxEmitter
	now       func() time.Time
}

// NewService validates the dependencies and returns the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Settings == nil {
		return nil, fmt.Errorf("settings loader required")
	}
	if params.GiftCards == nil {
		return nil, fmt.Errorf("gift card service required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty service required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:      params.Repo,
		carts:     params.Carts,
		coupons:   params.Coupons,
		products:  params.Products,
		settings:  params.Settings,
		giftCards: params.GiftCards,
		loyalty:   params.Loyalty,
		users:     params.Users,
		gateway:   params.Gateway,
		tx:        params.Tx,
		events:    params.Events,
		now:       time.Now,
	}, nil
}

// Checkout converts the user's cart into an order. Stock decrements, coupon
// consumption, gift card debit, and cart clearing all share one transaction,
// so a conflict anywhere rolls back everything. Razorpay checkouts keep the
// cart intact until the payment verifies.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*CheckoutResult, error) {
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}

	storeSettings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	var result *CheckoutResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		record, err := carts.FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
		}

		order := &models.Order{
			UserID:          userID,
			Status:          enums.OrderStatusProcessing,
			PaymentMethod:   input.Method,
			PaymentStatus:   enums.PaymentStatusPending,
			ShippingAddress: input.ShippingAddress,
		}

		products := s.products.WithTx(tx)
		var subtotal int64
		for _, item := range record.Items {
			product := item.Product
			if product == nil {
				product, err = products.FindByID(ctx, item.ProductID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
				}
			}
			if !product.Active {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %q is no longer available", product.Name))
			}
			decremented, err := products.DecrementStock(ctx, product.ID, item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !decremented {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("insufficient stock for %q", product.Name))
			}

			line := product.PricePaise * int64(item.Quantity)
			order.Items = append(order.Items, models.OrderItem{
				ProductID:      product.ID,
				ProductName:    product.Name,
				Quantity:       item.Quantity,
				UnitPricePaise: product.PricePaise,
				LinePaise:      line,
			})
			subtotal += line
		}
		order.SubtotalPaise = subtotal

		if record.CouponID != nil {
			if err := s.applyCoupon(ctx, tx, order, *record.CouponID); err != nil {
				return err
			}
		}

		payable := subtotal - order.DiscountPaise
		if payable < storeSettings.FreeShippingMinPaise {
			order.ShippingPaise = storeSettings.ShippingFeePaise
		}
		order.TotalPaise = payable + order.ShippingPaise

		repo := s.repo.WithTx(tx)
		created, err := repo.Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		due := created.TotalPaise
		if code := giftCardCode(input.GiftCardCode); code != "" && due > 0 {
			card, err := s.giftCards.GetByCode(ctx, code)
			if err != nil {
				return err
			}
			debit := card.BalancePaise
			if debit > due {
				debit = due
			}
			if _, err := s.giftCards.DebitTx(ctx, tx, card, userID, &created.ID, debit); err != nil {
				return err
			}
			created.GiftCardPaise = debit
			due -= debit
		}

		if input.Method == enums.PaymentMethodRazorpay && due > 0 {
			gatewayOrder, err := s.gateway.CreateOrder(ctx, created.ID.String(), due)
			if err != nil {
				return err
			}
			created.RazorpayOrderID = &gatewayOrder.ID
			result = &CheckoutResult{
				Order:           created,
				RazorpayKeyID:   s.gateway.KeyID(),
				RazorpayOrderID: gatewayOrder.ID,
				AmountDuePaise:  due,
			}
		} else {
			if due == 0 {
				// fully covered by the gift card, nothing left to collect
				now := s.now().UTC()
				created.PaymentStatus = enums.PaymentStatusPaid
				created.PaidAt = &now
			}
			if err := clearCartTx(ctx, carts, record); err != nil {
				return err
			}
			result = &CheckoutResult{Order: created, AmountDuePaise: due}
		}
		if err := repo.Save(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderCreatedEvent{
				OrderID:       created.ID,
				UserID:        userID,
				PaymentMethod: created.PaymentMethod,
				TotalPaise:    created.TotalPaise,
				ItemCount:     len(created.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyCoupon re-validates the attached coupon against the final subtotal and
// consumes one use. The cart preview never consumed anything, so eligibility
// can have changed since attach.
func (s *service) applyCoupon(ctx context.Context, tx *gorm.DB, order *models.Order, couponID uuid.UUID) error {
	couponRepo := s.coupons.WithTx(tx)
	coupon, err := couponRepo.FindByID(ctx, couponID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "attached coupon no longer exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if err := coupons.Eligible(coupon, order.SubtotalPaise, s.now()); err != nil {
		return err
	}
	consumed, err := couponRepo.Consume(ctx, coupon.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume coupon")
	}
	if !consumed {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon exhausted")
	}

	code := coupon.Code
	order.CouponID = &coupon.ID
	order.CouponCode = &code
	order.DiscountPaise = coupons.ComputeDiscount(coupon, order.SubtotalPaise)
	return nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// GetForUser hides other customers' orders behind the same not-found error.
func (s *service) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, query ListOrdersInput) (*OrderListResult, error) {
	if query.Status != nil && !query.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}
	result, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return result, nil
}

// VerifyPayment settles a Razorpay order after the gateway callback. The
// signature check runs before any writes; a replayed callback for an already
// paid order is a no-op.
func (s *service) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*models.Order, error) {
	gatewayOrderID := strings.TrimSpace(input.RazorpayOrderID)
	paymentID := strings.TrimSpace(input.RazorpayPaymentID)
	signature := strings.TrimSpace(input.RazorpaySignature)
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id, payment id, and signature are required")
	}

	order, err := s.findByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return order, nil
	}

	if !razorpay.VerifyPaymentSignature(gatewayOrderID, paymentID, signature, s.gateway.KeySecret()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}

		now := s.now().UTC()
		order.PaymentStatus = enums.PaymentStatusPaid
		order.RazorpayPaymentID = &paymentID
		order.RazorpaySignature = &signature
		order.PaidAt = &now
		if err := repo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment")
		}

		// the cart was left intact at checkout pending this confirmation
		carts := s.carts.WithTx(tx)
		record, err := carts.FindByUser(ctx, order.UserID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
			}
		} else if err := clearCartTx(ctx, carts, record); err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID},
			Data: payloads.OrderPaidEvent{
				OrderID:           order.ID,
				UserID:            order.UserID,
				AmountPaise:       order.TotalPaise - order.GiftCardPaise,
				RazorpayPaymentID: paymentID,
				PaidAt:            now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// MarkPaymentFailed records a failed gateway payment. The order stays
// processing so the customer can retry until the TTL sweep cancels it.
func (s *service) MarkPaymentFailed(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.findByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	switch order.PaymentStatus {
	case enums.PaymentStatusPaid:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	case enums.PaymentStatusFailed:
		return order, nil
	}

	order.PaymentStatus = enums.PaymentStatusFailed
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment failure")
	}
	return order, nil
}

// UpdateStatus moves an order through the fulfillment state machine. Delivery
// settles COD payment, accrues loyalty points, and pays the referrer's bonus
// on the referred user's first delivered order.
func (s *service) UpdateStatus(ctx context.Context, actor *outbox.ActorRef, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", next))
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("transition from %s to %s not allowed", order.Status, next))
		}

		now := s.now().UTC()
		switch next {
		case enums.OrderStatusShipped:
			if order.PaymentMethod == enums.PaymentMethodRazorpay && order.PaymentStatus != enums.PaymentStatusPaid {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed")
			}
			order.Status = next
			order.ShippedAt = &now
			if err := repo.Save(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order status")
			}
			if err := s.emitStatusEvent(ctx, tx, enums.EventOrderShipped, actor, order, now); err != nil {
				return err
			}

		case enums.OrderStatusDelivered:
			order.Status = next
			order.DeliveredAt = &now
			codSettled := false
			if order.PaymentMethod == enums.PaymentMethodCOD && order.PaymentStatus != enums.PaymentStatusPaid {
				order.PaymentStatus = enums.PaymentStatusPaid
				order.PaidAt = &now
				codSettled = true
			}
			if err := repo.Save(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order status")
			}
			if err := s.settleDeliveryTx(ctx, tx, order); err != nil {
				return err
			}
			if codSettled {
				err := s.events.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventOrderPaid,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Actor:         actor,
					Data: payloads.OrderPaidEvent{
						OrderID:     order.ID,
						UserID:      order.UserID,
						AmountPaise: order.TotalPaise - order.GiftCardPaise,
						PaidAt:      now,
					},
				})
				if err != nil {
					return err
				}
			}
			if err := s.emitStatusEvent(ctx, tx, enums.EventOrderDelivered, actor, order, now); err != nil {
				return err
			}

		case enums.OrderStatusCancelled:
			if err := s.cancelTx(ctx, tx, order, now); err != nil {
				return err
			}
			err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actor,
				Data: payloads.OrderCancelledEvent{
					OrderID:     order.ID,
					UserID:      order.UserID,
					CancelledAt: now,
					Reason:      "cancelled_by_admin",
				},
			})
			if err != nil {
				return err
			}
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel lets the customer back out while the order is still processing and
// unpaid. Anything later goes through support.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusProcessing || order.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancellation not allowed in current state")
		}

		now := s.now().UTC()
		if err := s.cancelTx(ctx, tx, order, now); err != nil {
			return err
		}
		updated = order
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				CancelledAt: now,
				Reason:      "cancelled_by_customer",
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExpirePendingPayments cancels Razorpay orders whose payment never arrived
// within the TTL. Each order is swept in its own transaction so one failure
// does not block the rest of the batch.
func (s *service) ExpirePendingPayments(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-olderThan)
	stale, err := s.repo.ListPendingRazorpayBefore(ctx, cutoff, paymentSweepBatch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}

	expired := 0
	for _, row := range stale {
		swept := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindByID(ctx, row.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			// the payment may have verified since the listing
			if order.Status != enums.OrderStatusProcessing || order.PaymentStatus != enums.PaymentStatusPending {
				return nil
			}

			now := s.now().UTC()
			order.PaymentStatus = enums.PaymentStatusFailed
			if err := s.cancelTx(ctx, tx, order, now); err != nil {
				return err
			}
			swept = true
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaymentExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderPaymentExpiredEvent{
					OrderID:   order.ID,
					UserID:    order.UserID,
					ExpiredAt: now,
				},
			})
		})
		if err != nil {
			return expired, err
		}
		if swept {
			expired++
		}
	}
	return expired, nil
}

// cancelTx flips the order to cancelled and unwinds its side effects: stock
// goes back, the consumed coupon use is released, and gift card debits are
// credited back. Callers emit their own cancellation event.
func (s *service) cancelTx(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) error {
	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now

	products := s.products.WithTx(tx)
	for _, item := range order.Items {
		if err := products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}
	if order.CouponID != nil {
		if err := s.coupons.WithTx(tx).Release(ctx, *order.CouponID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release coupon")
		}
	}
	if order.GiftCardPaise > 0 {
		if _, err := s.giftCards.RefundOrderTx(ctx, tx, order.ID); err != nil {
			return err
		}
	}
	if err := s.repo.WithTx(tx).Save(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order status")
	}
	return nil
}

// settleDeliveryTx accrues loyalty points for the delivered order and pays
// the referral bonus if this user was referred. Both calls are idempotent at
// the ledger level.
func (s *service) settleDeliveryTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if _, err := s.loyalty.AccrueOrderTx(ctx, tx, order.UserID, order.ID, order.TotalPaise); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user.ReferredByID != nil {
		if _, err := s.loyalty.ReferralBonusTx(ctx, tx, *user.ReferredByID, user.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) emitStatusEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor *outbox.ActorRef, order *models.Order, changedAt time.Time) error {
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStatusEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			Status:    order.Status,
			ChangedAt: changedAt,
		},
	})
}

func (s *service) findByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	order, err := s.repo.FindByRazorpayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// clearCartTx empties the cart that produced an order: items, coupon
// attachment, and the cached subtotal.
func clearCartTx(ctx context.Context, carts cart.CartRepository, record *models.Cart) error {
	if err := carts.DeleteAllItems(ctx, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
	}
	if record.CouponID != nil {
		if err := carts.SetCoupon(ctx, record.ID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach cart coupon")
		}
	}
	if err := carts.RecomputeTotals(ctx, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute cart totals")
	}
	return nil
}

func giftCardCode(code *string) string {
	if code == nil {
		return ""
	}
	return strings.TrimSpace(*code)
}
