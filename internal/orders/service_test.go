package orders

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
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
	"github.com/merakimart/backend/pkg/razorpay"
	"github.com/merakimart/backend/pkg/types"
)

type stubOrderRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) OrderRepository { return s }

func (s *stubOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrderRepo) FindByRazorpayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.RazorpayOrderID != nil && *order.RazorpayOrderID == gatewayOrderID {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) Save(ctx context.Context, order *models.Order) error {
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrderRepo) List(ctx context.Context, query ListOrdersInput) (*OrderListResult, error) {
	result := &OrderListResult{}
	for _, order := range s.orders {
		if query.UserID != nil && order.UserID != *query.UserID {
			continue
		}
		if query.Status != nil && order.Status != *query.Status {
			continue
		}
		result.Orders = append(result.Orders, *order)
	}
	return result, nil
}

func (s *stubOrderRepo) ListPendingRazorpayBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	for _, order := range s.orders {
		if order.PaymentMethod != enums.PaymentMethodRazorpay {
			continue
		}
		if order.PaymentStatus != enums.PaymentStatusPending || order.Status != enums.OrderStatusProcessing {
			continue
		}
		if !order.CreatedAt.Before(cutoff) {
			continue
		}
		rows = append(rows, *order)
	}
	return rows, nil
}

type stubCartRepo struct {
	cart       *models.Cart
	cleared    bool
	recomputed int
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) cart.CartRepository { return s }

func (s *stubCartRepo) Create(ctx context.Context, record *models.Cart) (*models.Cart, error) {
	s.cart = record
	return record, nil
}

func (s *stubCartRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

func (s *stubCartRepo) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) FindItemByID(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCartRepo) UpsertItem(ctx context.Context, item *models.CartItem) error { return nil }

func (s *stubCartRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return nil
}

func (s *stubCartRepo) DeleteAllItems(ctx context.Context, cartID uuid.UUID) error {
	s.cart.Items = nil
	s.cleared = true
	return nil
}

func (s *stubCartRepo) SetCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error {
	s.cart.CouponID = couponID
	return nil
}

func (s *stubCartRepo) RecomputeTotals(ctx context.Context, cartID uuid.UUID) error {
	s.recomputed++
	return nil
}

type stubCouponRepo struct {
	coupon    *models.Coupon
	consumeOK bool
	consumed  int
	released  int
}

func (s *stubCouponRepo) WithTx(tx *gorm.DB) coupons.CouponRepository { return s }

func (s *stubCouponRepo) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	return coupon, nil
}

func (s *stubCouponRepo) CreateBatch(ctx context.Context, batch []models.Coupon) error { return nil }

func (s *stubCouponRepo) Update(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	return coupon, nil
}

func (s *stubCouponRepo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCouponRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	if s.coupon == nil || s.coupon.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.coupon, nil
}

func (s *stubCouponRepo) List(ctx context.Context) ([]models.Coupon, error) { return nil, nil }

func (s *stubCouponRepo) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	s.consumed++
	return s.consumeOK, nil
}

func (s *stubCouponRepo) Release(ctx context.Context, id uuid.UUID) error {
	s.released++
	return nil
}

type stubProductRepo struct {
	products    map[uuid.UUID]*models.Product
	decrementOK bool
	decremented map[uuid.UUID]int
	restored    map[uuid.UUID]int
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{
		products:    map[uuid.UUID]*models.Product{},
		decrementOK: true,
		decremented: map[uuid.UUID]int{},
		restored:    map[uuid.UUID]int{},
	}
}

func (s *stubProductRepo) WithTx(tx *gorm.DB) catalog.ProductRepository { return s }

func (s *stubProductRepo) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	return product, nil
}

func (s *stubProductRepo) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	return product, nil
}

func (s *stubProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (s *stubProductRepo) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProductRepo) ListProducts(ctx context.Context, query catalog.ListProductsInput) (*catalog.ProductListResult, error) {
	return &catalog.ProductListResult{}, nil
}

func (s *stubProductRepo) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if !s.decrementOK {
		return false, nil
	}
	s.decremented[productID] += qty
	return true, nil
}

func (s *stubProductRepo) RestoreStock(ctx context.Context, productID uuid.UUID, qty int) error {
	s.restored[productID] += qty
	return nil
}

type stubSettingsLoader struct {
	settings *models.StoreSettings
}

func (s *stubSettingsLoader) Get(ctx context.Context) (*models.StoreSettings, error) {
	return s.settings, nil
}

type stubGiftCards struct {
	card     *models.GiftCard
	debited  int64
	refunded int
}

func (s *stubGiftCards) GetByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	if s.card == nil || s.card.Code != code {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gift card not found")
	}
	return s.card, nil
}

func (s *stubGiftCards) DebitTx(ctx context.Context, tx *gorm.DB, card *models.GiftCard, userID uuid.UUID, orderID *uuid.UUID, amountPaise int64) (*models.GiftCardRedemption, error) {
	s.debited += amountPaise
	card.BalancePaise -= amountPaise
	return &models.GiftCardRedemption{
		ID:          uuid.New(),
		GiftCardID:  card.ID,
		UserID:      userID,
		OrderID:     orderID,
		AmountPaise: amountPaise,
	}, nil
}

func (s *stubGiftCards) RefundOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	s.refunded++
	return s.debited, nil
}

type stubLoyalty struct {
	accruedPaise []int64
	bonusPaidTo  []uuid.UUID
}

func (s *stubLoyalty) AccrueOrderTx(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, totalPaise int64) (int, error) {
	s.accruedPaise = append(s.accruedPaise, totalPaise)
	return int(totalPaise / 10000), nil
}

func (s *stubLoyalty) ReferralBonusTx(ctx context.Context, tx *gorm.DB, referrerID, referredUserID uuid.UUID) (int, error) {
	s.bonusPaidTo = append(s.bonusPaidTo, referrerID)
	return 100, nil
}

type stubUserLoader struct {
	user *models.User
}

func (s *stubUserLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type stubGateway struct {
	createdAmounts []int64
}

func (s *stubGateway) CreateOrder(ctx context.Context, receipt string, amountPaise int64) (*razorpay.GatewayOrder, error) {
	s.createdAmounts = append(s.createdAmounts, amountPaise)
	return &razorpay.GatewayOrder{
		ID:          "order_rzp_test1",
		AmountPaise: amountPaise,
		Currency:    "INR",
		Receipt:     receipt,
	}, nil
}

func (s *stubGateway) KeyID() string { return "rzp_test_key" }

func (s *stubGateway) KeySecret() string { return "rzp_test_secret" }

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type orderFixture struct {
	svc       Service
	repo      *stubOrderRepo
	carts     *stubCartRepo
	coupons   *stubCouponRepo
	products  *stubProductRepo
	giftCards *stubGiftCards
	loyalty   *stubLoyalty
	users     *stubUserLoader
	gateway   *stubGateway
	events    *stubEmitter

	userID    uuid.UUID
	productID uuid.UUID
}

// newOrderFixture seeds a cart with one line: 2 x 40000 paise. Store settings
// charge 5000 shipping below a 100000 free-shipping floor.
func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	userID := uuid.New()
	productID := uuid.New()
	product := &models.Product{
		ID:         productID,
		Name:       "Steel Bottle",
		PricePaise: 40000,
		Stock:      10,
		Active:     true,
	}

	f := &orderFixture{
		repo:      newStubOrderRepo(),
		carts:     &stubCartRepo{},
		coupons:   &stubCouponRepo{consumeOK: true},
		products:  newStubProductRepo(),
		giftCards: &stubGiftCards{},
		loyalty:   &stubLoyalty{},
		users:     &stubUserLoader{},
		gateway:   &stubGateway{},
		events:    &stubEmitter{},
		userID:    userID,
		productID: productID,
	}
	f.products.products[productID] = product
	f.users.user = &models.User{ID: userID}
	f.carts.cart = &models.Cart{
		ID:            uuid.New(),
		UserID:        userID,
		SubtotalPaise: 80000,
		Items: []models.CartItem{
			{ID: uuid.New(), ProductID: productID, Quantity: 2, UnitPricePaise: 40000, Product: product},
		},
	}

	svc, err := NewService(ServiceParams{
		Repo:      f.repo,
		Carts:     f.carts,
		Coupons:   f.coupons,
		Products:  f.products,
		Settings:  &stubSettingsLoader{settings: &models.StoreSettings{ShippingFeePaise: 5000, FreeShippingMinPaise: 100000}},
		GiftCards: f.giftCards,
		Loyalty:   f.loyalty,
		Users:     f.users,
		Gateway:   f.gateway,
		Tx:        stubTxRunner{},
		Events:    f.events,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func shippingAddress() types.Address {
	return types.Address{
		FullName:   "Asha Rao",
		Phone:      "9000000000",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "Karnataka",
		PostalCode: "560001",
		Country:    "IN",
	}
}

func signPayment(gatewayOrderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func eventTypes(events []outbox.DomainEvent) []enums.OutboxEventType {
	var out []enums.OutboxEventType
	for _, event := range events {
		out = append(out, event.EventType)
	}
	return out
}

func hasEvent(events []outbox.DomainEvent, eventType enums.OutboxEventType) bool {
	for _, event := range events {
		if event.EventType == eventType {
			return true
		}
	}
	return false
}

func TestServiceCheckoutCODCreatesOrderAndClearsCart(t *testing.T) {
	f := newOrderFixture(t)

	result, err := f.svc.Checkout(context.Background(), f.userID, CheckoutInput{
		Method:          enums.PaymentMethodCOD,
		ShippingAddress: shippingAddress(),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	order := result.Order
	if order.Status != enums.OrderStatusProcessing || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("unexpected state %s/%s", order.Status, order.PaymentStatus)
	}
	if order.SubtotalPaise != 80000 || order.ShippingPaise != 5000 || order.TotalPaise != 85000 {
		t.Fatalf("unexpected amounts: subtotal=%d shipping=%d total=%d",
			order.SubtotalPaise, order.ShippingPaise, order.TotalPaise)
	}
	if result.AmountDuePaise != 85000 {
		t.Fatalf("expected 85000 due, got %d", result.AmountDuePaise)
	}
	if len(order.Items) != 1 || order.Items[0].ProductName != "Steel Bottle" || order.Items[0].LinePaise != 80000 {
		t.Fatalf("unexpected items: %+v", order.Items)
	}
	if f.products.decremented[f.productID] != 2 {
		t.Fatalf("expected stock decrement of 2, got %d", f.products.decremented[f.productID])
	}
	if !f.carts.cleared {
		t.Fatal("expected cart cleared")
	}
	if !hasEvent(f.events.events, enums.EventOrderCreated) {
		t.Fatalf("expected order created event, got %v", eventTypes(f.events.events))
	}
}

func TestServiceCheckoutRejectsEmptyCart(t *testing.T) {
	f := newOrderFixture(t)
	f.carts.cart.Items = nil

	_, err := f.svc.Checkout(context.Background(), f.userID, CheckoutInput{
		Method:          enums.PaymentMethodCOD,
		ShippingAddress: shippingAddress(),
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceCheckoutRejectsStockShortfall(t *testing.T) {
	f := newOrderFixture(t)
	f.products.decrementOK = false

	_, err := f.svc.Checkout(context.Background(), f.userID, CheckoutInput{
		Method:          enums.PaymentMethodCOD,
		ShippingAddress: shippingAddress(),
	})
	if pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.repo.orders) != 0 {
		t.Fatal("expected no order persisted")
	}
}

func TestServiceCheckoutConsumesAttachedCoupon(t *testing.T) {
	f := newOrderFixture(t)
	coupon := &models.Coupon{
		ID:            uuid.New(),
		Code:          "SAVE10",
		DiscountType:  enums.DiscountTypePercentage,
		Value:         10,
		MinOrderPaise: 50000,
		Active:        true,
	}
	f.coupons.coupon = coupon
	f.carts.cart.CouponID = &coupon.ID
	// bump the line so the discounted payable clears the free shipping floor
	f.carts.cart.Items[0].Quantity = 3
	f.carts.cart.SubtotalPaise = 120000

	result, err := f.svc.Checkout(context.Background(), f.userID, CheckoutInput{
		Method:          enums.PaymentMethodCOD,
		ShippingAddress: shippingAddress(),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	order := result.Order
	if order.DiscountPaise != 12000 || order.ShippingPaise != 0 || order.TotalPaise != 108000 {
		t.Fatalf("unexpected amounts: discount=%d shipping=%d total=%d",
			order.DiscountPaise, order.ShippingPaise, order.TotalPaise)
	}
	if order.CouponCode == nil || *order.CouponCode != "SAVE10" {
		t.Fatalf("expected coupon code snapshot, got %v", order.CouponCode)
	}
	if f.coupons.consumed != 1 {
		t.Fatalf("expected one consume, got %d", f.coupons.consumed)
	}
}

func TestServiceCheckoutRejectsExhaustedCoupon(t *testing.T) {
	f := newOrderFixture(t)
	coupon := &models.Coupon{
		ID:           uuid.New(),
		Code:         "SAVE10",
		DiscountType: enums.DiscountTypePercentage,
		Value:        10,
		Active:       true,
	}
	f.coupons.coupon = coupon
	f.coupons.consumeOK = false
	f.carts.cart.CouponID = &coupon.ID

	_, err := f.svc.Checkout(context.Background(), f.userID, CheckoutInput{
		Method:          enums.PaymentMethodCOD,
		ShippingAddress: shippingAddress(),
	})
	typed := pkgerrors.As(err)
	if typed.Code() != pkgerrors.CodeConflict || typed.Message() != "coupon exhausted" {
		t.Fatalf("expected coupon exhausted conflict, got %v", err)
	}
}

func TestServiceCheckoutRazorpayKeepsCart(t *testing.T) {
	f := newOrderFixture(t)

	result, err := f.svc.Checkout(context.Background(), f.userID, CheckoutInput{
		Method:          enums.PaymentMethodRazorpay,
		ShippingAddress: shippingAddress(),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if result.RazorpayOrderID != "order_rzp_test1" || result.RazorpayKeyID != "rzp_test_key" {
		t.Fatalf("unexpected gateway handoff: %+v", result)
	}
	if result.Order.RazorpayOrderID == nil || *result.Order.RazorpayOrderID != "order_rzp_test1" {
		t.Fatal("expected gateway order id persisted")
	}
	if len(f.gateway.createdAmounts) != 1 || f.gateway.createdAmounts[0] != 85000 {
		t.Fatalf("unexpected gateway amounts: %v", f.gateway.createdAmounts)
	}
	if f.carts.cleared {
		t.Fatal("cart must stay intact until the payment verifies")
	}
}

func TestServiceCheckoutGiftCardCoversTotal(t *testing.T) {
	f := newOrderFixture(t)
	f.giftCards.card = &models.GiftCard{
		ID:           uuid.New(),
		Code:         "GCAB12CD34EF5678",
		BalancePaise: 200000,
		Status:       enums.GiftCardStatusActive,
	}
	code := "GCAB12CD34EF5678"

	result, err := f.svc.Checkout(context.Background(), f.userID, CheckoutInput{
		Method:          enums.PaymentMethodRazorpay,
		ShippingAddress: shippingAddress(),
		GiftCardCode:    &code,
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if result.AmountDuePaise != 0 {
		t.Fatalf("expected nothing due, got %d", result.AmountDuePaise)
	}
	if result.Order.GiftCardPaise != 85000 || f.giftCards.debited != 85000 {
		t.Fatalf("expected 85000 debited, got order=%d stub=%d", result.Order.GiftCardPaise, f.giftCards.debited)
	}
	if result.Order.PaymentStatus != enums.PaymentStatusPaid || result.Order.PaidAt == nil {
		t.Fatal("expected order settled by the gift card")
	}
	if len(f.gateway.createdAmounts) != 0 {
		t.Fatal("expected no gateway order")
	}
	if !f.carts.cleared {
		t.Fatal("expected cart cleared")
	}
}

func TestServiceVerifyPaymentMarksPaidOnce(t *testing.T) {
	f := newOrderFixture(t)
	result, err := f.svc.Checkout(context.Background(), f.userID, CheckoutInput{
		Method:          enums.PaymentMethodRazorpay,
		ShippingAddress: shippingAddress(),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	input := VerifyPaymentInput{
		RazorpayOrderID:   result.RazorpayOrderID,
		RazorpayPaymentID: "pay_abc123",
		RazorpaySignature: signPayment(result.RazorpayOrderID, "pay_abc123", "rzp_test_secret"),
	}
	order, err := f.svc.VerifyPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid || order.PaidAt == nil {
		t.Fatal("expected order paid")
	}
	if order.RazorpayPaymentID == nil || *order.RazorpayPaymentID != "pay_abc123" {
		t.Fatal("expected payment id stored")
	}
	if !f.carts.cleared {
		t.Fatal("expected cart cleared after verification")
	}
	if !hasEvent(f.events.events, enums.EventOrderPaid) {
		t.Fatalf("expected order paid event, got %v", eventTypes(f.events.events))
	}

	// replayed callback is a no-op
	paidEvents := len(f.events.events)
	if _, err := f.svc.VerifyPayment(context.Background(), input); err != nil {
		t.Fatalf("replayed VerifyPayment: %v", err)
	}
	if len(f.events.events) != paidEvents {
		t.Fatal("replay must not emit again")
	}
}

func TestServiceVerifyPaymentRejectsBadSignature(t *testing.T) {
	f := newOrderFixture(t)
	result, err := f.svc.Checkout(context.Background(), f.userID, CheckoutInput{
		Method:          enums.PaymentMethodRazorpay,
		ShippingAddress: shippingAddress(),
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	_, err = f.svc.VerifyPayment(context.Background(), VerifyPaymentInput{
		RazorpayOrderID:   result.RazorpayOrderID,
		RazorpayPaymentID: "pay_abc123",
		RazorpaySignature: "deadbeef",
	})
	typed := pkgerrors.As(err)
	if typed.Code() != pkgerrors.CodeValidation || typed.Message() != "invalid payment signature" {
		t.Fatalf("expected signature rejection, got %v", err)
	}

	stored := f.repo.orders[result.Order.ID]
	if stored.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("order must stay pending, got %s", stored.PaymentStatus)
	}
}

func TestServiceUpdateStatusEnforcesTransitions(t *testing.T) {
	f := newOrderFixture(t)
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        f.userID,
		Status:        enums.OrderStatusProcessing,
		PaymentMethod: enums.PaymentMethodCOD,
		PaymentStatus: enums.PaymentStatusPending,
	}
	f.repo.orders[order.ID] = order

	_, err := f.svc.UpdateStatus(context.Background(), nil, order.ID, enums.OrderStatusDelivered)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for processing->delivered, got %v", err)
	}

	order.Status = enums.OrderStatusDelivered
	_, err = f.svc.UpdateStatus(context.Background(), nil, order.ID, enums.OrderStatusCancelled)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for delivered->cancelled, got %v", err)
	}
}

func TestServiceUpdateStatusDeliveredSettlesCODAndLoyalty(t *testing.T) {
	f := newOrderFixture(t)
	referrerID := uuid.New()
	f.users.user.ReferredByID = &referrerID
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        f.userID,
		Status:        enums.OrderStatusShipped,
		PaymentMethod: enums.PaymentMethodCOD,
		PaymentStatus: enums.PaymentStatusPending,
		TotalPaise:    85000,
	}
	f.repo.orders[order.ID] = order

	updated, err := f.svc.UpdateStatus(context.Background(), nil, order.ID, enums.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if updated.Status != enums.OrderStatusDelivered || updated.DeliveredAt == nil {
		t.Fatal("expected delivered state")
	}
	if updated.PaymentStatus != enums.PaymentStatusPaid || updated.PaidAt == nil {
		t.Fatal("expected COD settled on delivery")
	}
	if len(f.loyalty.accruedPaise) != 1 || f.loyalty.accruedPaise[0] != 85000 {
		t.Fatalf("expected loyalty accrual for 85000, got %v", f.loyalty.accruedPaise)
	}
	if len(f.loyalty.bonusPaidTo) != 1 || f.loyalty.bonusPaidTo[0] != referrerID {
		t.Fatalf("expected referral bonus for referrer, got %v", f.loyalty.bonusPaidTo)
	}
	if !hasEvent(f.events.events, enums.EventOrderPaid) || !hasEvent(f.events.events, enums.EventOrderDelivered) {
		t.Fatalf("expected paid and delivered events, got %v", eventTypes(f.events.events))
	}
}

func TestServiceCancelUnwindsStockCouponAndGiftCard(t *testing.T) {
	f := newOrderFixture(t)
	couponID := uuid.New()
	couponCode := "SAVE10"
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        f.userID,
		Status:        enums.OrderStatusProcessing,
		PaymentMethod: enums.PaymentMethodRazorpay,
		PaymentStatus: enums.PaymentStatusPending,
		CouponID:      &couponID,
		CouponCode:    &couponCode,
		GiftCardPaise: 20000,
		TotalPaise:    85000,
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: f.productID, Quantity: 2, UnitPricePaise: 40000, LinePaise: 80000},
		},
	}
	f.repo.orders[order.ID] = order

	updated, err := f.svc.Cancel(context.Background(), f.userID, order.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if updated.Status != enums.OrderStatusCancelled || updated.CancelledAt == nil {
		t.Fatal("expected cancelled state")
	}
	if f.products.restored[f.productID] != 2 {
		t.Fatalf("expected stock restore of 2, got %d", f.products.restored[f.productID])
	}
	if f.coupons.released != 1 {
		t.Fatalf("expected coupon release, got %d", f.coupons.released)
	}
	if f.giftCards.refunded != 1 {
		t.Fatalf("expected gift card refund, got %d", f.giftCards.refunded)
	}
	if !hasEvent(f.events.events, enums.EventOrderCancelled) {
		t.Fatalf("expected cancelled event, got %v", eventTypes(f.events.events))
	}
}

func TestServiceCancelRejectsPaidOrder(t *testing.T) {
	f := newOrderFixture(t)
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        f.userID,
		Status:        enums.OrderStatusProcessing,
		PaymentMethod: enums.PaymentMethodRazorpay,
		PaymentStatus: enums.PaymentStatusPaid,
	}
	f.repo.orders[order.ID] = order

	_, err := f.svc.Cancel(context.Background(), f.userID, order.ID)
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestServiceCancelHidesForeignOrder(t *testing.T) {
	f := newOrderFixture(t)
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Status:        enums.OrderStatusProcessing,
		PaymentMethod: enums.PaymentMethodCOD,
		PaymentStatus: enums.PaymentStatusPending,
	}
	f.repo.orders[order.ID] = order

	_, err := f.svc.Cancel(context.Background(), f.userID, order.ID)
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceExpirePendingPaymentsSweepsStaleOrders(t *testing.T) {
	f := newOrderFixture(t)
	gatewayOrderID := "order_rzp_stale"
	stale := &models.Order{
		ID:              uuid.New(),
		UserID:          f.userID,
		Status:          enums.OrderStatusProcessing,
		PaymentMethod:   enums.PaymentMethodRazorpay,
		PaymentStatus:   enums.PaymentStatusPending,
		RazorpayOrderID: &gatewayOrderID,
		CreatedAt:       time.Now().Add(-2 * time.Hour),
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: f.productID, Quantity: 1, UnitPricePaise: 40000, LinePaise: 40000},
		},
	}
	fresh := &models.Order{
		ID:            uuid.New(),
		UserID:        f.userID,
		Status:        enums.OrderStatusProcessing,
		PaymentMethod: enums.PaymentMethodRazorpay,
		PaymentStatus: enums.PaymentStatusPending,
		CreatedAt:     time.Now(),
	}
	f.repo.orders[stale.ID] = stale
	f.repo.orders[fresh.ID] = fresh

	expired, err := f.svc.ExpirePendingPayments(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("ExpirePendingPayments: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}

	swept := f.repo.orders[stale.ID]
	if swept.Status != enums.OrderStatusCancelled || swept.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("unexpected swept state %s/%s", swept.Status, swept.PaymentStatus)
	}
	if f.products.restored[f.productID] != 1 {
		t.Fatalf("expected stock restore of 1, got %d", f.products.restored[f.productID])
	}
	if f.repo.orders[fresh.ID].Status != enums.OrderStatusProcessing {
		t.Fatal("fresh order must not be swept")
	}
	if !hasEvent(f.events.events, enums.EventOrderPaymentExpired) {
		t.Fatalf("expected payment expired event, got %v", eventTypes(f.events.events))
	}
}
