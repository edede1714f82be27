package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/internal/coupons"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
)

type stubCartRepo struct {
	cart       *models.Cart
	findErr    error
	item       *models.CartItem
	upserted   *models.CartItem
	deleted    bool
	cleared    bool
	couponID   *uuid.UUID
	couponSet  int
	recomputed int
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) CartRepository { return s }

func (s *stubCartRepo) Create(ctx context.Context, record *models.Cart) (*models.Cart, error) {
	record.ID = uuid.New()
	s.cart = record
	s.findErr = nil
	return record, nil
}

func (s *stubCartRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.cart, nil
}

func (s *stubCartRepo) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	if s.item == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.item, nil
}

func (s *stubCartRepo) FindItemByID(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	if s.item == nil || s.item.ID != itemID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.item, nil
}

func (s *stubCartRepo) UpsertItem(ctx context.Context, item *models.CartItem) error {
	s.upserted = item
	return nil
}

func (s *stubCartRepo) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	s.deleted = true
	return nil
}

func (s *stubCartRepo) DeleteAllItems(ctx context.Context, cartID uuid.UUID) error {
	s.cleared = true
	return nil
}

func (s *stubCartRepo) SetCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error {
	s.couponID = couponID
	s.couponSet++
	if s.cart != nil {
		s.cart.CouponID = couponID
		if couponID == nil {
			s.cart.Coupon = nil
		}
	}
	return nil
}

func (s *stubCartRepo) RecomputeTotals(ctx context.Context, cartID uuid.UUID) error {
	s.recomputed++
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubProductLoader struct {
	product *models.Product
	err     error
}

func (s *stubProductLoader) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

type stubCouponQuoter struct {
	quote *coupons.Quote
	err   error
}

func (s *stubCouponQuoter) Validate(ctx context.Context, code string, subtotalPaise int64) (*coupons.Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func newTestService(t *testing.T, repo *stubCartRepo, loader *stubProductLoader, quoter *stubCouponQuoter) Service {
	t.Helper()
	if quoter == nil {
		quoter = &stubCouponQuoter{}
	}
	svc, err := NewService(repo, stubTxRunner{}, loader, quoter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func activeProduct(price int64, stock int) *models.Product {
	return &models.Product{ID: uuid.New(), PricePaise: price, Stock: stock, Active: true}
}

func TestServiceGetCreatesCartLazily(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{findErr: gorm.ErrRecordNotFound}
	svc := newTestService(t, repo, &stubProductLoader{}, nil)

	userID := uuid.New()
	got, err := svc.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cart.UserID != userID {
		t.Fatalf("cart bound to wrong user: %s", got.Cart.UserID)
	}
	if repo.cart == nil {
		t.Fatal("expected cart row to be created")
	}
}

func TestServiceAddItemRejectsInactiveProduct(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{cart: &models.Cart{ID: uuid.New(), UserID: uuid.New()}}
	product := activeProduct(10000, 5)
	product.Active = false
	svc := newTestService(t, repo, &stubProductLoader{product: product}, nil)

	_, err := svc.AddItem(context.Background(), repo.cart.UserID, product.ID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceAddItemRejectsInsufficientStock(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{cart: &models.Cart{ID: uuid.New(), UserID: uuid.New()}}
	svc := newTestService(t, repo, &stubProductLoader{product: activeProduct(10000, 2)}, nil)

	_, err := svc.AddItem(context.Background(), repo.cart.UserID, uuid.New(), 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceAddItemMergesExistingLine(t *testing.T) {
	t.Parallel()

	cartID := uuid.New()
	productID := uuid.New()
	repo := &stubCartRepo{
		cart: &models.Cart{ID: cartID, UserID: uuid.New()},
		item: &models.CartItem{CartID: cartID, ProductID: productID, Quantity: 2, UnitPricePaise: 9000},
	}
	product := activeProduct(10000, 10)
	product.ID = productID
	svc := newTestService(t, repo, &stubProductLoader{product: product}, nil)

	_, err := svc.AddItem(context.Background(), repo.cart.UserID, productID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.upserted == nil || repo.upserted.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %+v", repo.upserted)
	}
	if repo.upserted.UnitPricePaise != 10000 {
		t.Fatalf("expected fresh unit price capture, got %d", repo.upserted.UnitPricePaise)
	}
	if repo.recomputed != 1 {
		t.Fatalf("expected totals recompute, got %d", repo.recomputed)
	}
}

func TestServiceUpdateQuantityZeroRemovesLine(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{cart: &models.Cart{ID: uuid.New(), UserID: uuid.New()}}
	svc := newTestService(t, repo, &stubProductLoader{product: activeProduct(10000, 10)}, nil)

	_, err := svc.UpdateItemQuantity(context.Background(), repo.cart.UserID, uuid.New(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.deleted {
		t.Fatal("expected line delete")
	}
	if repo.recomputed != 1 {
		t.Fatalf("expected totals recompute, got %d", repo.recomputed)
	}
}

func TestServiceAddItemEnforcesLineCap(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{cart: &models.Cart{ID: uuid.New(), UserID: uuid.New()}}
	svc := newTestService(t, repo, &stubProductLoader{product: activeProduct(10000, 500)}, nil)

	_, err := svc.AddItem(context.Background(), repo.cart.UserID, uuid.New(), maxLineQuantity+1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceRemoveItemRejectsForeignLine(t *testing.T) {
	t.Parallel()

	itemID := uuid.New()
	repo := &stubCartRepo{
		cart: &models.Cart{ID: uuid.New(), UserID: uuid.New()},
		item: &models.CartItem{ID: itemID, CartID: uuid.New(), ProductID: uuid.New(), Quantity: 1},
	}
	svc := newTestService(t, repo, &stubProductLoader{}, nil)

	_, err := svc.RemoveItem(context.Background(), repo.cart.UserID, itemID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
	if repo.deleted {
		t.Fatal("foreign line must not be deleted")
	}
}

func TestServiceApplyCouponAttachesReference(t *testing.T) {
	t.Parallel()

	coupon := &models.Coupon{
		ID:           uuid.New(),
		Code:         "SAVE200",
		DiscountType: enums.DiscountTypeFixed,
		Value:        20000,
		Active:       true,
	}
	repo := &stubCartRepo{
		cart: &models.Cart{ID: uuid.New(), UserID: uuid.New(), SubtotalPaise: 120000},
	}
	quoter := &stubCouponQuoter{quote: &coupons.Quote{Coupon: coupon, DiscountPaise: 20000}}
	svc := newTestService(t, repo, &stubProductLoader{}, quoter)

	got, err := svc.ApplyCoupon(context.Background(), repo.cart.UserID, "save200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.couponID == nil || *repo.couponID != coupon.ID {
		t.Fatalf("expected coupon attached, got %v", repo.couponID)
	}
	if got.TotalPaise != 120000 {
		// The stub does not preload the coupon relation, so the preview
		// falls back to the plain subtotal.
		t.Fatalf("unexpected total: %d", got.TotalPaise)
	}
}

func TestServiceApplyCouponFailureLeavesCartUnchanged(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{
		cart: &models.Cart{ID: uuid.New(), UserID: uuid.New(), SubtotalPaise: 50000},
	}
	quoter := &stubCouponQuoter{err: pkgerrors.New(pkgerrors.CodeValidation, "order subtotal below coupon minimum")}
	svc := newTestService(t, repo, &stubProductLoader{}, quoter)

	_, err := svc.ApplyCoupon(context.Background(), repo.cart.UserID, "BIGSPEND")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
	if repo.couponSet != 0 {
		t.Fatal("failed validation must not touch the cart")
	}
}

func TestServiceClearDetachesCoupon(t *testing.T) {
	t.Parallel()

	couponID := uuid.New()
	repo := &stubCartRepo{
		cart: &models.Cart{ID: uuid.New(), UserID: uuid.New(), CouponID: &couponID, SubtotalPaise: 80000},
	}
	svc := newTestService(t, repo, &stubProductLoader{}, nil)

	_, err := svc.Clear(context.Background(), repo.cart.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.cleared {
		t.Fatal("expected items cleared")
	}
	if repo.couponID != nil || repo.couponSet != 1 {
		t.Fatal("expected coupon detached")
	}
}

func TestSummarizePreviewsDiscount(t *testing.T) {
	t.Parallel()

	coupon := &models.Coupon{
		DiscountType:  enums.DiscountTypePercentage,
		Value:         10,
		MinOrderPaise: 50000,
	}

	got := summarize(&models.Cart{SubtotalPaise: 120000, Coupon: coupon})
	if got.DiscountPaise != 12000 || got.TotalPaise != 108000 {
		t.Fatalf("unexpected preview: %+v", got)
	}

	// Below the coupon minimum the preview shows no discount.
	got = summarize(&models.Cart{SubtotalPaise: 40000, Coupon: coupon})
	if got.DiscountPaise != 0 || got.TotalPaise != 40000 {
		t.Fatalf("unexpected preview: %+v", got)
	}
}
