package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/internal/coupons"
	dbpkg "github.com/merakimart/backend/pkg/db"
	"github.com/merakimart/backend/pkg/db/models"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
)

// maxLineQuantity caps a single cart line. Bulk orders go through support.
const maxLineQuantity = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type couponQuoter interface {
	Validate(ctx context.Context, code string, subtotalPaise int64) (*coupons.Quote, error)
}

// Summary is a cart plus its computed coupon preview. DiscountPaise is
// display-only; coupon eligibility is re-checked when the order is placed.
type Summary struct {
	Cart          *models.Cart `json:"cart"`
	DiscountPaise int64        `json:"discount_paise"`
	TotalPaise    int64        `json:"total_paise"`
}

// Service exposes cart operations. Carts are one-per-user and created lazily
// on first read or write.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*Summary, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Summary, error)
	UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Summary, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*Summary, error)
	ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*Summary, error)
	RemoveCoupon(ctx context.Context, userID uuid.UUID) (*Summary, error)
	Clear(ctx context.Context, userID uuid.UUID) (*Summary, error)
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productLoader
	coupons  couponQuoter
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader, quoter couponQuoter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if quoter == nil {
		return nil, fmt.Errorf("coupon quoter required")
	}
	return &service{repo: repo, tx: tx, products: products, coupons: quoter}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	record, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summarize(record), nil
}

func (s *service) loadOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	record, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{UserID: userID})
	if err != nil {
		// Lost the race with a concurrent first request; the row exists now.
		if dbpkg.IsUniqueViolation(err, "") {
			return s.reload(ctx, userID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	created.Items = []models.CartItem{}
	return created, nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Summary, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
	}
	return s.setQuantity(ctx, userID, productID, quantity, true)
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*Summary, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity cannot be negative")
	}
	if quantity == 0 {
		record, err := s.loadOrCreate(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.deleteLine(ctx, record.ID, productID); err != nil {
			return nil, err
		}
		return s.summary(ctx, userID)
	}
	return s.setQuantity(ctx, userID, productID, quantity, false)
}

// setQuantity writes the line inside a transaction. When merge is true the
// quantity is added to any existing line instead of replacing it.
func (s *service) setQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int, merge bool) (*Summary, error) {
	record, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	target := quantity
	if merge {
		existing, err := s.repo.FindItem(ctx, record.ID, productID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if existing != nil {
			target += existing.Quantity
		}
	}
	if target > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity exceeds the per-line limit")
	}
	if target > product.Stock {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock for product")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		item := &models.CartItem{
			CartID:         record.ID,
			ProductID:      productID,
			Quantity:       target,
			UnitPricePaise: product.PricePaise,
		}
		if err := txRepo.UpsertItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart item")
		}
		if err := txRepo.RecomputeTotals(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute cart totals")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.summary(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*Summary, error) {
	record, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if item.CartID != record.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	if err := s.deleteLine(ctx, record.ID, item.ProductID); err != nil {
		return nil, err
	}
	return s.summary(ctx, userID)
}

func (s *service) deleteLine(ctx context.Context, cartID, productID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.DeleteItem(ctx, cartID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		if err := txRepo.RecomputeTotals(ctx, cartID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute cart totals")
		}
		return nil
	})
}

// ApplyCoupon validates the code against the current subtotal and attaches
// the coupon. Usage is consumed later, inside the checkout transaction. A
// failed validation leaves the cart untouched.
func (s *service) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*Summary, error) {
	record, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	quote, err := s.coupons.Validate(ctx, code, record.SubtotalPaise)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.SetCoupon(ctx, record.ID, &quote.Coupon.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach coupon")
		}
		if err := txRepo.RecomputeTotals(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute cart totals")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.summary(ctx, userID)
}

func (s *service) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	record, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.SetCoupon(ctx, record.ID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach coupon")
		}
		if err := txRepo.RecomputeTotals(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute cart totals")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.summary(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	record, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.DeleteAllItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		if err := txRepo.SetCoupon(ctx, record.ID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach coupon")
		}
		if err := txRepo.RecomputeTotals(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute cart totals")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.summary(ctx, userID)
}

func (s *service) reload(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	record, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return record, nil
}

func (s *service) summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	record, err := s.reload(ctx, userID)
	if err != nil {
		return nil, err
	}
	return summarize(record), nil
}

// summarize previews the attached coupon against the current subtotal. A
// coupon that no longer clears its minimum previews as zero discount.
func summarize(record *models.Cart) *Summary {
	out := &Summary{Cart: record, TotalPaise: record.SubtotalPaise}
	if record.Coupon == nil || record.SubtotalPaise < record.Coupon.MinOrderPaise {
		return out
	}
	out.DiscountPaise = coupons.ComputeDiscount(record.Coupon, record.SubtotalPaise)
	out.TotalPaise = record.SubtotalPaise - out.DiscountPaise
	return out
}
