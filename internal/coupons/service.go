package coupons

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/merakimart/backend/pkg/db"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
)

var (
	couponCodePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{2,31}$`)
	bulkPrefixPattern = regexp.MustCompile(`^[A-Z0-9]{2,8}$`)
)

// maxBulkCount bounds a single bulk generation request.
const maxBulkCount = 100

// Quote is the result of validating a coupon against an order subtotal.
type Quote struct {
	Coupon        *models.Coupon `json:"coupon"`
	DiscountPaise int64          `json:"discount_paise"`
}

// CreateCouponInput carries the admin create payload.
type CreateCouponInput struct {
	Code          string             `json:"code"`
	DiscountType  enums.DiscountType `json:"discount_type"`
	Value         int64              `json:"value"`
	MinOrderPaise int64              `json:"min_order_paise"`
	MaxDiscPaise  *int64             `json:"max_disc_paise,omitempty"`
	UsageLimit    *int64             `json:"usage_limit,omitempty"`
	StartsAt      *time.Time         `json:"starts_at,omitempty"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
}

// Service exposes coupon validation for checkout plus the admin paths.
type Service interface {
	Create(ctx context.Context, input CreateCouponInput) (*models.Coupon, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Coupon, error)
	GenerateBulk(ctx context.Context, prefix string, count int, shared CreateCouponInput) ([]models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Validate(ctx context.Context, code string, subtotalPaise int64) (*Quote, error)
}

type service struct {
	repo CouponRepository
	now  func() time.Time
}

// NewService builds a coupon service backed by the provided repository.
func NewService(repo CouponRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func validateTerms(input CreateCouponInput) error {
	if !input.DiscountType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown discount type")
	}
	switch input.DiscountType {
	case enums.DiscountTypePercentage:
		if input.Value < 1 || input.Value > 100 {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage value must be between 1 and 100")
		}
	case enums.DiscountTypeFixed:
		if input.Value <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "fixed value must be positive")
		}
	}
	if input.MinOrderPaise < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "min_order_paise cannot be negative")
	}
	if input.MaxDiscPaise != nil && *input.MaxDiscPaise <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_disc_paise must be positive")
	}
	if input.UsageLimit != nil && *input.UsageLimit <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage_limit must be positive")
	}
	if input.StartsAt != nil && input.ExpiresAt != nil && !input.ExpiresAt.After(*input.StartsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be after starts_at")
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateCouponInput) (*models.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if !couponCodePattern.MatchString(code) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code must be 3-32 chars of A-Z, 0-9, dash or underscore")
	}
	if err := validateTerms(input); err != nil {
		return nil, err
	}

	coupon := &models.Coupon{
		Code:          code,
		DiscountType:  input.DiscountType,
		Value:         input.Value,
		MinOrderPaise: input.MinOrderPaise,
		MaxDiscPaise:  input.MaxDiscPaise,
		UsageLimit:    input.UsageLimit,
		StartsAt:      input.StartsAt,
		ExpiresAt:     input.ExpiresAt,
		Active:        true,
	}

	created, err := s.repo.Create(ctx, coupon)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return created, nil
}

// GenerateBulk mints count coupons sharing the same terms, coded as the
// prefix plus six random hex characters. The batch is inserted atomically; a
// code collision inside the batch fails the whole call.
func (s *service) GenerateBulk(ctx context.Context, prefix string, count int, shared CreateCouponInput) ([]models.Coupon, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if !bulkPrefixPattern.MatchString(prefix) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prefix must be 2-8 chars of A-Z or 0-9")
	}
	if count < 1 || count > maxBulkCount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "count must be between 1 and 100")
	}
	if err := validateTerms(shared); err != nil {
		return nil, err
	}

	batch := make([]models.Coupon, 0, count)
	for i := 0; i < count; i++ {
		var raw [3]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate coupon code")
		}
		batch = append(batch, models.Coupon{
			Code:          prefix + strings.ToUpper(hex.EncodeToString(raw[:])),
			DiscountType:  shared.DiscountType,
			Value:         shared.Value,
			MinOrderPaise: shared.MinOrderPaise,
			MaxDiscPaise:  shared.MaxDiscPaise,
			UsageLimit:    shared.UsageLimit,
			StartsAt:      shared.StartsAt,
			ExpiresAt:     shared.ExpiresAt,
			Active:        true,
		})
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "generated coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon batch")
	}
	return batch, nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if coupon.Active == active {
		return coupon, nil
	}
	coupon.Active = active
	updated, err := s.repo.Update(ctx, coupon)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coupon")
	}
	return updated, nil
}

func (s *service) List(ctx context.Context) ([]models.Coupon, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return rows, nil
}

// Validate checks eligibility and computes the discount without consuming the
// coupon. Checkout consumes it later inside the order transaction.
func (s *service) Validate(ctx context.Context, code string, subtotalPaise int64) (*Quote, error) {
	if strings.TrimSpace(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if subtotalPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must be positive")
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if err := Eligible(coupon, subtotalPaise, s.now()); err != nil {
		return nil, err
	}

	return &Quote{
		Coupon:        coupon,
		DiscountPaise: ComputeDiscount(coupon, subtotalPaise),
	}, nil
}

// Eligible reports whether the coupon can be applied to an order of the given
// subtotal right now. Checkout re-runs this inside the order transaction
// since eligibility can change between cart attach and checkout.
func Eligible(coupon *models.Coupon, subtotalPaise int64, now time.Time) error {
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon is required")
	}
	if !coupon.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon is not active")
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon is not yet active")
	}
	if coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired")
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")
	}
	if subtotalPaise < coupon.MinOrderPaise {
		return pkgerrors.New(pkgerrors.CodeValidation, "order subtotal below coupon minimum")
	}
	return nil
}

// ComputeDiscount returns the discount in paise for an eligible coupon.
// Percentage discounts round down and respect the optional cap; the result
// never exceeds the subtotal.
func ComputeDiscount(coupon *models.Coupon, subtotalPaise int64) int64 {
	var discount int64
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = subtotalPaise * coupon.Value / 100
		if coupon.MaxDiscPaise != nil && discount > *coupon.MaxDiscPaise {
			discount = *coupon.MaxDiscPaise
		}
	case enums.DiscountTypeFixed:
		discount = coupon.Value
	}
	if discount > subtotalPaise {
		discount = subtotalPaise
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
