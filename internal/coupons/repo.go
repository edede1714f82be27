package coupons

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
)

// CouponRepository defines the persistence surface required by the coupon service.
type CouponRepository interface {
	WithTx(tx *gorm.DB) CouponRepository
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	CreateBatch(ctx context.Context, batch []models.Coupon) error
	Update(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Consume(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, id uuid.UUID) error
}

// Repository persists coupons. Codes are stored as entered but matched
// case-insensitively.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a coupon repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CouponRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new coupon row.
func (r *Repository) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

// CreateBatch inserts the coupons in a single statement so a collision
// rejects the whole batch.
func (r *Repository) CreateBatch(ctx context.Context, batch []models.Coupon) error {
	if len(batch) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&batch).Error
}

// Update saves the coupon row.
func (r *Repository) Update(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if err := r.db.WithContext(ctx).Save(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

// FindByCode loads a coupon by its code, ignoring case.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// FindByID loads a coupon by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).First(&coupon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// List returns all coupons, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Coupon, error) {
	var rows []models.Coupon
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// Consume increments used_count while respecting the usage limit. Returns
// false when the coupon is exhausted; the caller decides whether that aborts
// the checkout.
func (r *Repository) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", id).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Release decrements used_count when an order that consumed the coupon is
// cancelled. Floors at zero.
func (r *Repository) Release(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND used_count > 0", id).
		Update("used_count", gorm.Expr("used_count - 1")).
		Error
}
