package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/merakimart/backend/pkg/db/models"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new cart row.
func (r *Repository) Create(ctx context.Context, record *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindByUser loads the user's cart with items and their products preloaded.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Items.Product").
		Preload("Coupon").
		Where("user_id = ?", userID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindItem loads a single cart line.
func (r *Repository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByID loads a cart line by its primary key.
func (r *Repository) FindItemByID(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertItem inserts the line or replaces its quantity and captured unit price.
func (r *Repository) UpsertItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "unit_price_paise", "updated_at"}),
		}).
		Create(item).Error
}

// DeleteItem removes a single line from the cart.
func (r *Repository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{}).Error
}

// DeleteAllItems empties the cart.
func (r *Repository) DeleteAllItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

// SetCoupon attaches or detaches the cart's coupon reference.
func (r *Repository) SetCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		UpdateColumn("coupon_id", couponID).Error
}

// RecomputeTotals refreshes the cached subtotal from the lines and bumps the
// cart version. Runs inside the same transaction as the line mutation.
func (r *Repository) RecomputeTotals(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
UPDATE carts
SET subtotal_paise = COALESCE((
      SELECT SUM(quantity * unit_price_paise)
      FROM cart_items
      WHERE cart_id = carts.id
    ), 0),
    version = version + 1,
    updated_at = now()
WHERE id = ?`, cartID).Error
}
