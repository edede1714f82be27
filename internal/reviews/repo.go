package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	"github.com/merakimart/backend/pkg/pagination"
)

// ReviewRepository defines the persistence surface required by the review
// service.
type ReviewRepository interface {
	WithTx(tx *gorm.DB) ReviewRepository
	Create(ctx context.Context, review *models.Review) (*models.Review, error)
	Update(ctx context.Context, review *models.Review) (*models.Review, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, string, error)
	ListByStatus(ctx context.Context, status enums.ReviewStatus, params pagination.Params) ([]models.Review, string, error)
	HasDeliveredPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	RecomputeProductAggregates(ctx context.Context, productID uuid.UUID) error
}

// Repository persists reviews and maintains the product rating aggregates.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a review repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) ReviewRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new review row.
func (r *Repository) Create(ctx context.Context, review *models.Review) (*models.Review, error) {
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		return nil, err
	}
	return review, nil
}

// Update saves the review row.
func (r *Repository) Update(ctx context.Context, review *models.Review) (*models.Review, error) {
	if err := r.db.WithContext(ctx).Save(review).Error; err != nil {
		return nil, err
	}
	return review, nil
}

// Delete removes a review by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Review{}).Error
}

// FindByID loads a review by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).First(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// ListByProduct returns the approved reviews for a product, newest first.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) ([]models.Review, string, error) {
	return r.list(ctx, r.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, enums.ReviewStatusApproved), params)
}

// ListByStatus returns reviews in the given moderation state, newest first.
func (r *Repository) ListByStatus(ctx context.Context, status enums.ReviewStatus, params pagination.Params) ([]models.Review, string, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("status = ?", status), params)
}

func (r *Repository) list(ctx context.Context, qb *gorm.DB, params pagination.Params) ([]models.Review, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Review
	err = qb.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}

// HasDeliveredPurchase reports whether the user has a delivered order that
// contains the product. Computed once at review creation and frozen.
func (r *Repository) HasDeliveredPurchase(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.WithContext(ctx).Raw(`
SELECT EXISTS (
  SELECT 1
  FROM orders o
  JOIN order_items oi ON oi.order_id = o.id
  WHERE o.user_id = ? AND oi.product_id = ? AND o.status = 'delivered'
)`, userID, productID).Scan(&exists).Error
	return exists, err
}

// RecomputeProductAggregates rebuilds rating_sum, rating_count, and the
// five-bucket histogram from approved reviews. Full recompute keeps the cache
// correct no matter which mutation preceded it.
func (r *Repository) RecomputeProductAggregates(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
UPDATE products p
SET rating_sum = agg.sum,
    rating_count = agg.count,
    rating_hist = agg.hist,
    updated_at = now()
FROM (
  SELECT COALESCE(SUM(rating), 0) AS sum,
         COUNT(*) AS count,
         ARRAY[
           COUNT(*) FILTER (WHERE rating = 1),
           COUNT(*) FILTER (WHERE rating = 2),
           COUNT(*) FILTER (WHERE rating = 3),
           COUNT(*) FILTER (WHERE rating = 4),
           COUNT(*) FILTER (WHERE rating = 5)
         ] AS hist
  FROM reviews
  WHERE product_id = ? AND status = 'approved'
) agg
WHERE p.id = ?`, productID, productID).Error
}
