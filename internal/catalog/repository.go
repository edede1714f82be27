package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/pagination"
)

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	CreateCategory(context.Context, *models.Category) (*models.Category, error)
	ListCategories(context.Context) ([]models.Category, error)
	FindCategoryBySlug(context.Context, string) (*models.Category, error)
}

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	CreateProduct(context.Context, *models.Product) (*models.Product, error)
	UpdateProduct(context.Context, *models.Product) (*models.Product, error)
	FindByID(context.Context, uuid.UUID) (*models.Product, error)
	FindBySlug(context.Context, string) (*models.Product, error)
	ListProducts(context.Context, ListProductsInput) (*ProductListResult, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	RestoreStock(ctx context.Context, productID uuid.UUID, qty int) error
}

// Repository wires together catalog persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateCategory inserts a new category row.
func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// FindCategoryBySlug loads a category by its slug.
func (r *Repository) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct saves an existing product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindBySlug loads a product with its category preloaded.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		First(&product, "slug = ?", slug).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DecrementStock atomically subtracts qty from stock; returns false when the
// row has less stock than requested.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RestoreStock adds qty back to the product's stock.
func (r *Repository) RestoreStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty)).
		Error
}

type productSummaryRecord struct {
	ID           uuid.UUID
	CategoryID   uuid.UUID
	CategorySlug string
	Name         string
	Slug         string
	PricePaise   int64
	Stock        int
	ImageURL     string
	RatingSum    int64
	RatingCount  int64
	Active       bool
	CreatedAt    time.Time
}

func (rec productSummaryRecord) toSummary() ProductSummary {
	avg := 0.0
	if rec.RatingCount > 0 {
		avg = float64(rec.RatingSum) / float64(rec.RatingCount)
	}
	return ProductSummary{
		ID:           rec.ID,
		CategoryID:   rec.CategoryID,
		CategorySlug: rec.CategorySlug,
		Name:         rec.Name,
		Slug:         rec.Slug,
		PricePaise:   rec.PricePaise,
		Stock:        rec.Stock,
		ImageURL:     rec.ImageURL,
		RatingAvg:    avg,
		RatingCount:  rec.RatingCount,
		Active:       rec.Active,
	}
}

// ListProducts runs the cursor-paginated browse query.
func (r *Repository) ListProducts(ctx context.Context, query ListProductsInput) (*ProductListResult, error) {
	pageSize := pagination.NormalizeLimit(query.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(query.Pagination.Limit)

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).
		Table("products p").
		Select(strings.Join([]string{
			"p.id",
			"p.category_id",
			"c.slug AS category_slug",
			"p.name",
			"p.slug",
			"p.price_paise",
			"p.stock",
			"COALESCE(p.image_urls[1], '') AS image_url",
			"p.rating_sum",
			"p.rating_count",
			"p.active",
			"p.created_at",
		}, ", ")).
		Joins("JOIN categories c ON c.id = p.category_id")

	filter := query.Filters
	if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
		qb = qb.Where("c.slug = ?", slug)
	}
	if filter.PriceMinPaise != nil {
		qb = qb.Where("p.price_paise >= ?", *filter.PriceMinPaise)
	}
	if filter.PriceMaxPaise != nil {
		qb = qb.Where("p.price_paise <= ?", *filter.PriceMaxPaise)
	}
	if filter.MinRating != nil {
		qb = qb.Where("p.rating_count > 0 AND p.rating_sum >= ? * p.rating_count", *filter.MinRating)
	}
	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(p.name) LIKE ? OR LOWER(p.description) LIKE ?)", pattern, pattern)
	}
	if !query.IncludeInactive {
		qb = qb.Where("p.active = ?", true)
	}

	if cursor != nil {
		qb = qb.Where("(p.created_at < ?) OR (p.created_at = ? AND p.id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	qb = qb.Order("p.created_at DESC").Order("p.id DESC").Limit(limitWithBuffer)

	var records []productSummaryRecord
	if err := qb.Scan(&records).Error; err != nil {
		return nil, err
	}

	resultRows := records
	nextCursor := ""
	if len(records) > pageSize {
		resultRows = records[:pageSize]
		last := resultRows[len(resultRows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	summaries := make([]ProductSummary, 0, len(resultRows))
	for _, record := range resultRows {
		summaries = append(summaries, record.toSummary())
	}

	return &ProductListResult{
		Products:   summaries,
		NextCursor: nextCursor,
	}, nil
}
