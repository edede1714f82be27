package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	dbpkg "github.com/merakimart/backend/pkg/db"
	"github.com/merakimart/backend/pkg/db/models"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
)

// Service exposes catalog read paths plus the admin-only write paths.
type Service interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
}

// CreateProductInput carries the admin create payload.
type CreateProductInput struct {
	CategoryID  uuid.UUID `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PricePaise  int64     `json:"price_paise"`
	Stock       int       `json:"stock"`
	ImageURLs   []string  `json:"image_urls"`
}

// UpdateProductInput carries the admin update payload. Nil means "leave as is".
type UpdateProductInput struct {
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	PricePaise  *int64     `json:"price_paise,omitempty"`
	Stock       *int       `json:"stock,omitempty"`
	ImageURLs   *[]string  `json:"image_urls,omitempty"`
	Active      *bool      `json:"active,omitempty"`
}

type categoryRepo interface {
	CreateCategory(context.Context, *models.Category) (*models.Category, error)
	ListCategories(context.Context) ([]models.Category, error)
	FindCategoryBySlug(context.Context, string) (*models.Category, error)
}

type service struct {
	categories categoryRepo
	products   ProductRepository
}

// NewService builds a catalog service backed by the provided repositories.
func NewService(categories categoryRepo, products ProductRepository) (Service, error) {
	if categories == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{categories: categories, products: products}, nil
}

var slugStripPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowers, strips, and dash-joins a display name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugStripPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return rows, nil
}

func (s *service) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	slug := Slugify(name)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name must contain letters or digits")
	}

	category, err := s.categories.CreateCategory(ctx, &models.Category{Name: name, Slug: slug})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return category, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	if input.Filters.MinRating != nil {
		if *input.Filters.MinRating < 1 || *input.Filters.MinRating > 5 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_rating must be between 1 and 5")
		}
	}
	if input.Filters.PriceMinPaise != nil && input.Filters.PriceMaxPaise != nil &&
		*input.Filters.PriceMinPaise > *input.Filters.PriceMaxPaise {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_min_paise cannot exceed price_max_paise")
	}

	result, err := s.products.ListProducts(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return result, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug is required")
	}
	product, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if input.CategoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category_id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.PricePaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_paise must be positive")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	slug := Slugify(name)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name must contain letters or digits")
	}

	product := &models.Product{
		CategoryID:  input.CategoryID,
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(input.Description),
		PricePaise:  input.PricePaise,
		Stock:       input.Stock,
		ImageURLs:   pq.StringArray(input.ImageURLs),
		Active:      true,
		RatingHist:  pq.Int64Array{0, 0, 0, 0, 0},
	}

	created, err := s.products.CreateProduct(ctx, product)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return created, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.CategoryID != nil {
		if *input.CategoryID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category_id cannot be empty")
		}
		product.CategoryID = *input.CategoryID
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		product.Name = name
		product.Slug = Slugify(name)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.PricePaise != nil {
		if *input.PricePaise <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_paise must be positive")
		}
		product.PricePaise = *input.PricePaise
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		product.Stock = *input.Stock
	}
	if input.ImageURLs != nil {
		product.ImageURLs = pq.StringArray(*input.ImageURLs)
	}
	if input.Active != nil {
		product.Active = *input.Active
	}

	updated, err := s.products.UpdateProduct(ctx, product)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return updated, nil
}
