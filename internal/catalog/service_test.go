package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
)

type stubCategoryRepo struct {
	created   *models.Category
	createErr error
	rows      []models.Category
}

func (s *stubCategoryRepo) CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	c.ID = uuid.New()
	s.created = c
	return c, nil
}

func (s *stubCategoryRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.rows, nil
}

func (s *stubCategoryRepo) FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	for i := range s.rows {
		if s.rows[i].Slug == slug {
			return &s.rows[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type stubProductRepo struct {
	product    *models.Product
	findErr    error
	created    *models.Product
	createErr  error
	updated    *models.Product
	listResult *ProductListResult
}

func (s *stubProductRepo) WithTx(tx *gorm.DB) ProductRepository { return s }

func (s *stubProductRepo) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	p.ID = uuid.New()
	s.created = p
	return p, nil
}

func (s *stubProductRepo) UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	s.updated = p
	return p, nil
}

func (s *stubProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.product, nil
}

func (s *stubProductRepo) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.product, nil
}

func (s *stubProductRepo) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	return s.listResult, nil
}

func (s *stubProductRepo) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	return true, nil
}

func (s *stubProductRepo) RestoreStock(ctx context.Context, productID uuid.UUID, qty int) error {
	return nil
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Masala Chai (Premium)": "masala-chai-premium",
		"  Ghee 500ml  ":        "ghee-500ml",
		"---":                   "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServiceCreateCategoryValidation(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&stubCategoryRepo{}, &stubProductRepo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.CreateCategory(context.Background(), "   "); err == nil {
		t.Fatal("expected validation error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceCreateCategoryConflict(t *testing.T) {
	t.Parallel()

	repo := &stubCategoryRepo{createErr: errors.New(`duplicate key value violates unique constraint "ux_categories_slug"`)}
	svc, _ := NewService(repo, &stubProductRepo{})

	_, err := svc.CreateCategory(context.Background(), "Spices")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceGetProductBySlugNotFound(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(&stubCategoryRepo{}, &stubProductRepo{findErr: gorm.ErrRecordNotFound})

	_, err := svc.GetProductBySlug(context.Background(), "missing")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceCreateProductValidation(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(&stubCategoryRepo{}, &stubProductRepo{})

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		CategoryID: uuid.New(),
		Name:       "Basmati Rice",
		PricePaise: 0,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceCreateProductSuccess(t *testing.T) {
	t.Parallel()

	repo := &stubProductRepo{}
	svc, _ := NewService(&stubCategoryRepo{}, repo)

	got, err := svc.CreateProduct(context.Background(), CreateProductInput{
		CategoryID: uuid.New(),
		Name:       "Basmati Rice 5kg",
		PricePaise: 64900,
		Stock:      40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Slug != "basmati-rice-5kg" {
		t.Fatalf("unexpected slug: %q", got.Slug)
	}
	if !got.Active {
		t.Fatal("new products should default to active")
	}
	if len(got.RatingHist) != 5 {
		t.Fatalf("expected five rating buckets, got %d", len(got.RatingHist))
	}
}

func TestServiceListProductsValidatesFilters(t *testing.T) {
	t.Parallel()

	svc, _ := NewService(&stubCategoryRepo{}, &stubProductRepo{listResult: &ProductListResult{}})

	bad := 7
	_, err := svc.ListProducts(context.Background(), ListProductsInput{
		Filters: ProductListFilters{MinRating: &bad},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}
