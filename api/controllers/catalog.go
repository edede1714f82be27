package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/merakimart/backend/api/responses"
	"github.com/merakimart/backend/api/validators"
	"github.com/merakimart/backend/internal/catalog"
	"github.com/merakimart/backend/pkg/db/models"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/logger"
	"github.com/merakimart/backend/pkg/pagination"
)

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// CategoryList returns every category for the storefront navigation.
func CategoryList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, categories)
	}
}

// ProductList serves the public browse page with filters and keyset paging.
func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		input, err := buildProductListInput(r, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// AdminProductList is the moderation view; inactive products are included.
func AdminProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		input, err := buildProductListInput(r, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// ProductDetail resolves a product by uuid or, failing that, by slug.
func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		key := strings.TrimSpace(chi.URLParam(r, "productId"))
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing product id"))
			return
		}

		var err error
		var product *models.Product
		if id, parseErr := uuid.Parse(key); parseErr == nil {
			product, err = svc.GetProduct(r.Context(), id)
		} else {
			product, err = svc.GetProductBySlug(r.Context(), key)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// AdminCategoryCreate adds a category.
func AdminCategoryCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var body createCategoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.CreateCategory(r.Context(), body.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, category)
	}
}

// AdminProductCreate adds a product to the catalog.
func AdminProductCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var body catalog.CreateProductInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// AdminProductUpdate patches product fields; nil fields stay untouched.
func AdminProductUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		var body catalog.UpdateProductInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), productID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

func buildProductListInput(r *http.Request, includeInactive bool) (catalog.ListProductsInput, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return catalog.ListProductsInput{}, err
	}

	filters := catalog.ProductListFilters{
		CategorySlug: strings.TrimSpace(r.URL.Query().Get("category")),
		Query:        strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if filters.PriceMinPaise, err = parseQueryPaise(r, "price_min_paise"); err != nil {
		return catalog.ListProductsInput{}, err
	}
	if filters.PriceMaxPaise, err = parseQueryPaise(r, "price_max_paise"); err != nil {
		return catalog.ListProductsInput{}, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("min_rating")); raw != "" {
		rating, err := validators.ParseQueryInt(r, "min_rating", 0, 1, 5)
		if err != nil {
			return catalog.ListProductsInput{}, err
		}
		filters.MinRating = &rating
	}

	return catalog.ListProductsInput{
		Filters: filters,
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
		IncludeInactive: includeInactive,
	}, nil
}

func parseQueryPaise(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key)
	}
	return &value, nil
}
