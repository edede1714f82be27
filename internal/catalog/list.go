package catalog

import (
	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	CategorySlug  string `json:"category,omitempty"`
	PriceMinPaise *int64 `json:"price_min_paise,omitempty"`
	PriceMaxPaise *int64 `json:"price_max_paise,omitempty"`
	MinRating     *int   `json:"min_rating,omitempty"`
	Query         string `json:"q,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate and filter products.
type ListProductsInput struct {
	Filters         ProductListFilters
	Pagination      pagination.Params
	IncludeInactive bool
}

// ProductSummary is the browse-page projection of a product.
type ProductSummary struct {
	ID           uuid.UUID `json:"id"`
	CategoryID   uuid.UUID `json:"category_id"`
	CategorySlug string    `json:"category_slug"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	PricePaise   int64     `json:"price_paise"`
	Stock        int       `json:"stock"`
	ImageURL     string    `json:"image_url,omitempty"`
	RatingAvg    float64   `json:"rating_avg"`
	RatingCount  int64     `json:"rating_count"`
	Active       bool      `json:"active"`
}

// ProductListResult bundles a product page with its next cursor.
type ProductListResult struct {
	Products   []ProductSummary `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}
