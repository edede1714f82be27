package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product carries denormalized review aggregates (RatingSum, RatingCount and a
// five-bucket star histogram) maintained by the review service whenever a
// review is approved or removed.
type Product struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID  uuid.UUID      `gorm:"column:category_id;type:uuid;not null;index"`
	Name        string         `gorm:"column:name;not null"`
	Slug        string         `gorm:"column:slug;not null;uniqueIndex"`
	Description string         `gorm:"column:description;not null;default:''"`
	PricePaise  int64          `gorm:"column:price_paise;not null"`
	Stock       int            `gorm:"column:stock;not null;default:0"`
	ImageURLs   pq.StringArray `gorm:"column:image_urls;type:text[]"`
	Active      bool           `gorm:"column:active;not null;default:true"`
	RatingSum   int64          `gorm:"column:rating_sum;not null;default:0"`
	RatingCount int64          `gorm:"column:rating_count;not null;default:0"`
	RatingHist  pq.Int64Array  `gorm:"column:rating_hist;type:bigint[];not null;default:'{0,0,0,0,0}'"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`

	Category *Category `gorm:"foreignKey:CategoryID"`
}
