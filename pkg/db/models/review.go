package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/merakimart/backend/pkg/enums"
)

// Review enters as pending and only counts toward product rating aggregates
// once approved. HelpfulVoterIDs dedupes helpful votes per user.
type Review struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID       uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_review_product_user"`
	UserID          uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_review_product_user"`
	Rating          int                `gorm:"column:rating;not null"`
	Title           string             `gorm:"column:title;not null;default:''"`
	Body            string             `gorm:"column:body;not null;default:''"`
	Status          enums.ReviewStatus `gorm:"column:status;type:review_status;not null;default:'pending'"`
	Verified        bool               `gorm:"column:verified;not null;default:false"`
	HelpfulCount    int                `gorm:"column:helpful_count;not null;default:0"`
	HelpfulVoterIDs pq.StringArray     `gorm:"column:helpful_voter_ids;type:uuid[];not null;default:'{}'"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
