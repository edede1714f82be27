package settings

import (
	"context"

	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
)

// SettingsRepository defines the persistence surface required by the settings service.
type SettingsRepository interface {
	WithTx(tx *gorm.DB) SettingsRepository
	Get(ctx context.Context) (*models.StoreSettings, error)
	Update(ctx context.Context, row *models.StoreSettings) (*models.StoreSettings, error)
}

// Repository reads and writes the single settings row.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a settings repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) SettingsRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Get loads the settings row.
func (r *Repository) Get(ctx context.Context) (*models.StoreSettings, error) {
	var row models.StoreSettings
	err := r.db.WithContext(ctx).
		Where("id = ?", models.SettingsRowID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Update saves the settings row, pinning the fixed primary key.
func (r *Repository) Update(ctx context.Context, row *models.StoreSettings) (*models.StoreSettings, error) {
	row.ID = models.SettingsRowID
	if err := r.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}
