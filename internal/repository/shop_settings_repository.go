package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-points-api/internal/models"
)

// ShopSettingsRepository stores the singleton shop configuration row.
type ShopSettingsRepository struct {
	db *sqlx.DB
}

// NewShopSettingsRepository creates a new instance of ShopSettingsRepository.
func NewShopSettingsRepository(db *sqlx.DB) *ShopSettingsRepository {
	return &ShopSettingsRepository{db: db}
}

// Get returns the settings row or sql.ErrNoRows when it was never written.
func (r *ShopSettingsRepository) Get(ctx context.Context) (*models.ShopSettings, error) {
	const query = `SELECT id, points_required, discount_percent, month_duration, updated_at FROM shop_settings WHERE id = $1`
	var settings models.ShopSettings
	if err := r.db.GetContext(ctx, &settings, query, models.ShopSettingsID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get shop settings: %w", err)
	}
	return &settings, nil
}

// CreateIfMissing inserts the settings unless a row already exists and returns the stored row.
func (r *ShopSettingsRepository) CreateIfMissing(ctx context.Context, settings models.ShopSettings) (*models.ShopSettings, error) {
	const query = `INSERT INTO shop_settings (id, points_required, discount_percent, month_duration, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, models.ShopSettingsID, settings.PointsRequired, settings.DiscountPercent, settings.MonthDuration, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create shop settings: %w", err)
	}
	return r.Get(ctx)
}

// Upsert replaces the settings row.
func (r *ShopSettingsRepository) Upsert(ctx context.Context, settings *models.ShopSettings) error {
	settings.ID = models.ShopSettingsID
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO shop_settings (id, points_required, discount_percent, month_duration, updated_at)
VALUES (:id, :points_required, :discount_percent, :month_duration, :updated_at)
ON CONFLICT (id) DO UPDATE SET
	points_required = EXCLUDED.points_required,
	discount_percent = EXCLUDED.discount_percent,
	month_duration = EXCLUDED.month_duration,
	updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert shop settings: %w", err)
	}
	return nil
}
