package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-points-api/internal/models"
)

func TestShopSettingsCreateIfMissingReturnsStoredRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewShopSettingsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO NOTHING")).
		WithArgs(models.ShopSettingsID, 40, 10, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM shop_settings WHERE id = $1")).
		WithArgs(models.ShopSettingsID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "points_required", "discount_percent", "month_duration", "updated_at"}).
			AddRow("main", 60, 15, 2, time.Now()))

	settings, err := repo.CreateIfMissing(context.Background(), models.DefaultShopSettings())
	require.NoError(t, err)
	assert.Equal(t, 60, settings.PointsRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShopSettingsUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewShopSettingsRepository(db)

	mock.ExpectExec("INSERT INTO shop_settings").WillReturnResult(sqlmock.NewResult(0, 1))

	settings := &models.ShopSettings{PointsRequired: 60, DiscountPercent: 15, MonthDuration: 2}
	require.NoError(t, repo.Upsert(context.Background(), settings))
	assert.Equal(t, models.ShopSettingsID, settings.ID)
	assert.False(t, settings.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
