package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
)

func TestShopGetCreatesDefaults(t *testing.T) {
	store := newMemStore()
	svc := NewShopService(memShop{store}, nil, fastReads(), nil)

	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, settings.PointsRequired)
	assert.Equal(t, 10, settings.DiscountPercent)
	assert.Equal(t, 1, settings.MonthDuration)
	require.NotNil(t, store.shop)
	assert.Equal(t, models.ShopSettingsID, store.shop.ID)
}

func TestShopGetStoreFailure(t *testing.T) {
	store := newMemStore()
	store.fail["ShopGet"] = errors.New("connection refused")
	svc := NewShopService(memShop{store}, nil, fastReads(), nil)

	_, err := svc.Get(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
	assert.Nil(t, store.shop)
}

func TestShopUpdate(t *testing.T) {
	store := newMemStore()
	svc := NewShopService(memShop{store}, nil, fastReads(), nil)

	_, err := svc.Update(context.Background(), teacherOne, models.ShopSettings{PointsRequired: 50, DiscountPercent: 5, MonthDuration: 1})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	for _, bad := range []models.ShopSettings{
		{PointsRequired: 0, DiscountPercent: 5, MonthDuration: 1},
		{PointsRequired: 50, DiscountPercent: -5, MonthDuration: 1},
		{PointsRequired: 50, DiscountPercent: 5},
	} {
		_, err := svc.Update(context.Background(), adminActor, bad)
		assert.True(t, errors.Is(err, appErrors.ErrValidation))
	}
	assert.Nil(t, store.shop)

	updated, err := svc.Update(context.Background(), adminActor, models.ShopSettings{PointsRequired: 50, DiscountPercent: 5, MonthDuration: 3})
	require.NoError(t, err)
	assert.Equal(t, 50, updated.PointsRequired)

	current, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, current.MonthDuration)
}
