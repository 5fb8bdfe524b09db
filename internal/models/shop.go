package models

import "time"

// ShopSettingsID is the key of the singleton settings row.
const ShopSettingsID = "main"

// ShopSettings configures the discount offered for accumulated points.
type ShopSettings struct {
	ID              string    `db:"id" json:"-"`
	PointsRequired  int       `db:"points_required" json:"points_required" validate:"required,gt=0"`
	DiscountPercent int       `db:"discount_percent" json:"discount_percent" validate:"required,gt=0"`
	MonthDuration   int       `db:"month_duration" json:"month_duration" validate:"required,gt=0"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultShopSettings returns the settings used before an admin configures the shop.
func DefaultShopSettings() ShopSettings {
	return ShopSettings{
		ID:              ShopSettingsID,
		PointsRequired:  40,
		DiscountPercent: 10,
		MonthDuration:   1,
	}
}
