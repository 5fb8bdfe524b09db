package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-points-api/internal/models"
	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
)

type shopSettingsRepo interface {
	Get(ctx context.Context) (*models.ShopSettings, error)
	CreateIfMissing(ctx context.Context, settings models.ShopSettings) (*models.ShopSettings, error)
	Upsert(ctx context.Context, settings *models.ShopSettings) error
}

// ShopService reads and updates the discount shop configuration.
type ShopService struct {
	repo      shopSettingsRepo
	validator *validator.Validate
	reads     ReadPolicy
	logger    *zap.Logger
}

// NewShopService constructs the shop service.
func NewShopService(repo shopSettingsRepo, validate *validator.Validate, reads ReadPolicy, logger *zap.Logger) *ShopService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShopService{repo: repo, validator: validate, reads: reads, logger: logger}
}

// Get returns the current settings, writing the defaults on first access.
func (s *ShopService) Get(ctx context.Context) (*models.ShopSettings, error) {
	settings, err := readWithRetry(ctx, s.reads, s.repo.Get)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Unavailable(err, "failed to load shop settings")
	}

	settings, err = s.repo.CreateIfMissing(ctx, models.DefaultShopSettings())
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to initialise shop settings")
	}
	s.logger.Info("shop settings initialised with defaults",
		zap.Int("points_required", settings.PointsRequired),
		zap.Int("discount_percent", settings.DiscountPercent),
		zap.Int("month_duration", settings.MonthDuration),
	)
	return settings, nil
}

// Update replaces the settings. Claims already submitted keep their snapshot.
func (s *ShopService) Update(ctx context.Context, actor models.Actor, req models.ShopSettings) (*models.ShopSettings, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can change shop settings")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "points, discount and duration must be positive integers")
	}

	settings := req
	if err := s.repo.Upsert(ctx, &settings); err != nil {
		return nil, appErrors.Unavailable(err, "failed to save shop settings")
	}
	s.logger.Info("shop settings updated",
		zap.String("admin_id", actor.UserID),
		zap.Int("points_required", settings.PointsRequired),
		zap.Int("discount_percent", settings.DiscountPercent),
		zap.Int("month_duration", settings.MonthDuration),
	)
	return &settings, nil
}
