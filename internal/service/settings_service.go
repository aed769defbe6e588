package service

import (
	"context"
	"errors"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// SettingsService reads and updates the store-wide business parameters
type SettingsService struct {
	store  store.SettingsRepository
	logger *zap.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(store store.SettingsRepository) *SettingsService {
	return &SettingsService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// UpdateSettingsRequest replaces every parameter
type UpdateSettingsRequest struct {
	CardCommissionPct *decimal.Decimal `json:"card_commission_pct" binding:"required"`
	LowStockThreshold *int             `json:"low_stock_threshold" binding:"required,min=0"`
	LoanDays          *int             `json:"loan_days" binding:"required,min=0"`
}

// GetSettings returns the stored parameters, creating the defaults on first use
func (s *SettingsService) GetSettings(ctx context.Context) (*models.Settings, error) {
	settings, err := s.store.GetSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, persistenceErr("load settings", err)
	}

	defaults := models.DefaultSettings()
	if err := s.store.SaveSettings(ctx, &defaults); err != nil {
		return nil, persistenceErr("save default settings", err)
	}
	s.logger.Info("Default settings created")
	return &defaults, nil
}

// UpdateSettings validates and stores new parameters
func (s *SettingsService) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*models.Settings, error) {
	if req.CardCommissionPct == nil || req.LowStockThreshold == nil || req.LoanDays == nil {
		return nil, invalidf("card_commission_pct, low_stock_threshold and loan_days are required")
	}
	if req.CardCommissionPct.IsNegative() || req.CardCommissionPct.GreaterThan(hundred) {
		return nil, invalidf("card_commission_pct must be between 0 and 100")
	}
	if *req.LowStockThreshold < 0 || *req.LoanDays < 0 {
		return nil, invalidf("low_stock_threshold and loan_days must not be negative")
	}

	settings := &models.Settings{
		CardCommissionPct: *req.CardCommissionPct,
		LowStockThreshold: *req.LowStockThreshold,
		LoanDays:          *req.LoanDays,
	}
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, persistenceErr("save settings", err)
	}

	s.logger.Info("Settings updated",
		zap.String("card_commission_pct", settings.CardCommissionPct.String()),
		zap.Int("low_stock_threshold", settings.LowStockThreshold),
		zap.Int("loan_days", settings.LoanDays))
	return settings, nil
}

// current returns the parameters, falling back to defaults when storage fails
func (s *SettingsService) current(ctx context.Context) models.Settings {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		s.logger.Warn("Using default settings", zap.Error(err))
		return models.DefaultSettings()
	}
	return *settings
}
