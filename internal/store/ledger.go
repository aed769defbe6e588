package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pos-service/internal/models"
)

// CreateDistributor inserts a distributor with a unique name
func (s *Store) CreateDistributor(ctx context.Context, d *models.Distributor) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO distributors (name, contact, phone)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, d.Name, d.Contact, d.Phone).Scan(&d.ID, &d.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("distributor %q: %w", d.Name, ErrDuplicate)
	}
	return err
}

// ListDistributors retrieves all distributors
func (s *Store) ListDistributors(ctx context.Context) ([]models.Distributor, error) {
	distributors := []models.Distributor{}
	err := s.db.SelectContext(ctx, &distributors, "SELECT * FROM distributors ORDER BY name")
	return distributors, err
}

// CreateCashMovement inserts a manual ledger entry
func (s *Store) CreateCashMovement(ctx context.Context, m *models.CashMovement) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO cash_movements (concept, amount, kind)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, m.Concept, m.Amount, m.Kind).Scan(&m.ID, &m.CreatedAt)
}

// ListCashMovements retrieves ledger entries inside r, newest first
func (s *Store) ListCashMovements(ctx context.Context, r models.DateRange) ([]models.CashMovement, error) {
	where, args := rangeClause("created_at", r, nil)
	movements := []models.CashMovement{}
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM cash_movements WHERE TRUE"+where+" ORDER BY created_at DESC, id DESC", args...)
	return movements, err
}

// CreateCashClosing inserts a register closing
func (s *Store) CreateCashClosing(ctx context.Context, c *models.CashClosing) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO cash_closings (system_total, counted_total, difference, closed_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, c.SystemTotal, c.CountedTotal, c.Difference, c.ClosedBy).
		Scan(&c.ID, &c.CreatedAt)
}

// GetCashClosing retrieves the first closing inside r
func (s *Store) GetCashClosing(ctx context.Context, r models.DateRange) (*models.CashClosing, error) {
	where, args := rangeClause("created_at", r, nil)
	var closing models.CashClosing
	err := s.db.GetContext(ctx, &closing,
		"SELECT * FROM cash_closings WHERE TRUE"+where+" ORDER BY created_at LIMIT 1", args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &closing, nil
}

// GetSettings retrieves the singleton settings row
func (s *Store) GetSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	err := s.db.GetContext(ctx, &settings, `
		SELECT card_commission_pct, low_stock_threshold, loan_days, updated_at
		FROM settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settings: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings upserts the singleton settings row
func (s *Store) SaveSettings(ctx context.Context, settings *models.Settings) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO settings (id, card_commission_pct, low_stock_threshold, loan_days)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET card_commission_pct = EXCLUDED.card_commission_pct,
		    low_stock_threshold = EXCLUDED.low_stock_threshold,
		    loan_days = EXCLUDED.loan_days,
		    updated_at = NOW()
		RETURNING updated_at`,
		settings.CardCommissionPct, settings.LowStockThreshold, settings.LoanDays,
	).Scan(&settings.UpdatedAt)
}
