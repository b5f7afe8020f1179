// Package sync orchestrates the scheduled and manual market data sync runs:
// fetch, transform, persist, record outcome. A batch finishes even when
// individual symbols fail; per-entity failures become SyncError rows and the
// run outcome degrades to partial.
package sync

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go_stocksync/models"
)

// Store is the persistence surface the orchestrator runs against.
type Store interface {
	UpsertStocks(ctx context.Context, stocks []models.Stock) (int64, error)
	UpsertPrices(ctx context.Context, prices []models.StockPrice) (int64, error)
	UpsertIndicators(ctx context.Context, indicators []models.StockIndicator) (int64, error)
	UpsertFundamentals(ctx context.Context, fundamentals []models.StockFundamental) (int64, error)
	UpsertDividends(ctx context.Context, dividends []models.StockDividend) (int64, error)

	ActiveSymbols(ctx context.Context, markets []models.Market) ([]string, error)
	SymbolsWithPrices(ctx context.Context) ([]string, error)
	PricesBySymbol(ctx context.Context, symbol string, limit int) ([]models.StockPrice, error)

	LatestSyncStatus(ctx context.Context, dataType, source string) (*models.SyncStatus, error)
	InsertSyncStatus(ctx context.Context, status models.SyncStatus) error
	RecordSyncError(ctx context.Context, syncErr models.SyncError) error
	ListSyncStatuses(ctx context.Context, limit int) ([]models.SyncStatus, error)
	ListSyncErrors(ctx context.Context, unresolvedOnly bool, limit int) ([]models.SyncError, error)
}

// GormStore implements Store on PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// upsertBatchSize keeps multi-row inserts under the driver parameter limit.
const upsertBatchSize = 500

// UpsertStocks inserts or refreshes roster rows keyed by (market, symbol).
// IsActive is part of the update set so relisted stocks come back active.
func (s *GormStore) UpsertStocks(ctx context.Context, stocks []models.Stock) (int64, error) {
	if len(stocks) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "market"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "short_name", "industry", "is_active", "updated_at"}),
	}).CreateInBatches(stocks, upsertBatchSize)
	return result.RowsAffected, result.Error
}

// UpsertPrices inserts or refreshes daily bars keyed by (symbol, date).
func (s *GormStore) UpsertPrices(ctx context.Context, prices []models.StockPrice) (int64, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open", "high", "low", "close", "volume", "amount", "change", "change_percent", "updated_at",
		}),
	}).CreateInBatches(prices, upsertBatchSize)
	return result.RowsAffected, result.Error
}

// UpsertIndicators inserts or refreshes indicator rows keyed by (symbol, date).
func (s *GormStore) UpsertIndicators(ctx context.Context, indicators []models.StockIndicator) (int64, error) {
	if len(indicators) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"ma5", "ma10", "ma20", "ma60", "rsi14",
			"macd", "macd_signal", "macd_histogram", "k_value", "d_value", "updated_at",
		}),
	}).CreateInBatches(indicators, upsertBatchSize)
	return result.RowsAffected, result.Error
}

// UpsertFundamentals inserts or refreshes rows keyed by (symbol, year, quarter).
func (s *GormStore) UpsertFundamentals(ctx context.Context, fundamentals []models.StockFundamental) (int64, error) {
	if len(fundamentals) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "year"}, {Name: "quarter"}},
		DoUpdates: clause.AssignmentColumns([]string{"eps", "pe", "pb", "roe", "updated_at"}),
	}).CreateInBatches(fundamentals, upsertBatchSize)
	return result.RowsAffected, result.Error
}

// UpsertDividends inserts or refreshes rows keyed by (symbol, year).
func (s *GormStore) UpsertDividends(ctx context.Context, dividends []models.StockDividend) (int64, error) {
	if len(dividends) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{"cash_dividend", "yield_rate", "updated_at"}),
	}).CreateInBatches(dividends, upsertBatchSize)
	return result.RowsAffected, result.Error
}

// ActiveSymbols returns active symbols on the given markets, ordered for
// deterministic batch resume offsets.
func (s *GormStore) ActiveSymbols(ctx context.Context, markets []models.Market) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).Model(&models.Stock{}).
		Where("is_active = ? AND market IN ?", true, markets).
		Order("symbol").
		Pluck("symbol", &symbols).Error
	return symbols, err
}

// SymbolsWithPrices returns every symbol with at least one stored bar.
func (s *GormStore) SymbolsWithPrices(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).Model(&models.StockPrice{}).
		Distinct("symbol").
		Order("symbol").
		Pluck("symbol", &symbols).Error
	return symbols, err
}

// PricesBySymbol returns the most recent limit bars in ascending date order,
// ready for indicator calculation.
func (s *GormStore) PricesBySymbol(ctx context.Context, symbol string, limit int) ([]models.StockPrice, error) {
	var prices []models.StockPrice
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("date DESC").
		Limit(limit).
		Find(&prices).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}
	return prices, nil
}

// LatestSyncStatus returns the most recent run record for (dataType, source),
// or nil when no run has been recorded yet.
func (s *GormStore) LatestSyncStatus(ctx context.Context, dataType, source string) (*models.SyncStatus, error) {
	var status models.SyncStatus
	err := s.db.WithContext(ctx).
		Where("data_type = ? AND source = ?", dataType, source).
		Order("last_sync_at DESC").
		First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// InsertSyncStatus appends one run outcome row.
func (s *GormStore) InsertSyncStatus(ctx context.Context, status models.SyncStatus) error {
	if status.LastSyncAt.IsZero() {
		status.LastSyncAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&status).Error
}

// RecordSyncError appends one per-entity failure row.
func (s *GormStore) RecordSyncError(ctx context.Context, syncErr models.SyncError) error {
	return s.db.WithContext(ctx).Create(&syncErr).Error
}

// ListSyncStatuses returns recent run records, newest first.
func (s *GormStore) ListSyncStatuses(ctx context.Context, limit int) ([]models.SyncStatus, error) {
	var statuses []models.SyncStatus
	err := s.db.WithContext(ctx).
		Order("last_sync_at DESC").
		Limit(limit).
		Find(&statuses).Error
	return statuses, err
}

// ListSyncErrors returns recent failure rows for triage, newest first.
func (s *GormStore) ListSyncErrors(ctx context.Context, unresolvedOnly bool, limit int) ([]models.SyncError, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if unresolvedOnly {
		query = query.Where("resolved = ?", false)
	}

	var syncErrors []models.SyncError
	err := query.Find(&syncErrors).Error
	return syncErrors, err
}
