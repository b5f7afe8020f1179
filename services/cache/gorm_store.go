package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go_stocksync/models"
)

// GormStore implements the durable cache tier over the stock_data_caches
// table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the payload for cacheKey if the row exists and has not
// expired. The expiry check lives here, not in the manager.
func (s *GormStore) Get(ctx context.Context, cacheKey string) (string, bool, error) {
	var entry models.StockDataCache
	err := s.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", cacheKey, time.Now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Data, true, nil
}

// Set upserts by cache key, refreshing payload and expiry.
func (s *GormStore) Set(ctx context.Context, entry models.StockDataCache) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"market", "symbol", "data_type", "data", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

// DeleteExpired physically removes rows whose expiry has passed.
func (s *GormStore) DeleteExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&models.StockDataCache{})
	return result.RowsAffected, result.Error
}
