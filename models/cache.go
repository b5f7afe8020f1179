package models

import (
	"time"

	"gorm.io/gorm"
)

// StockDataCache is the durable cache tier. CacheKey follows the grammar
// "{dataType}:{identifier}". Expired rows are swept by a scheduled job;
// clearing a key tombstones the row (expires_at in the past) so it can still
// serve audit queries.
type StockDataCache struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CacheKey  string    `gorm:"uniqueIndex;not null" json:"cache_key"`
	Market    string    `json:"market"`
	Symbol    string    `json:"symbol"`
	DataType  string    `json:"data_type"`
	Data      string    `json:"data"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MigrateCacheModels runs database migrations for the durable cache tier
func MigrateCacheModels(db *gorm.DB) error {
	return db.AutoMigrate(&StockDataCache{})
}
