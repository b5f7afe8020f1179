package models

import (
	"time"

	"gorm.io/gorm"
)

// Market identifies the listing venue of a stock.
type Market string

const (
	// Taiwan markets
	MarketTWSE Market = "TWSE" // 上市 (Taiwan Stock Exchange)
	MarketTPEx Market = "TPEx" // 上櫃 (Taipei Exchange)

	// US markets
	MarketNASDAQ Market = "NASDAQ"
	MarketNYSE   Market = "NYSE"
)

// IsTaiwan reports whether the market belongs to the Taiwan country namespace.
func (m Market) IsTaiwan() bool {
	return m == MarketTWSE || m == MarketTPEx
}

// IsUS reports whether the market belongs to the US country namespace.
func (m Market) IsUS() bool {
	return m == MarketNASDAQ || m == MarketNYSE
}

// IndustryUnclassified is the sentinel industry for stocks whose upstream
// payload carries no industry classification.
const IndustryUnclassified = "未分類"

// Stock represents a listed equity. Identity key is (market, symbol);
// delisted stocks are marked inactive, never deleted.
type Stock struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Symbol     string     `gorm:"uniqueIndex:idx_market_symbol;not null" json:"symbol"`
	Market     Market     `gorm:"uniqueIndex:idx_market_symbol;not null" json:"market"`
	Name       string     `json:"name"`
	ShortName  string     `json:"short_name"`
	Industry   string     `json:"industry"`
	IsActive   bool       `json:"is_active"`
	ListedDate *time.Time `json:"listed_date"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// StockPrice represents one daily OHLCV bar. All monetary fields are scaled
// integers: prices in cents (value x 100), ChangePercent x 10000.
// Rows are upserted by (symbol, date).
type StockPrice struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Symbol        string    `gorm:"uniqueIndex:idx_symbol_date;not null" json:"symbol"`
	Date          time.Time `gorm:"uniqueIndex:idx_symbol_date;not null" json:"date"`
	Open          int64     `json:"open"`
	High          int64     `json:"high"`
	Low           int64     `json:"low"`
	Close         int64     `json:"close"`
	Volume        int64     `json:"volume"`
	Amount        int64     `json:"amount"`
	Change        int64     `json:"change"`
	ChangePercent int64     `json:"change_percent"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StockIndicator stores derived technical indicators for one symbol and date.
// Each field stays NULL until enough price history exists for its window.
// MA and MACD values are in cents; RSI14, KValue and DValue are x 10000.
type StockIndicator struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Symbol        string    `gorm:"uniqueIndex:idx_ind_symbol_date;not null" json:"symbol"`
	Date          time.Time `gorm:"uniqueIndex:idx_ind_symbol_date;not null" json:"date"`
	MA5           *int64    `json:"ma5"`
	MA10          *int64    `json:"ma10"`
	MA20          *int64    `json:"ma20"`
	MA60          *int64    `json:"ma60"`
	RSI14         *int64    `json:"rsi14"`
	MACD          *int64    `json:"macd"`
	MACDSignal    *int64    `json:"macd_signal"`
	MACDHistogram *int64    `json:"macd_histogram"`
	KValue        *int64    `json:"k_value"`
	DValue        *int64    `json:"d_value"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StockFundamental stores quarterly fundamental ratios, scaled x 100.
type StockFundamental struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"uniqueIndex:idx_fund_key;not null" json:"symbol"`
	Year      int       `gorm:"uniqueIndex:idx_fund_key" json:"year"`
	Quarter   int       `gorm:"uniqueIndex:idx_fund_key" json:"quarter"`
	EPS       int64     `json:"eps"`
	PE        int64     `json:"pe"`
	PB        int64     `json:"pb"`
	ROE       int64     `json:"roe"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockDividend stores yearly cash dividends (cents) and yield (x 10000).
type StockDividend struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Symbol       string    `gorm:"uniqueIndex:idx_div_key;not null" json:"symbol"`
	Year         int       `gorm:"uniqueIndex:idx_div_key" json:"year"`
	CashDividend int64     `json:"cash_dividend"`
	YieldRate    int64     `json:"yield_rate"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MigrateStockModels runs database migrations for stock-related models
func MigrateStockModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Stock{},
		&StockPrice{},
		&StockIndicator{},
		&StockFundamental{},
		&StockDividend{},
	)
}
