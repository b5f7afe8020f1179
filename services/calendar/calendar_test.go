package calendar

import (
	"errors"
	"testing"
	"time"

	"go_stocksync/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsTradingDay(t *testing.T) {
	tests := []struct {
		name   string
		date   time.Time
		market models.Market
		want   bool
	}{
		{"regular tuesday TW", date(2024, 12, 3), models.MarketTWSE, true},
		{"regular tuesday US", date(2024, 12, 3), models.MarketNASDAQ, true},
		{"saturday", date(2024, 12, 7), models.MarketTWSE, false},
		{"sunday", date(2024, 12, 8), models.MarketNYSE, false},
		{"christmas US", date(2024, 12, 25), models.MarketNASDAQ, false},
		{"christmas is a TW trading day", date(2024, 12, 25), models.MarketTWSE, true},
		{"national day TW", date(2024, 10, 10), models.MarketTWSE, false},
		{"national day is a US trading day", date(2024, 10, 10), models.MarketNYSE, true},
		{"lunar new year TW", date(2025, 1, 29), models.MarketTPEx, false},
		{"thanksgiving US", date(2024, 11, 28), models.MarketNYSE, false},
		{"unknown year weekday", date(2030, 6, 5), models.MarketTWSE, true},
		{"unknown year weekend", date(2030, 6, 8), models.MarketTWSE, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsTradingDay(tt.date, tt.market)
			if err != nil {
				t.Fatalf("IsTradingDay(%v) error: %v", tt.date, err)
			}
			if got != tt.want {
				t.Errorf("IsTradingDay(%v, %s) = %v, want %v", tt.date.Format("2006-01-02"), tt.market, got, tt.want)
			}
		})
	}
}

func TestIsTradingDayInvalidDate(t *testing.T) {
	if _, err := IsTradingDay(time.Time{}, models.MarketTWSE); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := PreviousTradingDay(time.Time{}, models.MarketTWSE); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestPreviousTradingDay(t *testing.T) {
	tests := []struct {
		name   string
		date   time.Time
		market models.Market
		want   time.Time
	}{
		{"monday goes to friday", date(2024, 12, 2), models.MarketTWSE, date(2024, 11, 29)},
		{"midweek goes to previous day", date(2024, 12, 4), models.MarketTWSE, date(2024, 12, 3)},
		{"skips christmas US", date(2024, 12, 26), models.MarketNASDAQ, date(2024, 12, 24)},
		{"skips thanksgiving US", date(2024, 11, 29), models.MarketNYSE, date(2024, 11, 27)},
		{"skips lunar new year block TW", date(2025, 2, 3), models.MarketTWSE, date(2025, 1, 24)},
		{"skips national day TW", date(2024, 10, 11), models.MarketTWSE, date(2024, 10, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PreviousTradingDay(tt.date, tt.market)
			if err != nil {
				t.Fatalf("PreviousTradingDay(%v) error: %v", tt.date, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("PreviousTradingDay(%v, %s) = %v, want %v",
					tt.date.Format("2006-01-02"), tt.market, got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}
