package datafetcher

import (
	"context"
	"fmt"
	"net/http"

	"go_stocksync/services/transformer"
)

// TWSE open-data endpoints (上市 market).
const (
	twseStockListURL = "https://openapi.twse.com.tw/v1/opendata/t187ap03_L"
	twseDailyAllURL  = "https://openapi.twse.com.tw/v1/exchangeReport/STOCK_DAY_ALL"
	twseMonthlyURL   = "https://www.twse.com.tw/exchangeReport/STOCK_DAY"
)

// TwseClient fetches listed-market data from the TWSE open API.
type TwseClient struct {
	client *http.Client
}

func NewTwseClient() *TwseClient {
	return &TwseClient{client: newHTTPClient()}
}

// StockList fetches the full listed-company roster.
func (c *TwseClient) StockList(ctx context.Context) ([]transformer.TwseStockRow, error) {
	var rows []transformer.TwseStockRow
	if err := getJSON(ctx, c.client, "TWSE", twseStockListURL, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// DailyPrices fetches the whole-market daily report (one row per symbol for
// the most recent trading day).
func (c *TwseClient) DailyPrices(ctx context.Context) ([]transformer.TwseDailyRow, error) {
	var rows []transformer.TwseDailyRow
	if err := getJSON(ctx, c.client, "TWSE", twseDailyAllURL, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// twseMonthlyResponse wraps the per-symbol historical endpoint.
type twseMonthlyResponse struct {
	Stat string     `json:"stat"`
	Data [][]string `json:"data"`
}

// HistoricalPrices fetches one month of daily bars for a symbol. yearMonth
// is "YYYYMM" in the Gregorian calendar. The monthly report uses the same
// positional layout as the TPEx daily rows.
func (c *TwseClient) HistoricalPrices(ctx context.Context, symbol, yearMonth string) ([]transformer.TpexDailyRow, error) {
	url := fmt.Sprintf("%s?response=json&date=%s01&stockNo=%s", twseMonthlyURL, yearMonth, symbol)

	var resp twseMonthlyResponse
	if err := getJSON(ctx, c.client, "TWSE", url, &resp); err != nil {
		return nil, err
	}
	if resp.Stat != "OK" {
		return nil, &FetchError{Source: "TWSE", Type: "API", Message: "unexpected stat " + resp.Stat}
	}

	rows := make([]transformer.TpexDailyRow, 0, len(resp.Data))
	for _, row := range resp.Data {
		rows = append(rows, transformer.TpexDailyRow(row))
	}
	return rows, nil
}
