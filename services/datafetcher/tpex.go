package datafetcher

import (
	"context"
	"fmt"
	"net/http"

	"go_stocksync/services/transformer"
)

// TPEx endpoints (上櫃 market).
const (
	tpexStockListURL = "https://www.tpex.org.tw/openapi/v1/tpex_mainboard_quotes"
	tpexHistoryURL   = "https://www.tpex.org.tw/web/stock/aftertrading/daily_trading_info/st43_result.php"
)

// TpexClient fetches over-the-counter market data from the TPEx API.
type TpexClient struct {
	client *http.Client
}

func NewTpexClient() *TpexClient {
	return &TpexClient{client: newHTTPClient()}
}

// tpexListResponse wraps the roster endpoint, which returns positional rows.
type tpexListResponse struct {
	AaData [][]string `json:"aaData"`
}

// StockList fetches the OTC roster as positional rows.
func (c *TpexClient) StockList(ctx context.Context) ([]transformer.TpexStockRow, error) {
	var resp tpexListResponse
	if err := getJSON(ctx, c.client, "TPEx", tpexStockListURL, &resp); err != nil {
		return nil, err
	}

	rows := make([]transformer.TpexStockRow, 0, len(resp.AaData))
	for _, row := range resp.AaData {
		rows = append(rows, transformer.TpexStockRow(row))
	}
	return rows, nil
}

// tpexHistoryResponse wraps the per-symbol daily trading endpoint.
type tpexHistoryResponse struct {
	AaData [][]string `json:"aaData"`
}

// HistoricalPrices fetches daily bars for a symbol and ROC year/month
// ("113/01").
func (c *TpexClient) HistoricalPrices(ctx context.Context, symbol, rocYearMonth string) ([]transformer.TpexDailyRow, error) {
	url := fmt.Sprintf("%s?l=zh-tw&d=%s&stkno=%s", tpexHistoryURL, rocYearMonth, symbol)

	var resp tpexHistoryResponse
	if err := getJSON(ctx, c.client, "TPEx", url, &resp); err != nil {
		return nil, err
	}

	rows := make([]transformer.TpexDailyRow, 0, len(resp.AaData))
	for _, row := range resp.AaData {
		rows = append(rows, transformer.TpexDailyRow(row))
	}
	return rows, nil
}
