package datafetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go_stocksync/services/transformer"
)

const finMindBaseURL = "https://api.finmindtrade.com/api/v4/data"

// FinMindClient fetches Taiwan fundamentals and dividend history. The token
// is optional; without one FinMind serves a reduced request quota.
type FinMindClient struct {
	client *http.Client
	token  string
}

func NewFinMindClient(token string) *FinMindClient {
	return &FinMindClient{client: newHTTPClient(), token: token}
}

func (c *FinMindClient) dataURL(dataset, symbol, startDate string) string {
	q := url.Values{}
	q.Set("dataset", dataset)
	q.Set("data_id", symbol)
	if startDate != "" {
		q.Set("start_date", startDate)
	}
	if c.token != "" {
		q.Set("token", c.token)
	}
	return finMindBaseURL + "?" + q.Encode()
}

// finMindEnvelope is the common FinMind response wrapper. Status 200 means
// success regardless of the HTTP status line.
type finMindEnvelope[T any] struct {
	Msg    string `json:"msg"`
	Status int    `json:"status"`
	Data   []T    `json:"data"`
}

func finMindFetch[T any](ctx context.Context, c *FinMindClient, dataset, symbol, startDate string) ([]T, error) {
	var resp finMindEnvelope[T]
	if err := getJSON(ctx, c.client, "FinMind", c.dataURL(dataset, symbol, startDate), &resp); err != nil {
		return nil, err
	}
	if resp.Status != 200 {
		errType := "API"
		if resp.Status == http.StatusTooManyRequests {
			errType = "RateLimit"
		}
		return nil, &FetchError{Source: "FinMind", Type: errType, Message: fmt.Sprintf("status %d: %s", resp.Status, resp.Msg)}
	}
	return resp.Data, nil
}

// Fundamentals fetches per-quarter fundamental ratios for one symbol since
// startDate ("YYYY-MM-DD").
func (c *FinMindClient) Fundamentals(ctx context.Context, symbol, startDate string) ([]transformer.FinMindFundamentalRow, error) {
	return finMindFetch[transformer.FinMindFundamentalRow](ctx, c, "TaiwanStockFinancialStatements", symbol, startDate)
}

// Dividends fetches yearly dividend records for one symbol since startDate.
func (c *FinMindClient) Dividends(ctx context.Context, symbol, startDate string) ([]transformer.FinMindDividendRow, error) {
	return finMindFetch[transformer.FinMindDividendRow](ctx, c, "TaiwanStockDividend", symbol, startDate)
}
