package datafetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go_stocksync/services/transformer"
)

const twelveDataBaseURL = "https://api.twelvedata.com"

// TwelveDataClient fetches US market data. Every call carries the account
// API key; the free tier is heavily rate limited, so callers pace requests.
type TwelveDataClient struct {
	client *http.Client
	apiKey string
}

func NewTwelveDataClient(apiKey string) *TwelveDataClient {
	return &TwelveDataClient{client: newHTTPClient(), apiKey: apiKey}
}

// twelveDataErrorEnvelope is the error shape TwelveData returns with HTTP 200.
type twelveDataErrorEnvelope struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e twelveDataErrorEnvelope) toFetchError() *FetchError {
	if e.Status != "error" {
		return nil
	}
	errType := "API"
	if e.Code == http.StatusTooManyRequests {
		errType = "RateLimit"
	}
	return &FetchError{Source: "TwelveData", Type: errType, Message: e.Message}
}

// Quote fetches the latest quote for one symbol.
func (c *TwelveDataClient) Quote(ctx context.Context, symbol string) (transformer.TwelveDataQuote, error) {
	rawURL := fmt.Sprintf("%s/quote?symbol=%s&apikey=%s",
		twelveDataBaseURL, url.QueryEscape(symbol), url.QueryEscape(c.apiKey))

	var payload struct {
		transformer.TwelveDataQuote
		twelveDataErrorEnvelope
	}
	if err := getJSON(ctx, c.client, "TwelveData", rawURL, &payload); err != nil {
		return transformer.TwelveDataQuote{}, err
	}
	if fe := payload.toFetchError(); fe != nil {
		return transformer.TwelveDataQuote{}, fe
	}
	return payload.TwelveDataQuote, nil
}

// TimeSeries fetches up to outputSize daily bars for one symbol, most recent
// first.
func (c *TwelveDataClient) TimeSeries(ctx context.Context, symbol string, outputSize int) ([]transformer.TwelveDataBar, error) {
	rawURL := fmt.Sprintf("%s/time_series?symbol=%s&interval=1day&outputsize=%d&apikey=%s",
		twelveDataBaseURL, url.QueryEscape(symbol), outputSize, url.QueryEscape(c.apiKey))

	var payload struct {
		Values []transformer.TwelveDataBar `json:"values"`
		twelveDataErrorEnvelope
	}
	if err := getJSON(ctx, c.client, "TwelveData", rawURL, &payload); err != nil {
		return nil, err
	}
	if fe := payload.toFetchError(); fe != nil {
		return nil, fe
	}
	return payload.Values, nil
}
