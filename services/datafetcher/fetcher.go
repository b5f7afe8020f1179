// Package datafetcher holds the upstream market-data adapters. Each client
// exposes typed fetch operations whose raw row shapes are consumed only by
// the transformer; HTTP and auth details stay inside this package.
package datafetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Upstream calls carry a fixed single-digit-second timeout; a timeout is
// treated like any other failure by the retry executor.
const requestTimeout = 8 * time.Second

// FetchError tags an upstream failure for SyncError classification.
type FetchError struct {
	Source  string
	Type    string // Network, Timeout, RateLimit, API
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Type, e.Message)
}

func (e *FetchError) ErrorType() string { return e.Type }

func (e *FetchError) Unwrap() error { return e.Cause }

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// getJSON fetches a URL and decodes the JSON body into dest, mapping
// transport and status failures onto FetchError tags.
func getJSON(ctx context.Context, client *http.Client, source, rawURL string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &FetchError{Source: source, Type: "API", Message: "invalid request", Cause: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := client.Do(req)
	if err != nil {
		errType := "Network"
		if ctx.Err() != nil || isTimeout(err) {
			errType = "Timeout"
		}
		return &FetchError{Source: source, Type: errType, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &FetchError{Source: source, Type: "RateLimit", Message: "rate limited"}
	}
	if resp.StatusCode >= 400 {
		return &FetchError{Source: source, Type: "API", Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Source: source, Type: "Network", Message: "failed to read response", Cause: err}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return &FetchError{Source: source, Type: "API", Message: "failed to parse response", Cause: err}
	}

	return nil
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok {
		return t.Timeout()
	}
	if u, ok := err.(*url.Error); ok {
		return u.Timeout()
	}
	return false
}
