// Package retry wraps upstream calls with exponential-backoff retries and
// structured error capture. The executor is stateless and knows nothing
// about what the wrapped operation does.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go_stocksync/models"
)

// ErrorRecorder persists a SyncError row after retries are exhausted.
// Implemented by the sync store.
type ErrorRecorder interface {
	RecordSyncError(ctx context.Context, syncErr models.SyncError) error
}

// TypedError lets upstream adapters tag failures (Network, Timeout,
// RateLimit, API) for SyncError classification.
type TypedError interface {
	error
	ErrorType() string
}

// Options configures one ExecuteWithRetry call.
type Options struct {
	MaxAttempts int           // total attempts, default 3
	BaseDelay   time.Duration // backoff base, default 1s

	// When DataType and Symbol identify the failing entity and Recorder is
	// set, exhausted retries persist a SyncError row.
	DataType string
	Symbol   string
	Recorder ErrorRecorder
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	return o
}

// ExecuteWithRetry runs op, retrying failures with pure exponential backoff
// (BaseDelay * 2^attempt, no jitter). The last error is returned after
// MaxAttempts; a timeout counts like any other failure. Sleeping respects
// context cancellation.
func ExecuteWithRetry(ctx context.Context, op func(ctx context.Context) error, opts Options) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if err := op(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt < opts.MaxAttempts-1 {
			delay := opts.BaseDelay << uint(attempt)
			log.Printf("[Retry] Attempt %d/%d failed (%v), retrying in %s", attempt+1, opts.MaxAttempts, lastErr, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			}
		}
	}

	if opts.Recorder != nil && opts.Symbol != "" {
		errorType := "Unknown"
		var typed TypedError
		if errors.As(lastErr, &typed) {
			errorType = typed.ErrorType()
		}

		record := models.SyncError{
			DataType:     opts.DataType,
			Symbol:       opts.Symbol,
			ErrorType:    errorType,
			ErrorMessage: lastErr.Error(),
			RetryCount:   opts.MaxAttempts - 1,
			Resolved:     false,
			SyncedAt:     time.Now(),
		}
		if err := opts.Recorder.RecordSyncError(ctx, record); err != nil {
			log.Printf("[Retry] Failed to record sync error for %s: %v", opts.Symbol, err)
		}
	}

	return lastErr
}
