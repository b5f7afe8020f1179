package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go_stocksync/models"
	"go_stocksync/services/cache"
	"go_stocksync/services/calendar"
	"go_stocksync/services/datafetcher"
	"go_stocksync/services/indicators"
	"go_stocksync/services/retry"
	"go_stocksync/services/transformer"
)

// Source names recorded in SyncStatus rows.
const (
	SourceTWSE       = "TWSE"
	SourceTPEx       = "TPEx"
	SourceTwelveData = "TwelveData"
	SourceFinMind    = "FinMind"
)

// TwseSource is the listed-market adapter contract.
type TwseSource interface {
	StockList(ctx context.Context) ([]transformer.TwseStockRow, error)
	DailyPrices(ctx context.Context) ([]transformer.TwseDailyRow, error)
}

// TpexSource is the over-the-counter adapter contract.
type TpexSource interface {
	StockList(ctx context.Context) ([]transformer.TpexStockRow, error)
	HistoricalPrices(ctx context.Context, symbol, rocYearMonth string) ([]transformer.TpexDailyRow, error)
}

// UsSource is the US market adapter contract.
type UsSource interface {
	Quote(ctx context.Context, symbol string) (transformer.TwelveDataQuote, error)
	TimeSeries(ctx context.Context, symbol string, outputSize int) ([]transformer.TwelveDataBar, error)
}

// FundamentalSource is the Taiwan fundamentals/dividends adapter contract.
type FundamentalSource interface {
	Fundamentals(ctx context.Context, symbol, startDate string) ([]transformer.FinMindFundamentalRow, error)
	Dividends(ctx context.Context, symbol, startDate string) ([]transformer.FinMindDividendRow, error)
}

// Notifier delivers run-outcome alerts to the owner channel.
type Notifier interface {
	Notify(ctx context.Context, subject, message string)
}

// Snapshotter persists post-sync indicator summaries to the backup store.
type Snapshotter interface {
	SaveIndicatorSummary(ctx context.Context, indicator models.StockIndicator) error
}

// Options tunes orchestrator pacing. Zero values fall back to defaults.
type Options struct {
	BatchSize    int           // symbols per batch, default 50
	BatchDelay   time.Duration // pause between batches, default 2s
	RequestDelay time.Duration // pause between per-symbol calls, default 1s
	ResumeOffset int           // skip this many symbols at the start of a run
	MaxAttempts  int           // attempts per upstream call, default 3
	BaseDelay    time.Duration // retry backoff base, default 1s
	HistoryBars  int           // price window loaded per symbol for indicators, default 120
	UsOutputSize int           // bars per TwelveData time-series call, default 30
	UsSymbols    []string      // configured US watchlist
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = 2 * time.Second
	}
	if o.RequestDelay <= 0 {
		o.RequestDelay = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.HistoryBars <= 0 {
		o.HistoryBars = 120
	}
	if o.UsOutputSize <= 0 {
		o.UsOutputSize = 30
	}
	return o
}

// Result is the aggregate outcome of one sync run.
type Result struct {
	DataType    string `json:"data_type"`
	Source      string `json:"source"`
	Status      string `json:"status"`
	RecordCount int    `json:"record_count"`
	ErrorCount  int    `json:"error_count"`
	Message     string `json:"message,omitempty"`
}

// Orchestrator drives the sync runs. Entity-level calls are sequential
// within a run; distinct runs may overlap.
type Orchestrator struct {
	store    Store
	cache    *cache.Manager
	twse     TwseSource
	tpex     TpexSource
	us       UsSource
	finmind  FundamentalSource
	notifier Notifier
	backup   Snapshotter // nil when backups are disabled
	opts     Options
	loc      *time.Location
	now      func() time.Time
}

// NewOrchestrator wires a sync orchestrator. tz anchors trading-day checks
// and should be Asia/Taipei in production.
func NewOrchestrator(store Store, cacheManager *cache.Manager, twse TwseSource, tpex TpexSource, us UsSource, finmind FundamentalSource, notifier Notifier, opts Options, tz *time.Location) *Orchestrator {
	if tz == nil {
		tz = time.UTC
	}
	return &Orchestrator{
		store:    store,
		cache:    cacheManager,
		twse:     twse,
		tpex:     tpex,
		us:       us,
		finmind:  finmind,
		notifier: notifier,
		opts:     opts.withDefaults(),
		loc:      tz,
		now:      time.Now,
	}
}

// SetSnapshotter enables post-sync indicator backups.
func (o *Orchestrator) SetSnapshotter(s Snapshotter) { o.backup = s }

// SyncStocks refreshes the full roster: TWSE and TPEx whole-market lists plus
// per-symbol quotes for the configured US watchlist.
func (o *Orchestrator) SyncStocks(ctx context.Context) Result {
	records, errCount := 0, 0

	if n, err := o.syncTwseRoster(ctx); err != nil {
		errCount++
	} else {
		records += n
	}

	if n, err := o.syncTpexRoster(ctx); err != nil {
		errCount++
	} else {
		records += n
	}

	usRecords, usErrs := o.forEachSymbol(ctx, o.opts.UsSymbols, models.DataTypeStocks, func(ctx context.Context, symbol string) (int, error) {
		quote, err := o.us.Quote(ctx, symbol)
		if err != nil {
			return 0, err
		}

		stock := transformer.TransformUsStock(quote)
		if !transformer.ValidateStockInfo(stock) {
			log.Printf("[SyncJob] Dropping invalid US stock %q", symbol)
			return 0, nil
		}

		n, err := o.store.UpsertStocks(ctx, []models.Stock{stock})
		return int(n), err
	})
	records += usRecords
	errCount += usErrs

	return o.finishRun(ctx, models.DataTypeStocks, SourceTwelveData, records, errCount, nil)
}

func (o *Orchestrator) syncTwseRoster(ctx context.Context) (int, error) {
	var rows []transformer.TwseStockRow
	err := retry.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		fetched, err := o.twse.StockList(ctx)
		if err != nil {
			return err
		}
		rows = fetched
		return nil
	}, o.retryOptions(models.DataTypeStocks, SourceTWSE))
	if err != nil {
		log.Printf("[SyncJob] TWSE roster fetch failed: %v", err)
		return 0, err
	}

	stocks := transformer.TransformTwseStockBatch(rows)
	n, err := o.store.UpsertStocks(ctx, stocks)
	if err != nil {
		log.Printf("[SyncJob] TWSE roster upsert failed: %v", err)
		return 0, err
	}

	o.cacheSet(ctx, cache.TypeStock, "roster:"+SourceTWSE, stocks)
	return int(n), nil
}

func (o *Orchestrator) syncTpexRoster(ctx context.Context) (int, error) {
	var rows []transformer.TpexStockRow
	err := retry.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		fetched, err := o.tpex.StockList(ctx)
		if err != nil {
			return err
		}
		rows = fetched
		return nil
	}, o.retryOptions(models.DataTypeStocks, SourceTPEx))
	if err != nil {
		log.Printf("[SyncJob] TPEx roster fetch failed: %v", err)
		return 0, err
	}

	stocks := transformer.TransformTpexStockBatch(rows)
	n, err := o.store.UpsertStocks(ctx, stocks)
	if err != nil {
		log.Printf("[SyncJob] TPEx roster upsert failed: %v", err)
		return 0, err
	}

	o.cacheSet(ctx, cache.TypeStock, "roster:"+SourceTPEx, stocks)
	return int(n), nil
}

// SyncPrices ingests the most recent daily bars. The Taiwan leg runs only on
// Taiwan trading days and the US leg only when the previous US day traded;
// a leg already synced successfully today is skipped via its checkpoint.
func (o *Orchestrator) SyncPrices(ctx context.Context) Result {
	today := o.now().In(o.loc)
	records, errCount := 0, 0

	twTrading, err := calendar.IsTradingDay(today, models.MarketTWSE)
	if err != nil {
		return o.finishRun(ctx, models.DataTypePrices, SourceTWSE, 0, 0, fmt.Errorf("trading day check: %w", err))
	}

	if !twTrading {
		log.Printf("[SyncJob] %s is not a Taiwan trading day, skipping TW prices", today.Format("2006-01-02"))
	} else {
		skip, err := o.alreadySyncedToday(ctx, models.DataTypePrices, SourceTWSE, today)
		if err != nil {
			return o.finishRun(ctx, models.DataTypePrices, SourceTWSE, 0, 0, fmt.Errorf("checkpoint read: %w", err))
		}
		if !skip {
			if n, err := o.syncTwsePrices(ctx); err != nil {
				errCount++
			} else {
				records += n
			}

			n, errs := o.syncTpexPrices(ctx, today)
			records += n
			errCount += errs
		}
	}

	usDay := today.AddDate(0, 0, -1)
	usTrading, err := calendar.IsTradingDay(usDay, models.MarketNASDAQ)
	if err != nil {
		return o.finishRun(ctx, models.DataTypePrices, SourceTwelveData, records, errCount, fmt.Errorf("trading day check: %w", err))
	}

	if !usTrading {
		log.Printf("[SyncJob] %s is not a US trading day, skipping US prices", usDay.Format("2006-01-02"))
	} else {
		n, errs := o.forEachSymbol(ctx, o.opts.UsSymbols, models.DataTypePrices, func(ctx context.Context, symbol string) (int, error) {
			bars, err := o.us.TimeSeries(ctx, symbol, o.opts.UsOutputSize)
			if err != nil {
				return 0, err
			}

			prices := transformer.TransformUsBarBatch(symbol, bars)
			upserted, err := o.store.UpsertPrices(ctx, prices)
			if err != nil {
				return 0, err
			}

			o.cacheSet(ctx, cache.TypePrice, symbol, prices)
			return int(upserted), nil
		})
		records += n
		errCount += errs
	}

	return o.finishRun(ctx, models.DataTypePrices, SourceTWSE, records, errCount, nil)
}

func (o *Orchestrator) syncTwsePrices(ctx context.Context) (int, error) {
	var rows []transformer.TwseDailyRow
	err := retry.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		fetched, err := o.twse.DailyPrices(ctx)
		if err != nil {
			return err
		}
		rows = fetched
		return nil
	}, o.retryOptions(models.DataTypePrices, SourceTWSE))
	if err != nil {
		log.Printf("[SyncJob] TWSE daily report fetch failed: %v", err)
		return 0, err
	}

	prices := transformer.TransformTwsePriceBatch(rows)
	n, err := o.store.UpsertPrices(ctx, prices)
	if err != nil {
		log.Printf("[SyncJob] TWSE price upsert failed: %v", err)
		return 0, err
	}
	return int(n), nil
}

func (o *Orchestrator) syncTpexPrices(ctx context.Context, today time.Time) (int, int) {
	symbols, err := o.store.ActiveSymbols(ctx, []models.Market{models.MarketTPEx})
	if err != nil {
		log.Printf("[SyncJob] TPEx symbol enumeration failed: %v", err)
		return 0, 1
	}

	rocYearMonth := fmt.Sprintf("%d/%02d", today.Year()-1911, int(today.Month()))

	return o.forEachSymbol(ctx, symbols, models.DataTypePrices, func(ctx context.Context, symbol string) (int, error) {
		rows, err := o.tpex.HistoricalPrices(ctx, symbol, rocYearMonth)
		if err != nil {
			return 0, err
		}

		prices := make([]models.StockPrice, 0, len(rows))
		for _, row := range rows {
			price := transformer.TransformTpexPrice(symbol, row)
			if !transformer.ValidatePriceData(price) {
				log.Printf("[SyncJob] Dropping invalid TPEx bar: symbol=%q", symbol)
				continue
			}
			prices = append(prices, price)
		}

		upserted, err := o.store.UpsertPrices(ctx, prices)
		if err != nil {
			return 0, err
		}

		o.cacheSet(ctx, cache.TypePrice, symbol, prices)
		return int(upserted), nil
	})
}

// SyncIndicators recomputes technical indicators for every symbol with price
// history. Fetch-free, so the per-request delay is skipped.
func (o *Orchestrator) SyncIndicators(ctx context.Context) Result {
	symbols, err := o.store.SymbolsWithPrices(ctx)
	if err != nil {
		return o.finishRun(ctx, models.DataTypeIndicators, "local", 0, 0, fmt.Errorf("symbol enumeration: %w", err))
	}

	records, errCount := 0, 0
	for _, symbol := range applyOffset(symbols, o.opts.ResumeOffset) {
		n, err := o.syncSymbolIndicators(ctx, symbol)
		if err != nil {
			log.Printf("[SyncJob] Indicator sync failed for %s: %v", symbol, err)
			errCount++
			o.recordError(ctx, models.DataTypeIndicators, symbol, err)
			continue
		}
		records += n
	}

	return o.finishRun(ctx, models.DataTypeIndicators, "local", records, errCount, nil)
}

func (o *Orchestrator) syncSymbolIndicators(ctx context.Context, symbol string) (int, error) {
	prices, err := o.store.PricesBySymbol(ctx, symbol, o.opts.HistoryBars)
	if err != nil {
		return 0, fmt.Errorf("load prices: %w", err)
	}
	if len(prices) == 0 {
		return 0, nil
	}

	points := make([]indicators.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = indicators.PricePoint{
			Date:   p.Date,
			Open:   p.Open,
			High:   p.High,
			Low:    p.Low,
			Close:  p.Close,
			Volume: p.Volume,
		}
	}

	computed := indicators.CalculateAll(points)
	rows := make([]models.StockIndicator, len(computed))
	for i, c := range computed {
		rows[i] = models.StockIndicator{
			Symbol:        symbol,
			Date:          c.Date,
			MA5:           c.MA5,
			MA10:          c.MA10,
			MA20:          c.MA20,
			MA60:          c.MA60,
			RSI14:         c.RSI14,
			MACD:          c.MACD,
			MACDSignal:    c.MACDSignal,
			MACDHistogram: c.MACDHistogram,
			KValue:        c.KValue,
			DValue:        c.DValue,
		}
	}

	n, err := o.store.UpsertIndicators(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("upsert indicators: %w", err)
	}

	if len(rows) > 0 {
		latest := rows[len(rows)-1]
		o.cacheSet(ctx, cache.TypeIndicator, symbol, latest)

		if o.backup != nil {
			if err := o.backup.SaveIndicatorSummary(ctx, latest); err != nil {
				log.Printf("[SyncJob] Indicator backup failed for %s: %v", symbol, err)
			}
		}
	}

	return int(n), nil
}

// SyncFundamentals refreshes quarterly fundamentals for active Taiwan symbols.
func (o *Orchestrator) SyncFundamentals(ctx context.Context) Result {
	symbols, err := o.store.ActiveSymbols(ctx, []models.Market{models.MarketTWSE, models.MarketTPEx})
	if err != nil {
		return o.finishRun(ctx, models.DataTypeFinancials, SourceFinMind, 0, 0, fmt.Errorf("symbol enumeration: %w", err))
	}

	startDate := o.now().In(o.loc).AddDate(-2, 0, 0).Format("2006-01-02")

	records, errCount := o.forEachSymbol(ctx, symbols, models.DataTypeFinancials, func(ctx context.Context, symbol string) (int, error) {
		rows, err := o.finmind.Fundamentals(ctx, symbol, startDate)
		if err != nil {
			return 0, err
		}

		fundamentals := make([]models.StockFundamental, 0, len(rows))
		for _, row := range rows {
			fundamentals = append(fundamentals, transformer.TransformFundamental(row))
		}

		upserted, err := o.store.UpsertFundamentals(ctx, fundamentals)
		if err != nil {
			return 0, err
		}

		o.cacheSet(ctx, cache.TypeFundamental, symbol, fundamentals)
		return int(upserted), nil
	})

	return o.finishRun(ctx, models.DataTypeFinancials, SourceFinMind, records, errCount, nil)
}

// SyncDividends refreshes yearly dividend history for active Taiwan symbols.
func (o *Orchestrator) SyncDividends(ctx context.Context) Result {
	symbols, err := o.store.ActiveSymbols(ctx, []models.Market{models.MarketTWSE, models.MarketTPEx})
	if err != nil {
		return o.finishRun(ctx, models.DataTypeDividends, SourceFinMind, 0, 0, fmt.Errorf("symbol enumeration: %w", err))
	}

	startDate := o.now().In(o.loc).AddDate(-3, 0, 0).Format("2006-01-02")

	records, errCount := o.forEachSymbol(ctx, symbols, models.DataTypeDividends, func(ctx context.Context, symbol string) (int, error) {
		rows, err := o.finmind.Dividends(ctx, symbol, startDate)
		if err != nil {
			return 0, err
		}

		dividends := make([]models.StockDividend, 0, len(rows))
		for _, row := range rows {
			dividends = append(dividends, transformer.TransformDividend(row))
		}

		return intOf(o.store.UpsertDividends(ctx, dividends))
	})

	return o.finishRun(ctx, models.DataTypeDividends, SourceFinMind, records, errCount, nil)
}

// WarmupCache preloads the latest indicator rows for every synced symbol into
// the cache tiers. Guarded by a distributed lock so overlapping schedules do
// the work once.
func (o *Orchestrator) WarmupCache(ctx context.Context) {
	if o.cache == nil {
		return
	}
	if !o.cache.TryWarmupLock(ctx, "warmup", 5*time.Minute) {
		log.Printf("[SyncJob] Cache warmup already running elsewhere, skipping")
		return
	}

	symbols, err := o.store.SymbolsWithPrices(ctx)
	if err != nil {
		log.Printf("[SyncJob] Cache warmup symbol enumeration failed: %v", err)
		return
	}

	entries := make(map[string]any, len(symbols))
	for _, symbol := range symbols {
		prices, err := o.store.PricesBySymbol(ctx, symbol, 1)
		if err != nil || len(prices) == 0 {
			continue
		}
		entries[symbol] = prices[len(prices)-1]
	}

	o.cache.SetMany(ctx, cache.TypePrice, entries)
	log.Printf("[SyncJob] Cache warmup primed %d symbols", len(entries))
}

// ClearExpiredCache sweeps expired durable cache rows.
func (o *Orchestrator) ClearExpiredCache(ctx context.Context) {
	if o.cache != nil {
		o.cache.ClearExpired(ctx)
	}
}

// forEachSymbol runs fn per symbol with retries, batching and pacing. It
// returns total record and error counts; a symbol failing after retries is
// counted and the loop moves on.
func (o *Orchestrator) forEachSymbol(ctx context.Context, symbols []string, dataType string, fn func(ctx context.Context, symbol string) (int, error)) (int, int) {
	symbols = applyOffset(symbols, o.opts.ResumeOffset)

	records, errCount := 0, 0
	for i, symbol := range symbols {
		if ctx.Err() != nil {
			log.Printf("[SyncJob] %s run cancelled after %d symbols", dataType, i)
			errCount += len(symbols) - i
			break
		}

		var n int
		err := retry.ExecuteWithRetry(ctx, func(ctx context.Context) error {
			got, err := fn(ctx, symbol)
			if err != nil {
				return err
			}
			n = got
			return nil
		}, o.retryOptions(dataType, symbol))
		if err != nil {
			errCount++
		} else {
			records += n
		}

		if i == len(symbols)-1 {
			break
		}
		if (i+1)%o.opts.BatchSize == 0 {
			o.sleep(ctx, o.opts.BatchDelay)
		} else {
			o.sleep(ctx, o.opts.RequestDelay)
		}
	}
	return records, errCount
}

func (o *Orchestrator) retryOptions(dataType, symbol string) retry.Options {
	return retry.Options{
		MaxAttempts: o.opts.MaxAttempts,
		BaseDelay:   o.opts.BaseDelay,
		DataType:    dataType,
		Symbol:      symbol,
		Recorder:    o.store,
	}
}

// finishRun classifies the outcome, records the SyncStatus row and notifies
// the owner on anything short of full success. setupErr marks an aborted run.
func (o *Orchestrator) finishRun(ctx context.Context, dataType, source string, records, errCount int, setupErr error) Result {
	result := Result{
		DataType:    dataType,
		Source:      source,
		RecordCount: records,
		ErrorCount:  errCount,
	}

	switch {
	case setupErr != nil:
		result.Status = models.SyncStatusFailed
		result.Message = setupErr.Error()
	case errCount == 0:
		result.Status = models.SyncStatusSuccess
	case records > 0:
		result.Status = models.SyncStatusPartial
		result.Message = fmt.Sprintf("%d entities failed", errCount)
	default:
		result.Status = models.SyncStatusFailed
		result.Message = fmt.Sprintf("all %d entities failed", errCount)
	}

	status := models.SyncStatus{
		DataType:     dataType,
		Source:       source,
		LastSyncAt:   o.now(),
		Status:       result.Status,
		RecordCount:  records,
		ErrorMessage: result.Message,
	}
	if err := o.store.InsertSyncStatus(ctx, status); err != nil {
		log.Printf("[SyncJob] Failed to record sync status for %s: %v", dataType, err)
	}

	log.Printf("[SyncJob] %s sync finished: status=%s records=%d errors=%d", dataType, result.Status, records, errCount)

	if result.Status != models.SyncStatusSuccess && o.notifier != nil {
		o.notifier.Notify(ctx, fmt.Sprintf("Sync %s: %s", dataType, result.Status),
			fmt.Sprintf("source=%s records=%d errors=%d %s", source, records, errCount, result.Message))
	}

	return result
}

// alreadySyncedToday reports whether the latest successful run for
// (dataType, source) happened on the same local calendar day.
func (o *Orchestrator) alreadySyncedToday(ctx context.Context, dataType, source string, today time.Time) (bool, error) {
	latest, err := o.store.LatestSyncStatus(ctx, dataType, source)
	if err != nil {
		return false, err
	}
	if latest == nil || latest.Status != models.SyncStatusSuccess {
		return false, nil
	}

	last := latest.LastSyncAt.In(o.loc)
	if last.Year() == today.Year() && last.YearDay() == today.YearDay() {
		log.Printf("[SyncJob] %s/%s already synced today, skipping", dataType, source)
		return true, nil
	}
	return false, nil
}

func (o *Orchestrator) recordError(ctx context.Context, dataType, symbol string, cause error) {
	errorType := "Unknown"
	var fe *datafetcher.FetchError
	if errors.As(cause, &fe) {
		errorType = fe.Type
	}

	record := models.SyncError{
		DataType:     dataType,
		Symbol:       symbol,
		ErrorType:    errorType,
		ErrorMessage: cause.Error(),
		SyncedAt:     o.now(),
	}
	if err := o.store.RecordSyncError(ctx, record); err != nil {
		log.Printf("[SyncJob] Failed to record sync error for %s: %v", symbol, err)
	}
}

func (o *Orchestrator) cacheSet(ctx context.Context, t cache.DataType, identifier string, data any) {
	if o.cache != nil {
		o.cache.Set(ctx, t, identifier, data)
	}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func applyOffset(symbols []string, offset int) []string {
	if offset <= 0 {
		return symbols
	}
	if offset >= len(symbols) {
		return nil
	}
	return symbols[offset:]
}

func intOf(n int64, err error) (int, error) {
	return int(n), err
}
