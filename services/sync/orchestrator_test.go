package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"go_stocksync/models"
	"go_stocksync/services/transformer"
)

type fakeStore struct {
	stocks       []models.Stock
	prices       map[string][]models.StockPrice
	indicators   []models.StockIndicator
	fundamentals []models.StockFundamental
	dividends    []models.StockDividend
	statuses     []models.SyncStatus
	syncErrors   []models.SyncError

	active      []string
	withPrices  []string
	priceSeries map[string][]models.StockPrice
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		prices:      map[string][]models.StockPrice{},
		priceSeries: map[string][]models.StockPrice{},
	}
}

func (s *fakeStore) UpsertStocks(_ context.Context, stocks []models.Stock) (int64, error) {
	s.stocks = append(s.stocks, stocks...)
	return int64(len(stocks)), nil
}

func (s *fakeStore) UpsertPrices(_ context.Context, prices []models.StockPrice) (int64, error) {
	for _, p := range prices {
		s.prices[p.Symbol] = append(s.prices[p.Symbol], p)
	}
	return int64(len(prices)), nil
}

func (s *fakeStore) UpsertIndicators(_ context.Context, indicators []models.StockIndicator) (int64, error) {
	s.indicators = append(s.indicators, indicators...)
	return int64(len(indicators)), nil
}

func (s *fakeStore) UpsertFundamentals(_ context.Context, fundamentals []models.StockFundamental) (int64, error) {
	s.fundamentals = append(s.fundamentals, fundamentals...)
	return int64(len(fundamentals)), nil
}

func (s *fakeStore) UpsertDividends(_ context.Context, dividends []models.StockDividend) (int64, error) {
	s.dividends = append(s.dividends, dividends...)
	return int64(len(dividends)), nil
}

func (s *fakeStore) ActiveSymbols(context.Context, []models.Market) ([]string, error) {
	return s.active, nil
}

func (s *fakeStore) SymbolsWithPrices(context.Context) ([]string, error) {
	return s.withPrices, nil
}

func (s *fakeStore) PricesBySymbol(_ context.Context, symbol string, _ int) ([]models.StockPrice, error) {
	return s.priceSeries[symbol], nil
}

func (s *fakeStore) LatestSyncStatus(_ context.Context, dataType, source string) (*models.SyncStatus, error) {
	for i := len(s.statuses) - 1; i >= 0; i-- {
		if s.statuses[i].DataType == dataType && s.statuses[i].Source == source {
			status := s.statuses[i]
			return &status, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InsertSyncStatus(_ context.Context, status models.SyncStatus) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeStore) RecordSyncError(_ context.Context, syncErr models.SyncError) error {
	s.syncErrors = append(s.syncErrors, syncErr)
	return nil
}

func (s *fakeStore) ListSyncStatuses(_ context.Context, limit int) ([]models.SyncStatus, error) {
	return s.statuses, nil
}

func (s *fakeStore) ListSyncErrors(_ context.Context, _ bool, _ int) ([]models.SyncError, error) {
	return s.syncErrors, nil
}

type fakeTwse struct {
	roster     []transformer.TwseStockRow
	rosterErr  error
	daily      []transformer.TwseDailyRow
	dailyErr   error
	listCalls  int
	dailyCalls int
}

func (f *fakeTwse) StockList(context.Context) ([]transformer.TwseStockRow, error) {
	f.listCalls++
	return f.roster, f.rosterErr
}

func (f *fakeTwse) DailyPrices(context.Context) ([]transformer.TwseDailyRow, error) {
	f.dailyCalls++
	return f.daily, f.dailyErr
}

type fakeTpex struct {
	roster    []transformer.TpexStockRow
	rosterErr error
	history   map[string][]transformer.TpexDailyRow
}

func (f *fakeTpex) StockList(context.Context) ([]transformer.TpexStockRow, error) {
	return f.roster, f.rosterErr
}

func (f *fakeTpex) HistoricalPrices(_ context.Context, symbol, _ string) ([]transformer.TpexDailyRow, error) {
	rows, ok := f.history[symbol]
	if !ok {
		return nil, errors.New("no data")
	}
	return rows, nil
}

type fakeUs struct {
	quotes map[string]transformer.TwelveDataQuote
	bars   map[string][]transformer.TwelveDataBar
	broken map[string]bool
}

func (f *fakeUs) Quote(_ context.Context, symbol string) (transformer.TwelveDataQuote, error) {
	if f.broken[symbol] {
		return transformer.TwelveDataQuote{}, errors.New("quote unavailable")
	}
	return f.quotes[symbol], nil
}

func (f *fakeUs) TimeSeries(_ context.Context, symbol string, _ int) ([]transformer.TwelveDataBar, error) {
	if f.broken[symbol] {
		return nil, errors.New("series unavailable")
	}
	return f.bars[symbol], nil
}

type fakeFinMind struct {
	fundamentals map[string][]transformer.FinMindFundamentalRow
	dividends    map[string][]transformer.FinMindDividendRow
}

func (f *fakeFinMind) Fundamentals(_ context.Context, symbol, _ string) ([]transformer.FinMindFundamentalRow, error) {
	return f.fundamentals[symbol], nil
}

func (f *fakeFinMind) Dividends(_ context.Context, symbol, _ string) ([]transformer.FinMindDividendRow, error) {
	return f.dividends[symbol], nil
}

type fakeNotifier struct {
	subjects []string
}

func (f *fakeNotifier) Notify(_ context.Context, subject, _ string) {
	f.subjects = append(f.subjects, subject)
}

type fakeSnapshotter struct {
	saved []models.StockIndicator
}

func (f *fakeSnapshotter) SaveIndicatorSummary(_ context.Context, indicator models.StockIndicator) error {
	f.saved = append(f.saved, indicator)
	return nil
}

func fastOptions() Options {
	return Options{
		BatchSize:    10,
		BatchDelay:   time.Millisecond,
		RequestDelay: time.Millisecond,
		MaxAttempts:  2,
		BaseDelay:    time.Millisecond,
	}
}

// A Tuesday with both Taiwan and the previous US day trading.
var tradingTuesday = time.Date(2024, 12, 3, 10, 0, 0, 0, time.UTC)

func newTestOrchestrator(store *fakeStore, twse *fakeTwse, tpex *fakeTpex, us *fakeUs, finmind *fakeFinMind, opts Options) (*Orchestrator, *fakeNotifier) {
	notifier := &fakeNotifier{}
	o := NewOrchestrator(store, nil, twse, tpex, us, finmind, notifier, opts, time.UTC)
	o.now = func() time.Time { return tradingTuesday }
	return o, notifier
}

func TestSyncStocksSuccess(t *testing.T) {
	store := newFakeStore()
	twse := &fakeTwse{roster: []transformer.TwseStockRow{
		{Code: "2330", Name: "台積電", Industry: "半導體業"},
		{Code: "2317", Name: "鴻海", Industry: "電子業"},
	}}
	tpex := &fakeTpex{roster: []transformer.TpexStockRow{{"5483", "中美晶", "半導體業"}}}

	o, notifier := newTestOrchestrator(store, twse, tpex, &fakeUs{}, &fakeFinMind{}, fastOptions())
	result := o.SyncStocks(context.Background())

	if result.Status != models.SyncStatusSuccess {
		t.Fatalf("status = %s, want success", result.Status)
	}
	if result.RecordCount != 3 {
		t.Errorf("records = %d, want 3", result.RecordCount)
	}
	if len(notifier.subjects) != 0 {
		t.Errorf("notifier called on success: %v", notifier.subjects)
	}
	if len(store.statuses) != 1 || store.statuses[0].Status != models.SyncStatusSuccess {
		t.Errorf("status rows = %+v", store.statuses)
	}
}

func TestSyncStocksPartialFailure(t *testing.T) {
	store := newFakeStore()
	twse := &fakeTwse{roster: []transformer.TwseStockRow{{Code: "2330", Name: "台積電", Industry: "半導體業"}}}
	tpex := &fakeTpex{rosterErr: errors.New("TPEx down")}

	o, notifier := newTestOrchestrator(store, twse, tpex, &fakeUs{}, &fakeFinMind{}, fastOptions())
	result := o.SyncStocks(context.Background())

	if result.Status != models.SyncStatusPartial {
		t.Fatalf("status = %s, want partial", result.Status)
	}
	if result.RecordCount < 1 || result.ErrorCount != 1 {
		t.Errorf("records=%d errors=%d, want >=1 and 1", result.RecordCount, result.ErrorCount)
	}
	if len(notifier.subjects) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(notifier.subjects))
	}
}

func TestSyncPricesPartialFailureContinues(t *testing.T) {
	store := newFakeStore()
	twse := &fakeTwse{daily: []transformer.TwseDailyRow{{
		Code: "2330", Date: "113/12/02",
		OpeningPrice: "600", HighestPrice: "610", LowestPrice: "598", ClosingPrice: "605",
		TradeVolume: "100", TradeValue: "60000", Change: "5",
	}}}
	tpex := &fakeTpex{history: map[string][]transformer.TpexDailyRow{}}
	us := &fakeUs{
		bars: map[string][]transformer.TwelveDataBar{
			"AAPL": {{Datetime: "2024-12-02", Open: "230", High: "234", Low: "229", Close: "233", Volume: "1000"}},
		},
		broken: map[string]bool{"BAD": true},
	}

	opts := fastOptions()
	opts.UsSymbols = []string{"AAPL", "BAD"}

	o, notifier := newTestOrchestrator(store, twse, tpex, us, &fakeFinMind{}, opts)
	result := o.SyncPrices(context.Background())

	if result.Status != models.SyncStatusPartial {
		t.Fatalf("status = %s, want partial", result.Status)
	}
	if result.RecordCount < 2 {
		t.Errorf("records = %d, want >= 2", result.RecordCount)
	}
	if result.ErrorCount != 1 {
		t.Errorf("errors = %d, want 1", result.ErrorCount)
	}

	// The failing symbol left a SyncError row via the retry executor.
	if len(store.syncErrors) != 1 {
		t.Fatalf("sync errors = %d, want 1", len(store.syncErrors))
	}
	record := store.syncErrors[0]
	if record.Symbol != "BAD" || record.DataType != models.DataTypePrices {
		t.Errorf("sync error identity = %s/%s", record.DataType, record.Symbol)
	}
	if record.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", record.RetryCount)
	}

	if len(store.prices["2330"]) != 1 || len(store.prices["AAPL"]) != 1 {
		t.Errorf("stored prices: %v", store.prices)
	}
	if len(notifier.subjects) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(notifier.subjects))
	}
}

func TestSyncPricesSkipsNonTradingDay(t *testing.T) {
	store := newFakeStore()
	twse := &fakeTwse{}

	o, _ := newTestOrchestrator(store, twse, &fakeTpex{}, &fakeUs{}, &fakeFinMind{}, fastOptions())
	// A Sunday: neither Taiwan nor the previous US day (Saturday) trades.
	o.now = func() time.Time { return time.Date(2024, 12, 8, 10, 0, 0, 0, time.UTC) }

	result := o.SyncPrices(context.Background())

	if result.Status != models.SyncStatusSuccess {
		t.Fatalf("status = %s, want success", result.Status)
	}
	if result.RecordCount != 0 {
		t.Errorf("records = %d, want 0", result.RecordCount)
	}
	if twse.dailyCalls != 0 {
		t.Errorf("TWSE fetched on a non-trading day (%d calls)", twse.dailyCalls)
	}
}

func TestSyncPricesCheckpointSkip(t *testing.T) {
	store := newFakeStore()
	store.statuses = append(store.statuses, models.SyncStatus{
		DataType:   models.DataTypePrices,
		Source:     SourceTWSE,
		Status:     models.SyncStatusSuccess,
		LastSyncAt: tradingTuesday.Add(-2 * time.Hour),
	})
	twse := &fakeTwse{}

	o, _ := newTestOrchestrator(store, twse, &fakeTpex{}, &fakeUs{}, &fakeFinMind{}, fastOptions())
	result := o.SyncPrices(context.Background())

	if twse.dailyCalls != 0 {
		t.Errorf("TWSE fetched despite same-day checkpoint (%d calls)", twse.dailyCalls)
	}
	if result.Status != models.SyncStatusSuccess {
		t.Errorf("status = %s, want success", result.Status)
	}
}

func TestSyncIndicators(t *testing.T) {
	store := newFakeStore()
	store.withPrices = []string{"2330"}

	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		c := int64(60000 + i*100)
		store.priceSeries["2330"] = append(store.priceSeries["2330"], models.StockPrice{
			Symbol: "2330",
			Date:   start.AddDate(0, 0, i),
			Open:   c, High: c + 100, Low: c - 100, Close: c,
			Volume: 1000,
		})
	}

	snapshotter := &fakeSnapshotter{}
	o, _ := newTestOrchestrator(store, &fakeTwse{}, &fakeTpex{}, &fakeUs{}, &fakeFinMind{}, fastOptions())
	o.SetSnapshotter(snapshotter)

	result := o.SyncIndicators(context.Background())

	if result.Status != models.SyncStatusSuccess {
		t.Fatalf("status = %s, want success", result.Status)
	}
	if len(store.indicators) != 10 {
		t.Fatalf("indicator rows = %d, want 10", len(store.indicators))
	}

	last := store.indicators[len(store.indicators)-1]
	if last.MA5 == nil {
		t.Error("MA5 missing on the latest row")
	}
	if last.RSI14 != nil {
		t.Error("RSI should be nil on a 10 bar series")
	}

	if len(snapshotter.saved) != 1 || snapshotter.saved[0].Symbol != "2330" {
		t.Errorf("snapshots = %+v", snapshotter.saved)
	}
}

func TestSyncFundamentalsAndDividends(t *testing.T) {
	store := newFakeStore()
	store.active = []string{"2330"}

	finmind := &fakeFinMind{
		fundamentals: map[string][]transformer.FinMindFundamentalRow{
			"2330": {{StockID: "2330", Date: "2024-05-15", EPS: "9.56", PER: "25.4", PBR: "6.1", ROE: "26.3"}},
		},
		dividends: map[string][]transformer.FinMindDividendRow{
			"2330": {{StockID: "2330", Year: "2024", CashDividend: "13.5", DividendYield: "3.5"}},
		},
	}

	o, _ := newTestOrchestrator(store, &fakeTwse{}, &fakeTpex{}, &fakeUs{}, finmind, fastOptions())

	result := o.SyncFundamentals(context.Background())
	if result.Status != models.SyncStatusSuccess || result.RecordCount != 1 {
		t.Errorf("fundamentals result = %+v", result)
	}
	if len(store.fundamentals) != 1 || store.fundamentals[0].Quarter != 2 {
		t.Errorf("stored fundamentals = %+v", store.fundamentals)
	}

	result = o.SyncDividends(context.Background())
	if result.Status != models.SyncStatusSuccess || result.RecordCount != 1 {
		t.Errorf("dividends result = %+v", result)
	}
	if len(store.dividends) != 1 || store.dividends[0].YieldRate != 35000 {
		t.Errorf("stored dividends = %+v", store.dividends)
	}
}

func TestSyncAllEntitiesFailingIsFailed(t *testing.T) {
	store := newFakeStore()
	us := &fakeUs{broken: map[string]bool{"BAD1": true, "BAD2": true}}

	opts := fastOptions()
	opts.UsSymbols = []string{"BAD1", "BAD2"}

	twse := &fakeTwse{rosterErr: errors.New("down")}
	tpex := &fakeTpex{rosterErr: errors.New("down")}

	o, notifier := newTestOrchestrator(store, twse, tpex, us, &fakeFinMind{}, opts)
	result := o.SyncStocks(context.Background())

	if result.Status != models.SyncStatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
	if result.RecordCount != 0 || result.ErrorCount != 4 {
		t.Errorf("records=%d errors=%d, want 0 and 4", result.RecordCount, result.ErrorCount)
	}
	if len(notifier.subjects) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(notifier.subjects))
	}
}
