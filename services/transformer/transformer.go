// Package transformer converts raw upstream payloads (TWSE, TPEx,
// TwelveData, FinMind) into canonical records with field-level validation.
// Monetary values are parsed with decimal arithmetic and stored as scaled
// integers: prices x 100 (cents), percent ratios x 10000.
package transformer

import (
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"go_stocksync/models"
)

// TwseStockRow is one entry of the TWSE listed-company roster.
type TwseStockRow struct {
	Code     string `json:"Code"`
	Name     string `json:"Name"`
	Industry string `json:"Industry"`
	Type     string `json:"Type"`
}

// TpexStockRow is one entry of the TPEx roster. The TPEx API returns
// positional arrays: [code, name, industry, ...].
type TpexStockRow []string

// TwseDailyRow is one row of the TWSE STOCK_DAY_ALL daily report. Dates are
// in ROC format ("1130102" or "113/01/02"); numbers may carry comma grouping.
type TwseDailyRow struct {
	Code         string `json:"Code"`
	Date         string `json:"Date"`
	OpeningPrice string `json:"OpeningPrice"`
	HighestPrice string `json:"HighestPrice"`
	LowestPrice  string `json:"LowestPrice"`
	ClosingPrice string `json:"ClosingPrice"`
	TradeVolume  string `json:"TradeVolume"`
	TradeValue   string `json:"TradeValue"`
	Change       string `json:"Change"`
}

// TpexDailyRow is one row of the TPEx daily quotes endpoint:
// [date, volume, amount, open, high, low, close, change, changePercent].
type TpexDailyRow []string

// TwelveDataQuote is the TwelveData /quote payload subset the engine uses.
type TwelveDataQuote struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	Type     string `json:"type"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
	Change   string `json:"change"`
}

// TwelveDataBar is one value of the TwelveData /time_series payload.
type TwelveDataBar struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// FinMindFundamentalRow is one FinMind per-quarter fundamentals entry.
type FinMindFundamentalRow struct {
	StockID string `json:"stock_id"`
	Date    string `json:"date"`
	EPS     string `json:"EPS"`
	PER     string `json:"PER"`
	PBR     string `json:"PBR"`
	ROE     string `json:"ROE"`
}

// FinMindDividendRow is one FinMind yearly dividend entry.
type FinMindDividendRow struct {
	StockID       string `json:"stock_id"`
	Year          string `json:"year"`
	CashDividend  string `json:"cash_dividend"`
	DividendYield string `json:"dividend_yield"`
}

var (
	twSymbolPattern = regexp.MustCompile(`^[0-9][0-9A-Z]{3,5}$`)
	usSymbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)
	shortNameSuffix = regexp.MustCompile(`股份有限公司|有限公司|公司`)
)

// ParsePriceCents parses a decimal price string ("605.00", "1,234.5") into
// cents. Empty, dashed or malformed values come back as 0.
func ParsePriceCents(raw string) int64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if cleaned == "" || cleaned == "--" {
		return 0
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0
	}

	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// ParseVolume parses an integer count, tolerating comma grouping.
func ParseVolume(raw string) int64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if cleaned == "" || cleaned == "--" {
		return 0
	}

	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseROCDate parses Taiwan ROC-calendar dates, either "112/01/01" or the
// compact "1120101" form.
func ParseROCDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)

	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		if len(parts) != 3 {
			return time.Time{}, false
		}
		year, err1 := strconv.Atoi(parts[0])
		month, err2 := strconv.Atoi(parts[1])
		day, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return time.Time{}, false
		}
		return time.Date(year+1911, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
	}

	if len(raw) == 7 {
		year, err1 := strconv.Atoi(raw[:3])
		month, err2 := strconv.Atoi(raw[3:5])
		day, err3 := strconv.Atoi(raw[5:7])
		if err1 != nil || err2 != nil || err3 != nil {
			return time.Time{}, false
		}
		return time.Date(year+1911, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}

// ExtractShortName strips corporate suffixes (股份有限公司 etc.) from a full
// company name for display.
func ExtractShortName(fullName string) string {
	return strings.TrimSpace(shortNameSuffix.ReplaceAllString(fullName, ""))
}

// changePercent computes round(change/previousClose * 10000) with
// previousClose derived as close - change; a zero previousClose yields 0.
func changePercent(closeCents, changeCents int64) int64 {
	prevClose := closeCents - changeCents
	if prevClose == 0 {
		return 0
	}

	return decimal.NewFromInt(changeCents).
		Div(decimal.NewFromInt(prevClose)).
		Mul(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}

// TransformTwseStock maps a TWSE roster row to a canonical stock on the
// listed (上市) market.
func TransformTwseStock(row TwseStockRow) models.Stock {
	industry := row.Industry
	if industry == "" {
		industry = models.IndustryUnclassified
	}

	return models.Stock{
		Symbol:    row.Code,
		Market:    models.MarketTWSE,
		Name:      row.Name,
		ShortName: ExtractShortName(row.Name),
		Industry:  industry,
		IsActive:  true,
	}
}

// TransformTpexStock maps a TPEx positional roster row to a canonical stock
// on the over-the-counter (上櫃) market.
func TransformTpexStock(row TpexStockRow) models.Stock {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	industry := get(2)
	if industry == "" {
		industry = models.IndustryUnclassified
	}

	return models.Stock{
		Symbol:    get(0),
		Market:    models.MarketTPEx,
		Name:      get(1),
		ShortName: ExtractShortName(get(1)),
		Industry:  industry,
		IsActive:  true,
	}
}

// TransformUsStock maps a TwelveData quote to a canonical US stock. The
// exchange string decides the market namespace; anything not NYSE is treated
// as NASDAQ-listed.
func TransformUsStock(quote TwelveDataQuote) models.Stock {
	market := models.MarketNASDAQ
	if strings.EqualFold(quote.Exchange, "NYSE") {
		market = models.MarketNYSE
	}

	return models.Stock{
		Symbol:    quote.Symbol,
		Market:    market,
		Name:      quote.Name,
		ShortName: quote.Name,
		Industry:  models.IndustryUnclassified,
		IsActive:  true,
	}
}

// ValidateStockInfo checks a transformed stock: non-empty symbol and name,
// symbol matching the market's code pattern, recognized market value.
// Invalid records are data-quality drops, not sync errors.
func ValidateStockInfo(stock models.Stock) bool {
	if stock.Symbol == "" || stock.Name == "" {
		return false
	}

	switch stock.Market {
	case models.MarketTWSE, models.MarketTPEx:
		return twSymbolPattern.MatchString(stock.Symbol)
	case models.MarketNASDAQ, models.MarketNYSE:
		return usSymbolPattern.MatchString(stock.Symbol)
	default:
		return false
	}
}

// TransformTwsePrice maps a TWSE daily report row to a canonical price bar.
func TransformTwsePrice(row TwseDailyRow) models.StockPrice {
	date, _ := ParseROCDate(row.Date)
	closeCents := ParsePriceCents(row.ClosingPrice)
	change := ParsePriceCents(row.Change)

	return models.StockPrice{
		Symbol:        row.Code,
		Date:          date,
		Open:          ParsePriceCents(row.OpeningPrice),
		High:          ParsePriceCents(row.HighestPrice),
		Low:           ParsePriceCents(row.LowestPrice),
		Close:         closeCents,
		Volume:        ParseVolume(row.TradeVolume),
		Amount:        ParsePriceCents(row.TradeValue),
		Change:        change,
		ChangePercent: changePercent(closeCents, change),
	}
}

// TransformTpexPrice maps a TPEx positional daily row to a canonical price
// bar for the given symbol.
func TransformTpexPrice(symbol string, row TpexDailyRow) models.StockPrice {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	date, _ := ParseROCDate(get(0))
	closeCents := ParsePriceCents(get(6))
	change := ParsePriceCents(get(7))

	return models.StockPrice{
		Symbol:        symbol,
		Date:          date,
		Open:          ParsePriceCents(get(3)),
		High:          ParsePriceCents(get(4)),
		Low:           ParsePriceCents(get(5)),
		Close:         closeCents,
		Volume:        ParseVolume(get(1)),
		Amount:        ParsePriceCents(get(2)),
		Change:        change,
		ChangePercent: changePercent(closeCents, change),
	}
}

// TransformUsBar maps a TwelveData time-series bar to a canonical price bar.
func TransformUsBar(symbol string, bar TwelveDataBar) models.StockPrice {
	date, err := time.Parse("2006-01-02", bar.Datetime)
	if err != nil {
		date = time.Time{}
	}

	return models.StockPrice{
		Symbol: symbol,
		Date:   date,
		Open:   ParsePriceCents(bar.Open),
		High:   ParsePriceCents(bar.High),
		Low:    ParsePriceCents(bar.Low),
		Close:  ParsePriceCents(bar.Close),
		Volume: ParseVolume(bar.Volume),
	}
}

// ValidatePriceData checks a transformed bar: parsable date, positive OHLC,
// high >= low, non-negative volume and amount.
func ValidatePriceData(price models.StockPrice) bool {
	if price.Date.IsZero() {
		return false
	}
	if price.Open <= 0 || price.High <= 0 || price.Low <= 0 || price.Close <= 0 {
		return false
	}
	if price.High < price.Low {
		return false
	}
	if price.Volume < 0 || price.Amount < 0 {
		return false
	}
	return true
}

// TransformFundamental maps a FinMind fundamentals row; ratios are x 100.
func TransformFundamental(row FinMindFundamentalRow) models.StockFundamental {
	year, quarter := 0, 0
	if parts := strings.Split(row.Date, "-"); len(parts) >= 2 {
		year, _ = strconv.Atoi(parts[0])
		month, _ := strconv.Atoi(parts[1])
		quarter = (month + 2) / 3
	}

	return models.StockFundamental{
		Symbol:  row.StockID,
		Year:    year,
		Quarter: quarter,
		EPS:     ParsePriceCents(row.EPS),
		PE:      ParsePriceCents(row.PER),
		PB:      ParsePriceCents(row.PBR),
		ROE:     ParsePriceCents(row.ROE),
	}
}

// TransformDividend maps a FinMind dividend row; cash in cents, yield x 10000.
func TransformDividend(row FinMindDividendRow) models.StockDividend {
	year, _ := strconv.Atoi(row.Year)

	yield := int64(0)
	if d, err := decimal.NewFromString(strings.TrimSpace(row.DividendYield)); err == nil {
		yield = d.Mul(decimal.NewFromInt(10000)).Round(0).IntPart()
	}

	return models.StockDividend{
		Symbol:       row.StockID,
		Year:         year,
		CashDividend: ParsePriceCents(row.CashDividend),
		YieldRate:    yield,
	}
}

// TransformTwseStockBatch transforms and filters a roster; invalid rows are
// dropped with a warning. Partial success is always acceptable here.
func TransformTwseStockBatch(rows []TwseStockRow) []models.Stock {
	stocks := make([]models.Stock, 0, len(rows))
	for _, row := range rows {
		stock := TransformTwseStock(row)
		if !ValidateStockInfo(stock) {
			log.Printf("[Transformer] Dropping invalid TWSE stock row: symbol=%q name=%q", stock.Symbol, stock.Name)
			continue
		}
		stocks = append(stocks, stock)
	}
	return stocks
}

// TransformTpexStockBatch transforms and filters a TPEx roster.
func TransformTpexStockBatch(rows []TpexStockRow) []models.Stock {
	stocks := make([]models.Stock, 0, len(rows))
	for _, row := range rows {
		stock := TransformTpexStock(row)
		if !ValidateStockInfo(stock) {
			log.Printf("[Transformer] Dropping invalid TPEx stock row: symbol=%q name=%q", stock.Symbol, stock.Name)
			continue
		}
		stocks = append(stocks, stock)
	}
	return stocks
}

// TransformTwsePriceBatch transforms and filters a TWSE daily report.
func TransformTwsePriceBatch(rows []TwseDailyRow) []models.StockPrice {
	prices := make([]models.StockPrice, 0, len(rows))
	for _, row := range rows {
		price := TransformTwsePrice(row)
		if !ValidatePriceData(price) {
			log.Printf("[Transformer] Dropping invalid TWSE price row: symbol=%q date=%q", row.Code, row.Date)
			continue
		}
		prices = append(prices, price)
	}
	return prices
}

// TransformUsBarBatch transforms and filters a TwelveData time series.
func TransformUsBarBatch(symbol string, bars []TwelveDataBar) []models.StockPrice {
	prices := make([]models.StockPrice, 0, len(bars))
	for _, bar := range bars {
		price := TransformUsBar(symbol, bar)
		if !ValidatePriceData(price) {
			log.Printf("[Transformer] Dropping invalid bar: symbol=%q datetime=%q", symbol, bar.Datetime)
			continue
		}
		prices = append(prices, price)
	}
	return prices
}
