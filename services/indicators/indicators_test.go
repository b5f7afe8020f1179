package indicators

import (
	"testing"
	"time"
)

// series builds chronological bars one day apart with the given closes.
// High/Low straddle the close so KD windows are never degenerate unless the
// closes are constant.
func series(closes ...int64) []PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := make([]PricePoint, len(closes))
	for i, c := range closes {
		prices[i] = PricePoint{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 100,
			Low:    c - 100,
			Close:  c,
			Volume: 1000,
		}
	}
	return prices
}

func risingSeries(n int) []PricePoint {
	closes := make([]int64, n)
	for i := range closes {
		closes[i] = 10000 + int64(i)*100
	}
	return series(closes...)
}

func TestSMA(t *testing.T) {
	got := SMA([]int64{10000, 11000, 10500, 11500, 12000}, 5)
	if got == nil || *got != 11000 {
		t.Fatalf("SMA = %v, want 11000", got)
	}

	if SMA([]int64{10000, 11000}, 5) != nil {
		t.Error("SMA with insufficient data should be nil")
	}

	// Rounds to the nearest cent.
	got = SMA([]int64{100, 101}, 2)
	if got == nil || *got != 101 {
		t.Errorf("SMA rounding = %v, want 101", got)
	}
}

func TestMovingAveragesExpandingWindow(t *testing.T) {
	prices := risingSeries(12)
	result := MovingAverages(prices)

	if len(result) != len(prices) {
		t.Fatalf("result length = %d, want %d", len(result), len(prices))
	}

	for i := 0; i < 4; i++ {
		if result[i].MA5 != nil {
			t.Errorf("MA5 at index %d should be nil", i)
		}
	}
	if result[4].MA5 == nil {
		t.Fatal("MA5 at index 4 should be defined")
	}
	// Closes 10000..10400 average to 10200.
	if *result[4].MA5 != 10200 {
		t.Errorf("MA5 at index 4 = %d, want 10200", *result[4].MA5)
	}

	if result[8].MA10 != nil {
		t.Error("MA10 at index 8 should be nil")
	}
	if result[9].MA10 == nil {
		t.Error("MA10 at index 9 should be defined")
	}
	if result[11].MA20 != nil || result[11].MA60 != nil {
		t.Error("MA20/MA60 should be nil on a 12 bar series")
	}
}

func TestRSIShortSeriesIsEmpty(t *testing.T) {
	if got := RSI(risingSeries(10), RSIPeriod); len(got) != 0 {
		t.Errorf("RSI over 10 bars = %d points, want 0", len(got))
	}
	if got := RSI(risingSeries(15), RSIPeriod); len(got) != 0 {
		t.Errorf("RSI over period+1 bars = %d points, want 0", len(got))
	}
}

func TestRSIAllGainsClampsTo100(t *testing.T) {
	result := RSI(risingSeries(20), RSIPeriod)

	// 19 deltas, first 14 seed the averages, 5 smoothed outputs remain.
	if len(result) != 5 {
		t.Fatalf("RSI length = %d, want 5", len(result))
	}

	for _, p := range result {
		if p.RSI14 == nil {
			t.Fatal("RSI point missing value")
		}
		if *p.RSI14 != 1_000_000 {
			t.Errorf("RSI on an all-gain series = %d, want 1000000", *p.RSI14)
		}
	}
}

func TestRSIStaysInBounds(t *testing.T) {
	closes := make([]int64, 60)
	for i := range closes {
		// Alternating moves of uneven size.
		if i%2 == 0 {
			closes[i] = 10000 + int64(i)*37
		} else {
			closes[i] = 10000 - int64(i)*13
		}
	}

	for _, p := range RSI(series(closes...), RSIPeriod) {
		if p.RSI14 == nil {
			t.Fatal("RSI point missing value")
		}
		if *p.RSI14 < 0 || *p.RSI14 > 1_000_000 {
			t.Errorf("RSI out of bounds: %d", *p.RSI14)
		}
	}
}

func TestEMAAlignment(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	ema := EMA(values, 3)

	if len(ema) != 3 {
		t.Fatalf("EMA length = %d, want 3", len(ema))
	}
	// First value is the SMA of the first 3 inputs.
	if ema[0] != 2 {
		t.Errorf("EMA[0] = %f, want 2", ema[0])
	}
	// (4-2)*0.5+2 = 3, (5-3)*0.5+3 = 4.
	if ema[1] != 3 || ema[2] != 4 {
		t.Errorf("EMA tail = %v, want [3 4]", ema[1:])
	}

	if EMA([]float64{1, 2}, 3) != nil {
		t.Error("EMA with insufficient data should be nil")
	}
}

func TestMACDAvailability(t *testing.T) {
	if got := MACD(risingSeries(25), MACDFastPeriod, MACDSlowPeriod, MACDSignalSpan); len(got) != 0 {
		t.Errorf("MACD before slow window = %d points, want 0", len(got))
	}

	// 26 bars give one MACD value but the signal line needs 9 of them.
	if got := MACD(risingSeries(30), MACDFastPeriod, MACDSlowPeriod, MACDSignalSpan); len(got) != 0 {
		t.Errorf("MACD before signal window = %d points, want 0", len(got))
	}

	prices := risingSeries(40)
	result := MACD(prices, MACDFastPeriod, MACDSlowPeriod, MACDSignalSpan)

	// 15 MACD values, 7 signal values.
	if len(result) != 7 {
		t.Fatalf("MACD length = %d, want 7", len(result))
	}

	last := result[len(result)-1]
	if !last.Date.Equal(prices[39].Date) {
		t.Errorf("last MACD date = %v, want %v", last.Date, prices[39].Date)
	}
	if last.MACD == nil || last.MACDSignal == nil || last.MACDHistogram == nil {
		t.Fatal("MACD point missing values")
	}
	if *last.MACDHistogram != *last.MACD-*last.MACDSignal {
		// Rounding happens per component, so allow one cent of slack.
		diff := *last.MACDHistogram - (*last.MACD - *last.MACDSignal)
		if diff < -1 || diff > 1 {
			t.Errorf("histogram %d inconsistent with %d - %d", *last.MACDHistogram, *last.MACD, *last.MACDSignal)
		}
	}
}

func TestKD(t *testing.T) {
	prices := risingSeries(15)
	result := KD(prices, KDPeriod, KDKSmooth, KDDSmooth)

	if len(result) != 7 {
		t.Fatalf("KD length = %d, want 7", len(result))
	}
	if !result[0].Date.Equal(prices[8].Date) {
		t.Errorf("first KD date = %v, want %v", result[0].Date, prices[8].Date)
	}

	for _, p := range result {
		if p.KValue == nil || p.DValue == nil {
			t.Fatal("KD point missing values")
		}
		if *p.KValue < 0 || *p.KValue > 1_000_000 {
			t.Errorf("K out of bounds: %d", *p.KValue)
		}
		if *p.DValue < 0 || *p.DValue > 1_000_000 {
			t.Errorf("D out of bounds: %d", *p.DValue)
		}
	}
}

func TestKDDegenerateRange(t *testing.T) {
	closes := make([]int64, 12)
	for i := range closes {
		closes[i] = 10000
	}
	prices := series(closes...)
	// Flatten highs and lows so every window is degenerate.
	for i := range prices {
		prices[i].High = 10000
		prices[i].Low = 10000
	}

	for _, p := range KD(prices, KDPeriod, KDKSmooth, KDDSmooth) {
		if *p.KValue != 500000 || *p.DValue != 500000 {
			t.Errorf("degenerate KD = (%d, %d), want (500000, 500000)", *p.KValue, *p.DValue)
		}
	}
}

func TestKDShortSeriesIsEmpty(t *testing.T) {
	if got := KD(risingSeries(8), KDPeriod, KDKSmooth, KDDSmooth); len(got) != 0 {
		t.Errorf("KD over 8 bars = %d points, want 0", len(got))
	}
}

func TestCalculateAllTenDaySeries(t *testing.T) {
	prices := risingSeries(10)
	result := CalculateAll(prices)

	if len(result) != 10 {
		t.Fatalf("result length = %d, want 10", len(result))
	}

	for i, p := range result {
		if !p.Date.Equal(prices[i].Date) {
			t.Errorf("date at %d = %v, want %v", i, p.Date, prices[i].Date)
		}
		if i < 4 && p.MA5 != nil {
			t.Errorf("MA5 at %d should be nil", i)
		}
		if i >= 4 && p.MA5 == nil {
			t.Errorf("MA5 at %d should be defined", i)
		}
		// 10 bars never satisfy RSI or MACD windows.
		if p.RSI14 != nil {
			t.Errorf("RSI at %d should be nil", i)
		}
		if p.MACD != nil || p.MACDSignal != nil {
			t.Errorf("MACD at %d should be nil", i)
		}
		if i < 8 && p.KValue != nil {
			t.Errorf("K at %d should be nil", i)
		}
		if i >= 8 && (p.KValue == nil || p.DValue == nil) {
			t.Errorf("KD at %d should be defined", i)
		}
	}
}

func TestCalculateAllEmptyInput(t *testing.T) {
	if got := CalculateAll(nil); len(got) != 0 {
		t.Errorf("CalculateAll(nil) = %d points, want 0", len(got))
	}
}
