// Package indicators derives technical indicators from daily price series.
// All functions are pure and operate on chronologically ordered bars with
// prices in cents. MA and MACD outputs stay in cents; RSI, K and D values
// are scaled x 10000 (0..1_000_000 for 0..100%).
package indicators

import (
	"math"
	"time"
)

// PricePoint is one daily bar with cent-scaled prices.
type PricePoint struct {
	Date   time.Time
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume int64
}

// IndicatorPoint holds the indicators defined for one date. A nil field means
// the indicator's minimum window was not yet satisfied at that date.
type IndicatorPoint struct {
	Date          time.Time
	MA5           *int64
	MA10          *int64
	MA20          *int64
	MA60          *int64
	RSI14         *int64
	MACD          *int64
	MACDSignal    *int64
	MACDHistogram *int64
	KValue        *int64
	DValue        *int64
}

// Default indicator parameters.
const (
	RSIPeriod      = 14
	MACDFastPeriod = 12
	MACDSlowPeriod = 26
	MACDSignalSpan = 9
	KDPeriod       = 9
	KDKSmooth      = 3
	KDDSmooth      = 3
)

func intPtr(v int64) *int64 { return &v }

func roundToInt64(v float64) int64 { return int64(math.Round(v)) }

// SMA returns the simple moving average of the last period closes, rounded
// to the nearest cent, or nil when fewer than period values exist.
func SMA(closes []int64, period int) *int64 {
	if len(closes) < period {
		return nil
	}

	var sum int64
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}

	return intPtr(roundToInt64(float64(sum) / float64(period)))
}

// MovingAverages computes MA5/MA10/MA20/MA60 for every bar using an
// expanding window: each row sees only prices up to and including its date.
func MovingAverages(prices []PricePoint) []IndicatorPoint {
	result := make([]IndicatorPoint, 0, len(prices))

	closes := make([]int64, 0, len(prices))
	for _, p := range prices {
		closes = append(closes, p.Close)

		result = append(result, IndicatorPoint{
			Date: p.Date,
			MA5:  SMA(closes, 5),
			MA10: SMA(closes, 10),
			MA20: SMA(closes, 20),
			MA60: SMA(closes, 60),
		})
	}

	return result
}

// RSI computes the Wilder-smoothed relative strength index. The first
// period deltas seed the averages with a simple mean; later deltas use
// avg = (avg*(period-1) + delta) / period. Output starts at bar index
// period+1, so a series of period+1 bars or fewer yields nothing.
// avgLoss == 0 at any step clamps RSI to exactly 100 (stored 1_000_000).
func RSI(prices []PricePoint, period int) []IndicatorPoint {
	var result []IndicatorPoint

	if len(prices) <= period {
		return result
	}

	changes := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		changes = append(changes, float64(prices[i].Close-prices[i-1].Close))
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss += -changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < len(changes); i++ {
		change := changes[i]

		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)

		var rsi float64
		if avgLoss == 0 {
			rsi = 100
		} else {
			rs := avgGain / avgLoss
			rsi = 100 - 100/(1+rs)
		}

		scaled := roundToInt64(rsi * 10000)
		if scaled < 0 {
			scaled = 0
		}
		if scaled > 1_000_000 {
			scaled = 1_000_000
		}

		result = append(result, IndicatorPoint{
			Date:  prices[i+1].Date,
			RSI14: intPtr(scaled),
		})
	}

	return result
}

// EMA returns the exponential moving average series. The first value is the
// SMA of the first period inputs; each later value follows
// ema[i] = (v[i] - ema[i-1]) * 2/(period+1) + ema[i-1]. The returned slice
// is aligned so that index 0 corresponds to input index period-1.
func EMA(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}

	multiplier := 2.0 / float64(period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}

	ema := make([]float64, 0, len(values)-period+1)
	ema = append(ema, sum/float64(period))

	for i := period; i < len(values); i++ {
		prev := ema[len(ema)-1]
		ema = append(ema, (values[i]-prev)*multiplier+prev)
	}

	return ema
}

// MACD computes the moving average convergence divergence line, its signal
// line and histogram. The MACD line is fast EMA minus slow EMA aligned on
// the slow series' start; no output exists before slow bars, and the signal
// line additionally needs signal rounds of the MACD line.
func MACD(prices []PricePoint, fast, slow, signal int) []IndicatorPoint {
	var result []IndicatorPoint

	if len(prices) < slow {
		return result
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = float64(p.Close)
	}

	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)

	// slowEMA[i] covers price index slow-1+i; the matching fast value sits
	// slow-fast entries further into fastEMA.
	macdLine := make([]float64, len(slowEMA))
	for i := range slowEMA {
		macdLine[i] = fastEMA[i+(slow-fast)] - slowEMA[i]
	}

	signalLine := EMA(macdLine, signal)

	for i := range signalLine {
		macdIndex := i + signal - 1
		priceIndex := slow - 1 + macdIndex
		if priceIndex >= len(prices) {
			break
		}

		result = append(result, IndicatorPoint{
			Date:          prices[priceIndex].Date,
			MACD:          intPtr(roundToInt64(macdLine[macdIndex])),
			MACDSignal:    intPtr(roundToInt64(signalLine[i])),
			MACDHistogram: intPtr(roundToInt64(macdLine[macdIndex] - signalLine[i])),
		})
	}

	return result
}

// KD computes the stochastic oscillator. RSV over each period-bar window is
// (close-lowestLow)/(highestHigh-lowestLow)*100, defined as 50 on a
// degenerate range. K[0]=RSV[0], K[i]=(2*K[i-1]+RSV[i])/3; D applies the
// same recurrence to K. Values are x 10000 and always within 0..1_000_000.
func KD(prices []PricePoint, period, kSmooth, dSmooth int) []IndicatorPoint {
	var result []IndicatorPoint

	if len(prices) < period {
		return result
	}

	rsv := make([]float64, 0, len(prices)-period+1)
	for i := period - 1; i < len(prices); i++ {
		highest := prices[i-period+1].High
		lowest := prices[i-period+1].Low
		for _, p := range prices[i-period+1 : i+1] {
			if p.High > highest {
				highest = p.High
			}
			if p.Low < lowest {
				lowest = p.Low
			}
		}

		if highest == lowest {
			rsv = append(rsv, 50)
			continue
		}
		rsv = append(rsv, float64(prices[i].Close-lowest)/float64(highest-lowest)*100)
	}

	kValues := make([]float64, len(rsv))
	for i := range rsv {
		if i == 0 {
			kValues[i] = rsv[i]
			continue
		}
		kValues[i] = (kValues[i-1]*2 + rsv[i]) / 3
	}

	dValues := make([]float64, len(kValues))
	for i := range kValues {
		if i == 0 {
			dValues[i] = kValues[i]
			continue
		}
		dValues[i] = (dValues[i-1]*2 + kValues[i]) / 3
	}

	for i := range kValues {
		result = append(result, IndicatorPoint{
			Date:   prices[period-1+i].Date,
			KValue: intPtr(roundToInt64(kValues[i] * 10000)),
			DValue: intPtr(roundToInt64(dValues[i] * 10000)),
		})
	}

	return result
}

// CalculateAll runs every indicator over the same series and merges the
// results by date. Indicators not yet defined for a date stay nil. An empty
// input produces an empty output, never an error.
func CalculateAll(prices []PricePoint) []IndicatorPoint {
	if len(prices) == 0 {
		return nil
	}

	maData := MovingAverages(prices)
	rsiData := RSI(prices, RSIPeriod)
	macdData := MACD(prices, MACDFastPeriod, MACDSlowPeriod, MACDSignalSpan)
	kdData := KD(prices, KDPeriod, KDKSmooth, KDDSmooth)

	rsiByDate := make(map[int64]IndicatorPoint, len(rsiData))
	for _, p := range rsiData {
		rsiByDate[p.Date.Unix()] = p
	}
	macdByDate := make(map[int64]IndicatorPoint, len(macdData))
	for _, p := range macdData {
		macdByDate[p.Date.Unix()] = p
	}
	kdByDate := make(map[int64]IndicatorPoint, len(kdData))
	for _, p := range kdData {
		kdByDate[p.Date.Unix()] = p
	}

	result := make([]IndicatorPoint, 0, len(prices))
	for i, price := range prices {
		point := IndicatorPoint{
			Date: price.Date,
			MA5:  maData[i].MA5,
			MA10: maData[i].MA10,
			MA20: maData[i].MA20,
			MA60: maData[i].MA60,
		}

		key := price.Date.Unix()
		if p, ok := rsiByDate[key]; ok {
			point.RSI14 = p.RSI14
		}
		if p, ok := macdByDate[key]; ok {
			point.MACD = p.MACD
			point.MACDSignal = p.MACDSignal
			point.MACDHistogram = p.MACDHistogram
		}
		if p, ok := kdByDate[key]; ok {
			point.KValue = p.KValue
			point.DValue = p.DValue
		}

		result = append(result, point)
	}

	return result
}
