package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateRSI calculates the Relative Strength Index over the given period
// (typically 14). Returns nil when there is insufficient data.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)
	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

// SMA calculates the simple moving average series over the given period.
// Leading warm-up positions are zero-filled, matching talib.
func SMA(closes []float64, period int) []float64 {
	if len(closes) < period || period <= 0 {
		return nil
	}
	return talib.Sma(closes, period)
}

// EMA calculates the exponential moving average series over the given
// period.
func EMA(closes []float64, period int) []float64 {
	if len(closes) < period || period <= 0 {
		return nil
	}
	return talib.Ema(closes, period)
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
