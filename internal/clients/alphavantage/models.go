package alphavantage

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DailyBar is one day of OHLCV data from TIME_SERIES_DAILY.
type DailyBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// parseDailySeries parses a TIME_SERIES_DAILY payload: a nested object
// keyed by date string mapping to numbered OHLCV fields. Bars are sorted
// by date ascending.
func parseDailySeries(body []byte) ([]DailyBar, error) {
	var envelope struct {
		Series map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	bars := make([]DailyBar, 0, len(envelope.Series))
	for dateStr, fields := range envelope.Series {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			// Skip malformed dates rather than failing the whole series
			continue
		}
		bars = append(bars, DailyBar{
			Date:   date,
			Open:   parseFloat64(fields["1. open"]),
			High:   parseFloat64(fields["2. high"]),
			Low:    parseFloat64(fields["3. low"]),
			Close:  parseFloat64(fields["4. close"]),
			Volume: parseInt64(fields["5. volume"]),
		})
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	return bars, nil
}

// parseFloat64 parses Alpha Vantage numeric strings, tolerating the
// placeholder values the API uses for missing data. Invalid input yields 0.
func parseFloat64(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" || s == "None" || s == "null" || s == "-" || s == "." {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseFloat64Ptr is the nullable variant: invalid or missing input yields
// nil instead of a misleading zero.
func parseFloat64Ptr(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" || s == "None" || s == "null" || s == "-" || s == "." {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt64(s string) int64 {
	f := parseFloat64(s)
	return int64(f)
}
