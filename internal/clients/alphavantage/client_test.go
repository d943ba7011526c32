package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stockdash/internal/quotes"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const globalQuoteBody = `{
	"Global Quote": {
		"01. symbol": "IBM",
		"02. open": "185.00",
		"03. high": "186.50",
		"04. low": "184.50",
		"05. price": "186.20",
		"06. volume": "3456789",
		"07. latest trading day": "2024-01-15",
		"08. previous close": "185.00",
		"09. change": "1.20",
		"10. change percent": "0.65%"
	}
}`

func TestFetchQuote(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, globalQuoteBody)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	quote, err := client.FetchQuote(context.Background(), "ibm")
	require.NoError(t, err)

	assert.Equal(t, "IBM", quote.Symbol)
	assert.Equal(t, 186.2, quote.Price)
	require.NotNil(t, quote.Open)
	assert.Equal(t, 185.0, *quote.Open)
	require.NotNil(t, quote.High)
	assert.Equal(t, 186.5, *quote.High)
	require.NotNil(t, quote.Low)
	assert.Equal(t, 184.5, *quote.Low)
	require.NotNil(t, quote.PreviousClose)
	assert.Equal(t, 185.0, *quote.PreviousClose)
	assert.Equal(t, quotes.ProviderAlphaVantage, quote.Provider)
	assert.NotEmpty(t, quote.LastUpdated)
	assert.True(t, quote.Valid())
}

func TestFetchQuoteMissingAPIKey(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, globalQuoteBody)
	client := NewClient("", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "IBM")
	require.Error(t, err)
	assert.Equal(t, quotes.KindProvider, quotes.Classify(err))
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestFetchQuoteNetworkError(t *testing.T) {
	// Port 1 is never listening
	client := NewClient("test-key", "http://127.0.0.1:1", zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "IBM")
	require.Error(t, err)
	assert.Equal(t, quotes.KindNetwork, quotes.Classify(err))
}

func TestFetchQuoteHTTP429(t *testing.T) {
	srv := newTestServer(t, http.StatusTooManyRequests, "")
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "IBM")
	require.Error(t, err)
	assert.Equal(t, quotes.KindRateLimit, quotes.Classify(err))
}

func TestFetchQuoteHTTP401(t *testing.T) {
	srv := newTestServer(t, http.StatusUnauthorized, "")
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "IBM")
	require.Error(t, err)
	assert.Equal(t, quotes.KindInvalidAPIKey, quotes.Classify(err))
}

func TestFetchQuoteRateLimitNote(t *testing.T) {
	srv := newTestServer(t, http.StatusOK,
		`{"Note": "Our standard API call frequency is 25 requests per day."}`)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "IBM")
	require.Error(t, err)
	assert.Equal(t, quotes.KindRateLimit, quotes.Classify(err))
}

func TestFetchQuoteInformationField(t *testing.T) {
	srv := newTestServer(t, http.StatusOK,
		`{"Information": "Thank you for using Alpha Vantage! You have reached your rate limit."}`)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "IBM")
	require.Error(t, err)
	assert.Equal(t, quotes.KindRateLimit, quotes.Classify(err))
}

func TestFetchQuoteErrorMessage(t *testing.T) {
	srv := newTestServer(t, http.StatusOK,
		`{"Error Message": "Invalid API call. Please retry with a valid symbol."}`)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Equal(t, quotes.KindProvider, quotes.Classify(err))
}

func TestFetchQuoteEmptyQuoteObjectIsRateLimit(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"Global Quote": {}}`)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "IBM")
	require.Error(t, err)
	assert.Equal(t, quotes.KindRateLimit, quotes.Classify(err))
}

func TestFetchQuoteNonNumericPrice(t *testing.T) {
	srv := newTestServer(t, http.StatusOK,
		`{"Global Quote": {"01. symbol": "IBM", "05. price": "None"}}`)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "IBM")
	require.Error(t, err)
	assert.Equal(t, quotes.KindProvider, quotes.Classify(err))
}

func TestFetchQuotePlainTextThrottleNotice(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `Thank you for using Alpha Vantage!`)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "IBM")
	require.Error(t, err)
	assert.Equal(t, quotes.KindRateLimit, quotes.Classify(err))
}

func TestFetchRaw(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, globalQuoteBody)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	raw, err := client.FetchRaw(context.Background(), "IBM")
	require.NoError(t, err)
	assert.JSONEq(t, globalQuoteBody, string(raw))
}

func TestFetchDailySeries(t *testing.T) {
	body := `{
		"Meta Data": {"2. Symbol": "IBM"},
		"Time Series (Daily)": {
			"2024-01-15": {
				"1. open": "185.00",
				"2. high": "186.50",
				"3. low": "184.50",
				"4. close": "186.20",
				"5. volume": "3456789"
			},
			"2024-01-12": {
				"1. open": "184.50",
				"2. high": "185.50",
				"3. low": "184.00",
				"4. close": "185.00",
				"5. volume": "3214567"
			}
		}
	}`
	srv := newTestServer(t, http.StatusOK, body)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	bars, err := client.FetchDailySeries(context.Background(), "IBM")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	// Sorted ascending by date
	assert.True(t, bars[0].Date.Before(bars[1].Date))
	assert.Equal(t, 185.0, bars[0].Close)
	assert.Equal(t, 186.2, bars[1].Close)
	assert.Equal(t, int64(3456789), bars[1].Volume)
}

func TestParseFloat64(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"123.45", 123.45},
		{"0", 0},
		{"None", 0},
		{"", 0},
		{"null", 0},
		{"-", 0},
		{"50.5%", 50.5},
		{"invalid", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseFloat64(tt.input))
		})
	}
}

func TestParseFloat64Ptr(t *testing.T) {
	tests := []struct {
		input    string
		isNil    bool
		expected float64
	}{
		{"123.45", false, 123.45},
		{"None", true, 0},
		{"", true, 0},
		{"null", true, 0},
		{"garbage", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseFloat64Ptr(tt.input)
			if tt.isNil {
				assert.Nil(t, result)
			} else {
				require.NotNil(t, result)
				assert.Equal(t, tt.expected, *result)
			}
		})
	}
}

// TestInterfaceImplementation verifies Client implements quotes.Provider.
func TestInterfaceImplementation(t *testing.T) {
	var _ quotes.Provider = (*Client)(nil)
}
