package finnhub

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

const quoteBody = `{"c": 150.25, "o": 149.00, "h": 151.00, "l": 148.50, "pc": 149.50, "t": 1700000000}`

func TestFetchQuote(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, quoteBody)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	quote, err := client.FetchQuote(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 150.25, quote.Price)
	require.NotNil(t, quote.Open)
	assert.Equal(t, 149.0, *quote.Open)
	require.NotNil(t, quote.High)
	assert.Equal(t, 151.0, *quote.High)
	require.NotNil(t, quote.Low)
	assert.Equal(t, 148.5, *quote.Low)
	require.NotNil(t, quote.PreviousClose)
	assert.Equal(t, 149.5, *quote.PreviousClose)
	assert.Equal(t, quotes.ProviderFinnhub, quote.Provider)
	// Quote timestamp is converted from unix seconds to the wire format
	assert.Equal(t, "2023-11-14T22:13:20.000Z", quote.LastUpdated)
}

func TestFetchQuoteZeroTimestampUsesNow(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"c": 10, "o": 9, "h": 11, "l": 8, "pc": 9.5, "t": 0}`)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	quote, err := client.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.NotEmpty(t, quote.LastUpdated)
}

func TestFetchQuoteAllZeroIsProviderError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"c": 0, "o": 0, "h": 0, "l": 0, "pc": 0, "t": 0}`)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Equal(t, quotes.KindProvider, quotes.Classify(err))
	assert.Contains(t, err.Error(), "no data for symbol")
}

func TestFetchQuoteMissingAPIKey(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, quoteBody)
	client := NewClient("", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, quotes.KindProvider, quotes.Classify(err))
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestFetchQuoteNetworkError(t *testing.T) {
	client := NewClient("test-key", "http://127.0.0.1:1", zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, quotes.KindNetwork, quotes.Classify(err))
}

func TestFetchQuoteHTTP429(t *testing.T) {
	srv := newTestServer(t, http.StatusTooManyRequests, "")
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, quotes.KindRateLimit, quotes.Classify(err))
}

func TestFetchQuoteHTTP401(t *testing.T) {
	srv := newTestServer(t, http.StatusUnauthorized, "")
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, quotes.KindInvalidAPIKey, quotes.Classify(err))
}

func TestFetchQuoteMalformedBody(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `not json`)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	_, err := client.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, quotes.KindProvider, quotes.Classify(err))
}

func TestFetchRaw(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, quoteBody)
	client := NewClient("test-key", srv.URL, zerolog.Nop())

	raw, err := client.FetchRaw(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, quoteBody, string(raw))
}

func TestRequestShape(t *testing.T) {
	var gotPath, gotSymbol, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSymbol = r.URL.Query().Get("symbol")
		gotToken = r.URL.Query().Get("token")
		_, _ = w.Write([]byte(quoteBody))
	}))
	t.Cleanup(srv.Close)

	client := NewClient("test-key", srv.URL, zerolog.Nop())
	_, err := client.FetchQuote(context.Background(), "msft")
	require.NoError(t, err)

	assert.Equal(t, "/quote", gotPath)
	assert.Equal(t, "MSFT", gotSymbol)
	assert.Equal(t, "test-key", gotToken)
}

func TestInterfaceImplementation(t *testing.T) {
	var _ quotes.Provider = (*Client)(nil)
}
