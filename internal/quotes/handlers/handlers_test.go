package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stockdash/internal/clients/alphavantage"
	"github.com/aristath/stockdash/internal/quotes"
)

// stubProvider is a scripted quote provider.
type stubProvider struct {
	name  string
	quote quotes.Quote
	err   error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) FetchQuote(context.Context, string) (quotes.Quote, error) {
	if p.err != nil {
		return quotes.Quote{}, p.err
	}
	return p.quote, nil
}

func (p *stubProvider) FetchRaw(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{"ok":true}`), nil
}

// stubHistory is a scripted daily-series source.
type stubHistory struct {
	bars []alphavantage.DailyBar
	err  error
}

func (s *stubHistory) FetchDailySeries(context.Context, string) ([]alphavantage.DailyBar, error) {
	return s.bars, s.err
}

func newRouter(service *quotes.Service, history HistorySource) *chi.Mux {
	h := NewHandler(service, history, nil, zerolog.Nop())
	r := chi.NewRouter()
	r.Get("/quotes/{symbol}", h.HandleGetQuote)
	r.Get("/quotes/{symbol}/history", h.HandleGetHistory)
	return r
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetQuote(t *testing.T) {
	provider := &stubProvider{
		name: quotes.ProviderAlphaVantage,
		quote: quotes.Quote{
			Symbol:      "AAPL",
			Price:       189.5,
			Provider:    quotes.ProviderAlphaVantage,
			LastUpdated: "2023-11-14T22:13:20.000Z",
		},
	}
	service := quotes.NewService([]quotes.Provider{provider}, nil, false, zerolog.Nop())
	router := newRouter(service, nil)

	rec := get(router, "/quotes/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)

	var result quotes.FallbackResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 189.5, result.Quote.Price)
	assert.False(t, result.UsedFallback)
}

func TestHandleGetQuoteFallsBackToDemo(t *testing.T) {
	provider := &stubProvider{
		name: quotes.ProviderAlphaVantage,
		err:  quotes.RateLimitError{Provider: quotes.ProviderAlphaVantage},
	}
	service := quotes.NewService([]quotes.Provider{provider}, nil, false, zerolog.Nop())
	router := newRouter(service, nil)

	rec := get(router, "/quotes/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)

	var result quotes.FallbackResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, quotes.ProviderDemo, result.Provider)
	assert.True(t, result.UsedFallback)
}

func TestHandleGetQuoteAllFailWithDemoDisabled(t *testing.T) {
	provider := &stubProvider{
		name: quotes.ProviderAlphaVantage,
		err:  quotes.InvalidAPIKeyError{Provider: quotes.ProviderAlphaVantage},
	}
	service := quotes.NewService([]quotes.Provider{provider}, nil, true, zerolog.Nop())
	router := newRouter(service, nil)

	rec := get(router, "/quotes/AAPL")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Error    string                `json:"error"`
		Attempts []quotes.AttemptError `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "all providers failed")
	require.Len(t, resp.Attempts, 1)
	assert.Equal(t, quotes.KindInvalidAPIKey, resp.Attempts[0].Kind)
}

func TestHandleGetHistory(t *testing.T) {
	day := func(d string, close float64) alphavantage.DailyBar {
		date, _ := time.Parse("2006-01-02", d)
		return alphavantage.DailyBar{Date: date, Close: close}
	}
	history := &stubHistory{bars: []alphavantage.DailyBar{
		day("2024-01-10", 100),
		day("2024-01-11", 110),
		day("2024-01-12", 105),
	}}
	service := quotes.NewService(nil, nil, false, zerolog.Nop())
	router := newRouter(service, history)

	rec := get(router, "/quotes/AAPL/history?sma=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Symbol    string                  `json:"symbol"`
		Bars      []alphavantage.DailyBar `json:"bars"`
		Analytics struct {
			MeanClose            float64   `json:"meanClose"`
			AnnualizedVolatility float64   `json:"annualizedVolatility"`
			SMA                  []float64 `json:"sma"`
		} `json:"analytics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Symbol)
	assert.Len(t, resp.Bars, 3)
	assert.InDelta(t, 105.0, resp.Analytics.MeanClose, 1e-9)
	assert.Greater(t, resp.Analytics.AnnualizedVolatility, 0.0)
	assert.Len(t, resp.Analytics.SMA, 3)
}

func TestHandleGetHistoryProviderFailure(t *testing.T) {
	history := &stubHistory{err: quotes.NetworkError{
		Provider: quotes.ProviderAlphaVantage,
		Err:      errors.New("refused"),
	}}
	service := quotes.NewService(nil, nil, false, zerolog.Nop())
	router := newRouter(service, history)

	rec := get(router, "/quotes/AAPL/history")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Network unavailable")
}

func TestHandleGetHistoryNoProvider(t *testing.T) {
	service := quotes.NewService(nil, nil, false, zerolog.Nop())
	router := newRouter(service, nil)

	rec := get(router, "/quotes/AAPL/history")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
