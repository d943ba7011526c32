// Package handlers provides HTTP handlers for quote fetching and the
// daily-history analytics endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/stockdash/internal/cache"
	"github.com/aristath/stockdash/internal/clients/alphavantage"
	"github.com/aristath/stockdash/internal/quotes"
	"github.com/aristath/stockdash/pkg/formulas"
)

// HistorySource fetches daily OHLCV bars for the history endpoint.
type HistorySource interface {
	FetchDailySeries(ctx context.Context, symbol string) ([]alphavantage.DailyBar, error)
}

// Handler provides HTTP handlers for quote endpoints.
type Handler struct {
	service *quotes.Service
	history HistorySource // nil when no history-capable provider is configured
	cache   *cache.Manager
	log     zerolog.Logger
}

// NewHandler creates a new quotes handler. history may be nil.
func NewHandler(service *quotes.Service, history HistorySource, cacheMgr *cache.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		history: history,
		cache:   cacheMgr,
		log:     log.With().Str("handler", "quotes").Logger(),
	}
}

// errorResponse is the failure payload: a compact summary plus per-provider
// attempt details for the expandable error view.
type errorResponse struct {
	Error    string                `json:"error"`
	Attempts []quotes.AttemptError `json:"attempts,omitempty"`
}

// HandleGetQuote handles GET /api/quotes/{symbol}?provider=
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	preferred := r.URL.Query().Get("provider")

	result, err := h.service.FetchWithFallback(r.Context(), symbol, preferred)
	if err != nil {
		h.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote fetch failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(errorResponse{
			Error:    err.Error(),
			Attempts: result.Attempts,
		})
		return
	}

	writeJSON(w, h.log, result)
}

// historyAnalytics summarizes the fetched series for chart overlays.
type historyAnalytics struct {
	MeanClose            float64   `json:"meanClose"`
	AnnualizedVolatility float64   `json:"annualizedVolatility"`
	RSI14                *float64  `json:"rsi14,omitempty"`
	SMA                  []float64 `json:"sma,omitempty"`
	EMA                  []float64 `json:"ema,omitempty"`
}

type historyResponse struct {
	Symbol    string                  `json:"symbol"`
	Bars      []alphavantage.DailyBar `json:"bars"`
	Analytics historyAnalytics        `json:"analytics"`
}

// HandleGetHistory handles GET /api/quotes/{symbol}/history?sma=&ema=
// Bars are cached; analytics are recomputed per request since overlay
// periods vary by caller.
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "No history provider configured", http.StatusServiceUnavailable)
		return
	}

	symbol := chi.URLParam(r, "symbol")
	key := cache.GenerateKey(quotes.ProviderAlphaVantage, "history", symbol)

	var bars []alphavantage.DailyBar
	if h.cache == nil || !h.cache.GetJSON(key, &bars) {
		var err error
		bars, err = h.history.FetchDailySeries(r.Context(), symbol)
		if err != nil {
			h.log.Warn().Err(err).Str("symbol", symbol).Msg("History fetch failed")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: quotes.Summary(err)})
			return
		}
		if h.cache != nil {
			h.cache.Set(key, bars, cache.TTLDefault)
		}
	}

	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		closes = append(closes, b.Close)
	}

	analytics := historyAnalytics{
		MeanClose:            formulas.Mean(closes),
		AnnualizedVolatility: formulas.AnnualizedVolatility(formulas.CalculateReturns(closes)),
		RSI14:                formulas.CalculateRSI(closes, 14),
	}
	if period := queryInt(r, "sma"); period > 0 {
		analytics.SMA = formulas.SMA(closes, period)
	}
	if period := queryInt(r, "ema"); period > 0 {
		analytics.EMA = formulas.EMA(closes, period)
	}

	writeJSON(w, h.log, historyResponse{
		Symbol:    symbol,
		Bars:      bars,
		Analytics: analytics,
	})
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
