// Package alphavantage provides the Alpha Vantage quote client.
// Alpha Vantage signals errors and throttling through the response body
// (Note / Information / "Error Message" fields) rather than HTTP status,
// so every successful read is content-sniffed before parsing.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockdash/internal/quotes"
)

// DefaultBaseURL is the production Alpha Vantage endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// rateLimitPhrases are sniffed (case-insensitive) in error payloads to
// distinguish throttling from other provider errors.
var rateLimitPhrases = []string{
	"call frequency",
	"rate limit",
	"thank you for using alpha vantage",
	"premium",
}

// Client for the Alpha Vantage API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Alpha Vantage client.
// An empty baseURL selects DefaultBaseURL. An empty apiKey leaves the
// client constructed but every fetch fails fast without a network call.
func NewClient(apiKey, baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "alphavantage").Logger(),
	}
}

// Name returns the stable provider identifier.
func (c *Client) Name() string {
	return quotes.ProviderAlphaVantage
}

// FetchQuote fetches and normalizes the current quote for symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (quotes.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.get(ctx, "GLOBAL_QUOTE", symbol)
	if err != nil {
		return quotes.Quote{}, err
	}

	if err := c.checkAPIError(body); err != nil {
		return quotes.Quote{}, err
	}

	return c.parseGlobalQuote(symbol, body)
}

// FetchRaw returns the un-normalized GLOBAL_QUOTE response body.
func (c *Client) FetchRaw(ctx context.Context, symbol string) (json.RawMessage, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.get(ctx, "GLOBAL_QUOTE", symbol)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// FetchDailySeries fetches the daily OHLCV series for symbol, sorted by
// date ascending. Feeds the price-chart widget and analytics overlays.
func (c *Client) FetchDailySeries(ctx context.Context, symbol string) ([]DailyBar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.get(ctx, "TIME_SERIES_DAILY", symbol)
	if err != nil {
		return nil, err
	}

	if err := c.checkAPIError(body); err != nil {
		return nil, err
	}

	bars, err := parseDailySeries(body)
	if err != nil {
		return nil, quotes.ProviderError{Provider: c.Name(), Message: err.Error()}
	}
	return bars, nil
}

// get performs one GET against the Alpha Vantage API and classifies
// transport-level failures. Single attempt, no internal retry.
func (c *Client) get(ctx context.Context, function, symbol string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, quotes.ProviderError{Provider: c.Name(), Message: "API key not configured"}
	}
	if symbol == "" {
		return nil, quotes.ProviderError{Provider: c.Name(), Message: "empty symbol"}
	}

	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, quotes.ProviderError{Provider: c.Name(), Message: err.Error()}
	}

	c.log.Debug().Str("function", function).Str("symbol", symbol).Msg("Fetching")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, quotes.NetworkError{Provider: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Fall through to body handling
	case http.StatusTooManyRequests:
		return nil, quotes.RateLimitError{Provider: c.Name()}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, quotes.InvalidAPIKeyError{Provider: c.Name()}
	default:
		return nil, quotes.ProviderError{
			Provider: c.Name(),
			Message:  fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, quotes.NetworkError{Provider: c.Name(), Err: err}
	}

	return body, nil
}

// checkAPIError detects error payloads embedded in 200 responses.
func (c *Client) checkAPIError(body []byte) error {
	var envelope struct {
		Note         string `json:"Note"`
		Information  string `json:"Information"`
		ErrorMessage string `json:"Error Message"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		// Alpha Vantage occasionally returns plain-text throttling notices
		if containsRateLimitPhrase(string(body)) {
			return quotes.RateLimitError{Provider: c.Name(), Message: strings.TrimSpace(string(body))}
		}
		return quotes.ProviderError{Provider: c.Name(), Message: "non-JSON response"}
	}

	for _, msg := range []string{envelope.Note, envelope.Information, envelope.ErrorMessage} {
		if msg == "" {
			continue
		}
		if containsRateLimitPhrase(msg) {
			return quotes.RateLimitError{Provider: c.Name(), Message: msg}
		}
		return quotes.ProviderError{Provider: c.Name(), Message: msg}
	}

	return nil
}

// parseGlobalQuote normalizes a GLOBAL_QUOTE payload. Numeric fields arrive
// as strings under numbered keys ("05. price").
func (c *Client) parseGlobalQuote(symbol string, body []byte) (quotes.Quote, error) {
	var envelope struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return quotes.Quote{}, quotes.ProviderError{Provider: c.Name(), Message: "malformed quote payload"}
	}

	// An empty quote object on a 200 is Alpha Vantage's way of saying the
	// daily quota is exhausted.
	if len(envelope.GlobalQuote) == 0 {
		return quotes.Quote{}, quotes.RateLimitError{Provider: c.Name(), Message: "empty quote payload"}
	}

	price := parseFloat64Ptr(envelope.GlobalQuote["05. price"])
	if price == nil {
		return quotes.Quote{}, quotes.ProviderError{Provider: c.Name(), Message: "missing or invalid price"}
	}

	if s := envelope.GlobalQuote["01. symbol"]; s != "" {
		symbol = s
	}

	return quotes.Quote{
		Symbol:        symbol,
		Price:         *price,
		Open:          parseFloat64Ptr(envelope.GlobalQuote["02. open"]),
		High:          parseFloat64Ptr(envelope.GlobalQuote["03. high"]),
		Low:           parseFloat64Ptr(envelope.GlobalQuote["04. low"]),
		PreviousClose: parseFloat64Ptr(envelope.GlobalQuote["08. previous close"]),
		Provider:      c.Name(),
		LastUpdated:   quotes.FormatTimestamp(time.Now()),
	}, nil
}

func containsRateLimitPhrase(s string) bool {
	lower := strings.ToLower(s)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
