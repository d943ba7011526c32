// Package finnhub provides the Finnhub quote client. Finnhub returns a flat
// numeric payload and, unlike Alpha Vantage, signals invalid symbols with an
// all-zero quote on a 200 response.
package finnhub

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

// DefaultBaseURL is the production Finnhub endpoint.
const DefaultBaseURL = "https://finnhub.io/api/v1"

// Client for the Finnhub API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Finnhub client. An empty baseURL selects
// DefaultBaseURL; an empty apiKey makes every fetch fail fast.
func NewClient(apiKey, baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "finnhub").Logger(),
	}
}

// Name returns the stable provider identifier.
func (c *Client) Name() string {
	return quotes.ProviderFinnhub
}

// quoteResponse is Finnhub's /quote payload: current, open, high, low,
// previous close, and the quote timestamp in unix seconds.
type quoteResponse struct {
	Current       float64 `json:"c"`
	Open          float64 `json:"o"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// FetchQuote fetches and normalizes the current quote for symbol.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (quotes.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.get(ctx, symbol)
	if err != nil {
		return quotes.Quote{}, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return quotes.Quote{}, quotes.ProviderError{Provider: c.Name(), Message: "malformed quote payload"}
	}

	// Finnhub answers unknown symbols with a 200 and all-zero fields.
	if resp.Current == 0 && resp.Open == 0 && resp.High == 0 && resp.Low == 0 && resp.PreviousClose == 0 {
		return quotes.Quote{}, quotes.ProviderError{
			Provider: c.Name(),
			Message:  fmt.Sprintf("no data for symbol %q", symbol),
		}
	}

	lastUpdated := quotes.FormatTimestamp(time.Now())
	if resp.Timestamp > 0 {
		lastUpdated = quotes.FormatTimestamp(time.Unix(resp.Timestamp, 0))
	}

	return quotes.Quote{
		Symbol:        symbol,
		Price:         resp.Current,
		Open:          quotes.Float64Ptr(resp.Open),
		High:          quotes.Float64Ptr(resp.High),
		Low:           quotes.Float64Ptr(resp.Low),
		PreviousClose: quotes.Float64Ptr(resp.PreviousClose),
		Provider:      c.Name(),
		LastUpdated:   lastUpdated,
	}, nil
}

// FetchRaw returns the un-normalized /quote response body.
func (c *Client) FetchRaw(ctx context.Context, symbol string) (json.RawMessage, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// get performs one GET against /quote and classifies transport failures.
func (c *Client) get(ctx context.Context, symbol string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, quotes.ProviderError{Provider: c.Name(), Message: "API key not configured"}
	}
	if symbol == "" {
		return nil, quotes.ProviderError{Provider: c.Name(), Message: "empty symbol"}
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("token", c.apiKey)
	reqURL := c.baseURL + "/quote?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, quotes.ProviderError{Provider: c.Name(), Message: err.Error()}
	}

	c.log.Debug().Str("symbol", symbol).Msg("Fetching")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, quotes.NetworkError{Provider: c.Name(), Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
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
