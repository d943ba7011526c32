// Package quotes defines the normalized quote model shared by all providers
// and the fallback orchestration that ties the providers together.
package quotes

import (
	"encoding/json"
	"math"
	"time"
)

// Provider identifiers. These are wire-visible (widget configs reference
// them) so they must stay stable.
const (
	ProviderAlphaVantage = "alpha-vantage"
	ProviderFinnhub      = "finnhub"
	ProviderDemo         = "demo"
)

// ISOTimeFormat is the lastUpdated wire format (millisecond precision, UTC).
const ISOTimeFormat = "2006-01-02T15:04:05.000Z"

// Quote is the normalized shape all providers must produce.
// Price is the only required numeric field; a quote without a finite price
// is invalid and must never be returned to callers.
type Quote struct {
	Symbol        string   `json:"symbol"`
	Price         float64  `json:"price"`
	Open          *float64 `json:"open,omitempty"`
	High          *float64 `json:"high,omitempty"`
	Low           *float64 `json:"low,omitempty"`
	PreviousClose *float64 `json:"previousClose,omitempty"`
	Provider      string   `json:"provider"`
	LastUpdated   string   `json:"lastUpdated"` // ISO-8601
}

// Valid reports whether the quote carries a finite price.
func (q Quote) Valid() bool {
	return !math.IsNaN(q.Price) && !math.IsInf(q.Price, 0)
}

// FormatTimestamp renders a time in the lastUpdated wire format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(ISOTimeFormat)
}

// Float64Ptr is a small helper for building optional quote fields.
func Float64Ptr(v float64) *float64 {
	return &v
}

// AttemptError records one failed provider attempt during fallback.
type AttemptError struct {
	Provider string    `json:"provider"`
	Message  string    `json:"message"`
	Kind     ErrorKind `json:"type"`
}

// FallbackResult is the full result of a fetch-with-fallback call.
// Raw carries the provider's un-normalized response for field-extraction
// widgets; it is best-effort and degrades to an empty object.
type FallbackResult struct {
	Quote             Quote           `json:"quote"`
	Raw               json.RawMessage `json:"raw"`
	Provider          string          `json:"provider"`
	UsedFallback      bool            `json:"usedFallback"`
	PreferredProvider string          `json:"preferredProvider"`
	Attempts          []AttemptError  `json:"attempts,omitempty"`
	FromCache         bool            `json:"fromCache"`
}
