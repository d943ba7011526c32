package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockdash/internal/cache"
)

// Provider is a quote source. Implementations must classify their failures
// with the error types in this package so fallback summaries stay accurate.
type Provider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
	FetchRaw(ctx context.Context, symbol string) (json.RawMessage, error)
}

// Service orchestrates quote fetching across providers: cache first, then
// each provider in order starting with the preferred one, then demo data as
// the terminal fallback. Providers are tried sequentially; any failure moves
// on to the next.
type Service struct {
	providers   []Provider
	cache       *cache.Manager
	demo        *DemoGenerator
	disableDemo bool
	log         zerolog.Logger
}

// NewService creates a fallback service over the given providers, in
// priority order. cacheMgr may be nil to disable caching. When disableDemo
// is set, exhausting all providers yields an error instead of demo data.
func NewService(providers []Provider, cacheMgr *cache.Manager, disableDemo bool, log zerolog.Logger) *Service {
	return &Service{
		providers:   providers,
		cache:       cacheMgr,
		demo:        NewDemoGenerator(),
		disableDemo: disableDemo,
		log:         log.With().Str("component", "quotes").Logger(),
	}
}

// FetchWithFallback fetches a quote for symbol. The preferred provider is
// tried first; an empty preferred selects the first configured provider.
// Results are cached under both a per-provider key and a shared multi key,
// so a later request preferring a failed provider can still be served from
// another provider's recent answer.
func (s *Service) FetchWithFallback(ctx context.Context, symbol, preferred string) (FallbackResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return FallbackResult{}, ProviderError{Provider: "multi", Message: "empty symbol"}
	}

	if preferred == "" && len(s.providers) > 0 {
		preferred = s.providers[0].Name()
	}

	if s.cache != nil {
		keys := []string{
			cache.GenerateKey(preferred, "quote", symbol),
			cache.GenerateKey("multi", "quote", symbol),
		}
		for _, key := range keys {
			var res FallbackResult
			if s.cache.GetJSON(key, &res) {
				res.FromCache = true
				res.PreferredProvider = preferred
				return res, nil
			}
		}
	}

	var attempts []AttemptError
	for i, p := range s.orderProviders(preferred) {
		quote, err := p.FetchQuote(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).
				Str("provider", p.Name()).
				Str("symbol", symbol).
				Msg("Provider attempt failed")
			attempts = append(attempts, AttemptError{
				Provider: p.Name(),
				Message:  Summary(err),
				Kind:     Classify(err),
			})
			continue
		}
		if !quote.Valid() {
			attempts = append(attempts, AttemptError{
				Provider: p.Name(),
				Message:  "invalid quote",
				Kind:     KindProvider,
			})
			continue
		}

		// Raw payload is best-effort: field-extraction widgets degrade to an
		// empty object rather than failing the whole quote.
		raw, rawErr := p.FetchRaw(ctx, symbol)
		if rawErr != nil || len(raw) == 0 {
			raw = json.RawMessage("{}")
		}

		result := FallbackResult{
			Quote:             quote,
			Raw:               raw,
			Provider:          p.Name(),
			UsedFallback:      i > 0,
			PreferredProvider: preferred,
			Attempts:          attempts,
		}
		s.cacheResult(symbol, result, cache.TTLDefault)
		return result, nil
	}

	if !s.disableDemo {
		quote := s.demo.Generate(symbol)
		result := FallbackResult{
			Quote:             quote,
			Raw:               json.RawMessage("{}"),
			Provider:          ProviderDemo,
			UsedFallback:      true,
			PreferredProvider: preferred,
			Attempts:          attempts,
		}
		// Demo data is cached longer so a throttled provider is not hammered
		// by widget refreshes.
		s.cacheResult(symbol, result, cache.TTLDemo)
		return result, nil
	}

	return FallbackResult{
		PreferredProvider: preferred,
		Attempts:          attempts,
	}, fmt.Errorf("all providers failed for %s: %s", symbol, joinAttempts(attempts))
}

// orderProviders returns the providers with the preferred one first,
// preserving the configured order for the rest.
func (s *Service) orderProviders(preferred string) []Provider {
	ordered := make([]Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.Name() == preferred {
			ordered = append(ordered, p)
		}
	}
	for _, p := range s.providers {
		if p.Name() != preferred {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func (s *Service) cacheResult(symbol string, result FallbackResult, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	s.cache.Set(cache.GenerateKey(result.Provider, "quote", symbol), result, ttl)
	s.cache.Set(cache.GenerateKey("multi", "quote", symbol), result, ttl)
}

func joinAttempts(attempts []AttemptError) string {
	if len(attempts) == 0 {
		return "no providers configured"
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Message))
	}
	return strings.Join(parts, "; ")
}
