package quotes

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// DemoGenerator synthesizes plausible-looking quote data so the UI never
// dead-ends when every real provider fails. The base price is derived from
// the symbol (same symbol, same ballpark across runs); intraday fields are
// jittered per call. Callers must not treat the output as deterministic.
type DemoGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewDemoGenerator creates a demo data generator.
func NewDemoGenerator() *DemoGenerator {
	return &DemoGenerator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
}

// Generate produces a demo quote for symbol. Price is always finite and
// positive.
func (g *DemoGenerator) Generate(symbol string) Quote {
	base := basePrice(symbol)

	g.mu.Lock()
	// Jitter price within ±2% of the symbol's base price
	price := base * (1 + (g.rng.Float64()-0.5)*0.04)
	open := base * (1 + (g.rng.Float64()-0.5)*0.03)
	spread := base * (0.005 + g.rng.Float64()*0.015)
	prevClose := base * (1 + (g.rng.Float64()-0.5)*0.03)
	g.mu.Unlock()

	high := maxFloat(price, open) + spread
	low := minFloat(price, open) - spread

	return Quote{
		Symbol:        symbol,
		Price:         round2(price),
		Open:          Float64Ptr(round2(open)),
		High:          Float64Ptr(round2(high)),
		Low:           Float64Ptr(round2(low)),
		PreviousClose: Float64Ptr(round2(prevClose)),
		Provider:      ProviderDemo,
		LastUpdated:   FormatTimestamp(g.now()),
	}
}

// basePrice maps a symbol to a stable price in [20, 520).
func basePrice(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return 20 + float64(h.Sum32()%50000)/100
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
