// Package stream pushes periodic quote updates over a websocket. Each
// connection subscribes to a set of symbols and receives a quote batch on
// its own interval; intervals are clamped to a minimum so widget refreshes
// cannot trip provider rate limits.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/stockdash/internal/quotes"
)

// MinInterval is the floor for per-connection refresh intervals.
const MinInterval = 30 * time.Second

// Streamer upgrades HTTP requests to websocket price streams.
type Streamer struct {
	service *quotes.Service
	log     zerolog.Logger
}

// NewStreamer creates a price streamer over the quote service.
func NewStreamer(service *quotes.Service, log zerolog.Logger) *Streamer {
	return &Streamer{
		service: service,
		log:     log.With().Str("component", "stream").Logger(),
	}
}

// subscribeMessage is the single client-to-server message. Re-sending it
// replaces the subscription.
type subscribeMessage struct {
	Symbols         []string `json:"symbols"`
	Provider        string   `json:"provider,omitempty"`
	IntervalSeconds int      `json:"intervalSeconds,omitempty"`
}

// update is one pushed quote batch.
type update struct {
	Type   string                  `json:"type"`
	Quotes []quotes.FallbackResult `json:"quotes"`
	At     string                  `json:"at"`
}

// HandleStream handles GET /api/stream
func (s *Streamer) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := r.Context()
	sub, err := s.readSubscribe(ctx, conn)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "expected subscribe message")
		return
	}

	interval := clampInterval(sub.IntervalSeconds)
	s.log.Info().
		Strs("symbols", sub.Symbols).
		Dur("interval", interval).
		Msg("Stream subscribed")

	// Subsequent subscribe messages replace the active subscription
	subCh := make(chan subscribeMessage)
	go func() {
		for {
			next, err := s.readSubscribe(ctx, conn)
			if err != nil {
				close(subCh)
				return
			}
			select {
			case subCh <- next:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First batch immediately, then on the ticker
	if err := s.push(ctx, conn, sub); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case next, ok := <-subCh:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			sub = next
			ticker.Reset(clampInterval(sub.IntervalSeconds))
			if err := s.push(ctx, conn, sub); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.push(ctx, conn, sub); err != nil {
				return
			}
		}
	}
}

func (s *Streamer) readSubscribe(ctx context.Context, conn *websocket.Conn) (subscribeMessage, error) {
	var sub subscribeMessage
	msgType, data, err := conn.Read(ctx)
	if err != nil {
		return sub, err
	}
	if msgType != websocket.MessageText {
		return sub, errNotText
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return sub, err
	}
	return sub, nil
}

// push fetches all subscribed symbols sequentially and writes one batch.
// Per-symbol failures are skipped; the demo fallback usually prevents them.
func (s *Streamer) push(ctx context.Context, conn *websocket.Conn, sub subscribeMessage) error {
	results := make([]quotes.FallbackResult, 0, len(sub.Symbols))
	for _, symbol := range sub.Symbols {
		result, err := s.service.FetchWithFallback(ctx, symbol, sub.Provider)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Stream fetch failed")
			continue
		}
		results = append(results, result)
	}

	data, err := json.Marshal(update{
		Type:   "quotes",
		Quotes: results,
		At:     quotes.FormatTimestamp(time.Now()),
	})
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func clampInterval(seconds int) time.Duration {
	interval := time.Duration(seconds) * time.Second
	if interval < MinInterval {
		return MinInterval
	}
	return interval
}

var errNotText = errors.New("expected text message")
