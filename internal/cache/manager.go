package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is a cached value with its lifetime bounds (epoch milliseconds).
// An entry is valid iff now <= ExpiresAt.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
	ExpiresAt int64           `json:"expiresAt"`
}

// Manager is the dual-tier cache. Reads check the in-memory map first and
// fall back to the durable repository, warm-restoring hits into memory.
// Writes always go to both tiers; durable write failures are swallowed and
// the memory tier stays authoritative for the session.
//
// There is no key-level locking: concurrent Set calls on the same key are
// last-write-wins, which is fine because cached data is advisory.
type Manager struct {
	mu   sync.RWMutex
	mem  map[string]Entry
	repo *Repository // nil disables the durable tier
	log  zerolog.Logger
	now  func() time.Time
}

// NewManager creates a cache manager. repo may be nil, in which case the
// cache is memory-only.
func NewManager(repo *Repository, log zerolog.Logger) *Manager {
	return &Manager{
		mem:  make(map[string]Entry),
		repo: repo,
		log:  log.With().Str("component", "cache").Logger(),
		now:  time.Now,
	}
}

// GenerateKey builds a deterministic cache key from colon-joined segments.
// The symbol is uppercased so "aapl" and "AAPL" share an entry.
func GenerateKey(apiName, widgetType, symbol string, extra ...string) string {
	segments := []string{apiName, widgetType, strings.ToUpper(strings.TrimSpace(symbol))}
	segments = append(segments, extra...)
	return strings.Join(segments, ":")
}

// Get returns the cached raw JSON for key, or nil on miss/expiry.
// Expired entries are deleted from both tiers on read.
func (m *Manager) Get(key string) json.RawMessage {
	nowMs := m.now().UnixMilli()

	m.mu.RLock()
	entry, ok := m.mem[key]
	m.mu.RUnlock()

	if ok {
		if nowMs <= entry.ExpiresAt {
			return entry.Data
		}
		// Expired: purge both tiers
		m.Remove(key)
		return nil
	}

	if m.repo == nil {
		return nil
	}

	// Durable tier handles its own lazy eviction
	restored, err := m.repo.GetIfFresh(key)
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("Durable cache read failed")
		return nil
	}
	if restored == nil {
		return nil
	}
	if nowMs > restored.ExpiresAt {
		m.Remove(key)
		return nil
	}

	// Warm-restore into the memory tier with the row's original lifetime
	// bounds, so restoring never extends an entry past its expiry.
	m.mu.Lock()
	m.mem[key] = *restored
	m.mu.Unlock()

	return restored.Data
}

// GetJSON unmarshals the cached value for key into out.
// Returns false on miss, expiry, or decode failure.
func (m *Manager) GetJSON(key string, out interface{}) bool {
	data := m.Get(key)
	if data == nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("Corrupt cache entry, dropping")
		m.Remove(key)
		return false
	}
	return true
}

// Set stores data under key in both tiers. A non-positive ttl selects
// TTLDefault.
func (m *Manager) Set(key string, data interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = TTLDefault
	}

	raw, err := json.Marshal(data)
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("Failed to marshal cache value")
		return
	}

	now := m.now()
	m.mu.Lock()
	m.mem[key] = Entry{
		Data:      raw,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(ttl).UnixMilli(),
	}
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.Store(key, json.RawMessage(raw), ttl); err != nil {
			// Best-effort: the memory tier remains authoritative
			m.log.Warn().Err(err).Str("key", key).Msg("Durable cache write failed")
		}
	}
}

// Remove deletes key from both tiers.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	delete(m.mem, key)
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.Delete(key); err != nil {
			m.log.Warn().Err(err).Str("key", key).Msg("Durable cache delete failed")
		}
	}
}

// Clear empties both tiers.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.mem = make(map[string]Entry)
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.Clear(); err != nil {
			m.log.Warn().Err(err).Msg("Durable cache clear failed")
		}
	}
}

// SweepExpired removes expired entries from both tiers. This bounds growth
// from keys that are written but never re-read.
// Returns the number of entries evicted from the memory tier.
func (m *Manager) SweepExpired() int {
	nowMs := m.now().UnixMilli()
	evicted := 0

	m.mu.Lock()
	for key, entry := range m.mem {
		if nowMs > entry.ExpiresAt {
			delete(m.mem, key)
			evicted++
		}
	}
	m.mu.Unlock()

	if m.repo != nil {
		if _, err := m.repo.DeleteExpired(); err != nil {
			m.log.Warn().Err(err).Msg("Durable cache sweep failed")
		}
	}

	return evicted
}

// Len returns the number of entries in the memory tier.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.mem)
}
