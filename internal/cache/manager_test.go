package cache

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *Repository) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db)
	return NewManager(repo, zerolog.Nop()), repo
}

func TestGenerateKey(t *testing.T) {
	key := GenerateKey("alpha-vantage", "price-card", "aapl")
	assert.Equal(t, "alpha-vantage:price-card:AAPL", key)

	key = GenerateKey("multi", "quote", " msft ", "daily", "compact")
	assert.Equal(t, "multi:quote:MSFT:daily:compact", key)
}

func TestRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)

	type payload struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}

	m.Set("k", payload{Symbol: "AAPL", Price: 189.5}, time.Minute)

	var got payload
	require.True(t, m.GetJSON("k", &got))
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 189.5, got.Price)
}

func TestExpiry(t *testing.T) {
	m, _ := newTestManager(t)

	m.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	assert.Nil(t, m.Get("k"))
	// Expired entry must be purged from the memory tier
	assert.Equal(t, 0, m.Len())
}

func TestWarmRestoreFromDurableTier(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db)
	first := NewManager(repo, zerolog.Nop())
	first.Set("k", "persisted", time.Minute)

	// Fresh manager simulating a restart: memory tier is empty but the
	// durable tier still holds the entry.
	second := NewManager(repo, zerolog.Nop())
	assert.Equal(t, 0, second.Len())

	var got string
	require.True(t, second.GetJSON("k", &got))
	assert.Equal(t, "persisted", got)
	assert.Equal(t, 1, second.Len())
}

func TestWarmRestorePreservesOriginalExpiry(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.Store("k", "v", 2*time.Minute))

	m := NewManager(repo, zerolog.Nop())
	require.NotNil(t, m.Get("k"))

	// The restored memory entry must carry the durable row's own bounds,
	// not a fresh TTL window.
	var createdAt, expiresAt int64
	require.NoError(t, db.QueryRow(
		"SELECT created_at, expires_at FROM quote_cache WHERE key = ?", "k",
	).Scan(&createdAt, &expiresAt))
	m.mu.RLock()
	entry := m.mem["k"]
	m.mu.RUnlock()
	assert.Equal(t, createdAt, entry.CreatedAt)
	assert.Equal(t, expiresAt, entry.ExpiresAt)

	// Past the original expiry the entry is gone from both tiers, even
	// though the restore happened moments ago.
	m.now = func() time.Time { return time.Now().Add(3 * time.Minute) }
	assert.Nil(t, m.Get("k"))
	assert.Equal(t, 0, m.Len())

	stale, err := repo.GetIfFresh("k")
	require.NoError(t, err)
	assert.Nil(t, stale)
}

func TestDurableFailureDegradesToMemoryOnly(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	repo := NewRepository(db)
	m := NewManager(repo, zerolog.Nop())

	// Kill the durable tier; writes and reads must keep working in memory.
	require.NoError(t, db.Close())

	m.Set("k", "v", time.Minute)

	var got string
	require.True(t, m.GetJSON("k", &got))
	assert.Equal(t, "v", got)
}

func TestRemoveAndClear(t *testing.T) {
	m, repo := newTestManager(t)

	m.Set("a", 1, time.Minute)
	m.Set("b", 2, time.Minute)

	m.Remove("a")
	assert.Nil(t, m.Get("a"))

	m.Clear()
	assert.Nil(t, m.Get("b"))
	assert.Equal(t, 0, m.Len())

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSweepExpired(t *testing.T) {
	m, repo := newTestManager(t)

	m.Set("fresh", "v", time.Hour)
	m.Set("stale", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	evicted := m.SweepExpired()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, m.Len())

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLastSetWins(t *testing.T) {
	m, _ := newTestManager(t)

	m.Set("k", "first", time.Minute)
	m.Set("k", "second", time.Minute)

	var got string
	require.True(t, m.GetJSON("k", &got))
	assert.Equal(t, "second", got)
}

func TestMemoryOnlyManager(t *testing.T) {
	m := NewManager(nil, zerolog.Nop())

	m.Set("k", "v", time.Minute)

	var got string
	require.True(t, m.GetJSON("k", &got))
	assert.Equal(t, "v", got)

	m.Remove("k")
	assert.Nil(t, m.Get("k"))
}

func TestCleanupJob(t *testing.T) {
	m, _ := newTestManager(t)

	m.Set("stale", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	job := NewCleanupJob(m, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 0, m.Len())
}
