package database

// schemas maps database names to their schema DDL.
// Statements use IF NOT EXISTS so Migrate is safe to run on every startup.
var schemas = map[string]string{
	"dashboard": dashboardSchema,
	"cache":     cacheSchema,
}

// dashboardSchema backs the dashboard store: whole JSON documents keyed by
// storage key (widgets envelope, templates list, widget order array).
const dashboardSchema = `
CREATE TABLE IF NOT EXISTS documents (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// cacheSchema backs the durable tier of the quote cache.
const cacheSchema = `
CREATE TABLE IF NOT EXISTS quote_cache (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quote_cache_expires ON quote_cache(expires_at);
`
