package storage

const schema = `
-- The 'daily_records' table is the key-value store for drawn days.
-- Rows are keyed by 'daily_YYYY-MM-DD' and never deleted on rollover.
CREATE TABLE IF NOT EXISTS daily_records (
    key TEXT PRIMARY KEY,
    date TEXT NOT NULL,
    record_id TEXT NOT NULL,
    payload TEXT NOT NULL, -- JSON encoded domain.DailyRecord
    deck_hash TEXT,
    saved_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_daily_records_date ON daily_records(date);

-- The 'deck_sources' table tracks where reference decks were loaded from.
CREATE TABLE IF NOT EXISTS deck_sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL UNIQUE,
    deck_hash TEXT NOT NULL,
    card_count INTEGER NOT NULL,
    last_loaded DATETIME
);
`
