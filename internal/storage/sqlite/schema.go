package sqlite

const schema = `
-- Work queue table
-- Pending mutation requests; the single coordination point between bots.
CREATE TABLE IF NOT EXISTS work_queue (
    id TEXT PRIMARY KEY,
    item_type TEXT NOT NULL,
    item_id TEXT NOT NULL,
    action TEXT NOT NULL CHECK(action IN ('create', 'improve', 'delete', 'verify', 'enrich')),
    priority INTEGER NOT NULL DEFAULT 5 CHECK(priority >= 1 AND priority <= 10),
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'processing', 'completed', 'failed')),
    reason TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL,
    assigned_to TEXT,
    retries_left INTEGER NOT NULL DEFAULT 0 CHECK(retries_left >= 0),
    result TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    claimed_at DATETIME,
    processed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_work_queue_status ON work_queue(status);
CREATE INDEX IF NOT EXISTS idx_work_queue_item ON work_queue(item_type, item_id);
CREATE INDEX IF NOT EXISTS idx_work_queue_claim ON work_queue(status, priority, created_at);

-- Bot ledger table (append-only audit trail)
-- Never updated, never deleted. Monotonic ids allow replay by id range.
CREATE TABLE IF NOT EXISTS bot_ledger (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    bot_name TEXT NOT NULL,
    action TEXT NOT NULL,
    item_type TEXT NOT NULL,
    item_id TEXT NOT NULL,
    before_state TEXT,
    after_state TEXT,
    reason TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_bot_ledger_item ON bot_ledger(item_id, id);
CREATE INDEX IF NOT EXISTS idx_bot_ledger_created_at ON bot_ledger(created_at);

-- Bot runs table
-- One row per bot invocation; counters attributed from work item completions.
CREATE TABLE IF NOT EXISTS bot_runs (
    id TEXT PRIMARY KEY,
    bot_name TEXT NOT NULL,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    completed_at DATETIME,
    status TEXT NOT NULL DEFAULT 'running' CHECK(status IN ('running', 'completed', 'failed')),
    items_processed INTEGER NOT NULL DEFAULT 0,
    items_created INTEGER NOT NULL DEFAULT 0,
    items_updated INTEGER NOT NULL DEFAULT 0,
    items_deleted INTEGER NOT NULL DEFAULT 0,
    summary TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_bot_runs_bot_name ON bot_runs(bot_name);
CREATE INDEX IF NOT EXISTS idx_bot_runs_status ON bot_runs(status);

-- Content items table
-- Canonical question records. Written only inside ApplyMutation transactions.
CREATE TABLE IF NOT EXISTS content_items (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    answer TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    difficulty TEXT NOT NULL DEFAULT '',
    channel TEXT NOT NULL DEFAULT '',
    relevance_score INTEGER NOT NULL DEFAULT 0 CHECK(relevance_score >= 0 AND relevance_score <= 100),
    status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'flagged', 'deleted')),
    embedding_model TEXT NOT NULL DEFAULT '',
    duplicate_checked INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_content_items_status ON content_items(status);
CREATE INDEX IF NOT EXISTS idx_content_items_unchecked ON content_items(duplicate_checked, status);

-- Embedding cache table
-- Vectors are version-tagged by model so stale entries can be invalidated
-- wholesale when the embedding algorithm changes.
CREATE TABLE IF NOT EXISTS embeddings (
    item_id TEXT NOT NULL,
    model TEXT NOT NULL,
    vector TEXT NOT NULL,
    dim INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (item_id, model)
);

CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);
`
