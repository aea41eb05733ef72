package store

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    dir TEXT NOT NULL,
    ext TEXT NOT NULL,
    term TEXT NOT NULL,
    interval_ms INTEGER NOT NULL,
    started_at TIMESTAMP NOT NULL,
    stopped_at TIMESTAMP,
    cycles INTEGER NOT NULL DEFAULT 0,
    failed_cycles INTEGER NOT NULL DEFAULT 0,
    matches INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS matches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    file_name TEXT NOT NULL,
    term TEXT NOT NULL,
    line INTEGER NOT NULL,
    text TEXT,
    found_at TIMESTAMP NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_matches_run ON matches(run_id);
CREATE INDEX IF NOT EXISTS idx_matches_file ON matches(file_name);
CREATE INDEX IF NOT EXISTS idx_matches_found_at ON matches(found_at);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`
