package history

const schema = `
CREATE TABLE IF NOT EXISTS batches (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    concurrency INTEGER NOT NULL,
    started_at TIMESTAMP,
    finished_at TIMESTAMP,
    processed INTEGER DEFAULT 0,
    errored INTEGER DEFAULT 0,
    total_share REAL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attempts (
    id TEXT PRIMARY KEY,
    batch_id TEXT NOT NULL REFERENCES batches(id),
    profile_key TEXT NOT NULL,
    profile_id TEXT NOT NULL,
    email TEXT,
    status TEXT NOT NULL,
    login_ok BOOLEAN DEFAULT FALSE,
    checkin_ok BOOLEAN DEFAULT FALSE,
    convert_ok BOOLEAN DEFAULT FALSE,
    share_points REAL DEFAULT 0,
    streak TEXT,
    error TEXT,
    started_at TIMESTAMP,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_attempts_batch_id ON attempts(batch_id);
CREATE INDEX IF NOT EXISTS idx_attempts_profile_key ON attempts(profile_key);
CREATE INDEX IF NOT EXISTS idx_attempts_status ON attempts(status);
`
