package store

// Schema creates the report store tables.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	final_url   TEXT NOT NULL DEFAULT '',
	status_code INTEGER,
	digest      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	report      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_url ON runs(url, started_at);

CREATE TABLE IF NOT EXISTS run_errors (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	audit   TEXT NOT NULL,
	message TEXT NOT NULL,
	PRIMARY KEY (run_id, audit)
);

CREATE TABLE IF NOT EXISTS findings (
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	family    TEXT NOT NULL,
	type      TEXT NOT NULL,
	criterion TEXT NOT NULL DEFAULT '',
	level     TEXT NOT NULL DEFAULT '',
	severity  TEXT NOT NULL,
	message   TEXT NOT NULL,
	elements  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id, family);
CREATE INDEX IF NOT EXISTS idx_findings_type ON findings(type, severity);
`
