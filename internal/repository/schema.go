package repository

// Schema definitions for the Heron database.
// Compatible with both SQLite and PostgreSQL.

const schemaPipelineRuns = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
    id TEXT PRIMARY KEY,
    source_period TEXT NOT NULL,
    status TEXT NOT NULL,
    cleaning TEXT,
    customers INTEGER NOT NULL DEFAULT 0,
    churn_rate REAL NOT NULL DEFAULT 0,
    segments TEXT,
    features_path TEXT,
    error TEXT,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at);
`

const schemaSegmentRules = `
CREATE TABLE IF NOT EXISTS segment_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_segment_rules_enabled ON segment_rules(enabled);
CREATE INDEX IF NOT EXISTS idx_segment_rules_name ON segment_rules(name);
`

const schemaScores = `
CREATE TABLE IF NOT EXISTS scores (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    label INTEGER NOT NULL,
    probability REAL NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scores_customer ON scores(customer_id);
CREATE INDEX IF NOT EXISTS idx_scores_created ON scores(customer_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaPipelineRuns,
		schemaSegmentRules,
		schemaScores,
	}
}
