package domain

import (
	"context"
	"time"
)

// Repository defines the interface for run-history persistence: pipeline
// runs, segment rules, and churn scores.
type Repository interface {
	// Pipeline run operations
	SaveRun(ctx context.Context, run *PipelineRun) error
	GetRun(ctx context.Context, runID string) (*PipelineRun, error)
	ListRuns(ctx context.Context, limit int) ([]*PipelineRun, error)

	// Segment rule operations
	SaveSegmentRule(ctx context.Context, rule *SegmentRule) error
	GetSegmentRule(ctx context.Context, ruleID string) (*SegmentRule, error)
	ListSegmentRules(ctx context.Context) ([]*SegmentRule, error)
	DeleteSegmentRule(ctx context.Context, ruleID string) error

	// Score operations
	SaveScore(ctx context.Context, score *Score) error
	ListScoresByCustomer(ctx context.Context, customerID string) ([]*Score, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
