// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-retail/heron/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a pipeline run, replacing any earlier record with the same ID.
func (r *SQLRepository) SaveRun(ctx context.Context, run *domain.PipelineRun) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run ID is required", domain.ErrInvalidInput)
	}

	cleaning, _ := json.Marshal(run.Cleaning)
	segments, _ := json.Marshal(run.Segments)

	query := `
		INSERT INTO pipeline_runs (
			id, source_period, status, cleaning, customers, churn_rate,
			segments, features_path, error, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			cleaning = excluded.cleaning,
			customers = excluded.customers,
			churn_rate = excluded.churn_rate,
			segments = excluded.segments,
			features_path = excluded.features_path,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.SourcePeriod, run.Status,
		string(cleaning), run.Customers, run.ChurnRate,
		string(segments), run.FeaturesPath, run.Error,
		run.StartedAt, run.CompletedAt,
	)
	return err
}

// GetRun retrieves a pipeline run by ID.
func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*domain.PipelineRun, error) {
	query := `
		SELECT id, source_period, status, cleaning, customers, churn_rate,
			   segments, features_path, error, started_at, completed_at
		FROM pipeline_runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, r.rebind(query), runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return run, err
}

// ListRuns retrieves the most recent pipeline runs, newest first.
func (r *SQLRepository) ListRuns(ctx context.Context, limit int) ([]*domain.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, source_period, status, cleaning, customers, churn_rate,
			   segments, features_path, error, started_at, completed_at
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var cleaning, segments string

	if err := row.Scan(
		&run.ID, &run.SourcePeriod, &run.Status,
		&cleaning, &run.Customers, &run.ChurnRate,
		&segments, &run.FeaturesPath, &run.Error,
		&run.StartedAt, &run.CompletedAt,
	); err != nil {
		return nil, err
	}

	if cleaning != "" {
		json.Unmarshal([]byte(cleaning), &run.Cleaning)
	}
	if segments != "" && segments != "null" {
		json.Unmarshal([]byte(segments), &run.Segments)
	}

	return &run, nil
}

// SaveSegmentRule stores a segment rule, upserting on ID.
func (r *SQLRepository) SaveSegmentRule(ctx context.Context, rule *domain.SegmentRule) error {
	if rule.ID == "" || rule.Name == "" || rule.Expression == "" {
		return fmt.Errorf("%w: rule ID, name, and expression are required", domain.ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO segment_rules (
			id, name, description, expression, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		enabled, rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// GetSegmentRule retrieves a segment rule by ID.
func (r *SQLRepository) GetSegmentRule(ctx context.Context, ruleID string) (*domain.SegmentRule, error) {
	query := `
		SELECT id, name, description, expression, enabled, created_at, updated_at
		FROM segment_rules
		WHERE id = ?
	`

	var rule domain.SegmentRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), ruleID).Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
		&enabled, &rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListSegmentRules retrieves all segment rules.
func (r *SQLRepository) ListSegmentRules(ctx context.Context) ([]*domain.SegmentRule, error) {
	query := `
		SELECT id, name, description, expression, enabled, created_at, updated_at
		FROM segment_rules
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.SegmentRule
	for rows.Next() {
		var rule domain.SegmentRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Description, &rule.Expression,
			&enabled, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteSegmentRule removes a segment rule by ID.
func (r *SQLRepository) DeleteSegmentRule(ctx context.Context, ruleID string) error {
	query := `DELETE FROM segment_rules WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), ruleID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveScore stores a scoring result.
func (r *SQLRepository) SaveScore(ctx context.Context, score *domain.Score) error {
	if score.CustomerID == "" {
		return fmt.Errorf("%w: customer ID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO scores (
			id, customer_id, label, probability, model, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		score.ID, score.CustomerID, score.Label,
		score.Probability, score.Model, score.CreatedAt,
	)
	return err
}

// ListScoresByCustomer retrieves scoring history for one customer, newest first.
func (r *SQLRepository) ListScoresByCustomer(ctx context.Context, customerID string) ([]*domain.Score, error) {
	query := `
		SELECT id, customer_id, label, probability, model, created_at
		FROM scores
		WHERE customer_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*domain.Score
	for rows.Next() {
		var s domain.Score
		if err := rows.Scan(
			&s.ID, &s.CustomerID, &s.Label,
			&s.Probability, &s.Model, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		scores = append(scores, &s)
	}

	return scores, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
