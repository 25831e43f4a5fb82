// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	return Open(cfg)
}

// Open is New returning the concrete type.
func Open(cfg domain.RepositoryConfig) (*SQLRepository, error) {
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

// SaveApplication stores a received application with tenant isolation.
func (r *SQLRepository) SaveApplication(ctx context.Context, tenantID string, app *domain.Application) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if app.ID == "" {
		return fmt.Errorf("%w: application id is required", ErrInvalidInput)
	}

	// Document payloads are never persisted.
	request, err := json.Marshal(app.Request.WithoutDocuments())
	if err != nil {
		return fmt.Errorf("failed to encode application: %w", err)
	}

	createdAt := app.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO applications (
			id, tenant_id, document_number, document_type, payer,
			requested_amount, request, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		app.ID, tenantID, app.Request.DocumentNumber, string(app.Request.DocumentType),
		app.Request.Payer, app.Request.RequestedAmount, string(request), createdAt.UTC(),
	)
	return err
}

// GetApplication retrieves an application by ID with tenant isolation.
func (r *SQLRepository) GetApplication(ctx context.Context, tenantID string, appID string) (*domain.Application, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, request, created_at
		FROM applications
		WHERE tenant_id = ? AND id = ?
	`

	var app domain.Application
	var request string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID).Scan(
		&app.ID, &app.TenantID, &request, &app.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(request), &app.Request); err != nil {
		return nil, fmt.Errorf("failed to decode application %s: %w", app.ID, err)
	}

	return &app, nil
}

// CountApplicationsByDocument counts applications for a document received at or after since.
func (r *SQLRepository) CountApplicationsByDocument(ctx context.Context, tenantID string, documentNumber string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*)
		FROM applications
		WHERE tenant_id = ? AND document_number = ? AND created_at >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, documentNumber, since.UTC()).Scan(&count)
	return count, err
}

// SaveEvaluation stores an evaluation result with tenant isolation.
func (r *SQLRepository) SaveEvaluation(ctx context.Context, tenantID string, eval *domain.Evaluation) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	result, err := json.Marshal(eval.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	metadata, _ := json.Marshal(eval.Metadata)

	var modelVariables sql.NullString
	if eval.ModelVariables != nil {
		b, _ := json.Marshal(eval.ModelVariables)
		modelVariables = sql.NullString{String: string(b), Valid: true}
	}

	query := `
		INSERT INTO evaluations (
			id, tenant_id, application_id, document_number, status,
			rule_id, rejection_code, timestamp, result, model_variables, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		eval.ID, tenantID, eval.ApplicationID, eval.DocumentNumber, eval.Status,
		eval.Result.RuleID, string(eval.Result.RejectionCode), eval.Timestamp.UTC(),
		string(result), modelVariables, string(metadata),
	)
	return err
}

const selectEvaluation = `
	SELECT id, tenant_id, application_id, document_number, status,
		   timestamp, result, model_variables, metadata
	FROM evaluations
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (*domain.Evaluation, error) {
	var eval domain.Evaluation
	var result, metadata string
	var modelVariables sql.NullString

	if err := row.Scan(
		&eval.ID, &eval.TenantID, &eval.ApplicationID, &eval.DocumentNumber, &eval.Status,
		&eval.Timestamp, &result, &modelVariables, &metadata,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(result), &eval.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result of %s: %w", eval.ID, err)
	}
	json.Unmarshal([]byte(metadata), &eval.Metadata)
	if modelVariables.Valid {
		var vars domain.ModelVariables
		if err := json.Unmarshal([]byte(modelVariables.String), &vars); err == nil {
			eval.ModelVariables = &vars
		}
	}

	return &eval, nil
}

// GetEvaluation retrieves an evaluation by ID with tenant isolation.
func (r *SQLRepository) GetEvaluation(ctx context.Context, tenantID string, evalID string) (*domain.Evaluation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := selectEvaluation + ` WHERE tenant_id = ? AND id = ?`

	eval, err := scanEvaluation(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, evalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return eval, err
}

// ListEvaluationsByDocument returns a document's evaluations, newest first.
func (r *SQLRepository) ListEvaluationsByDocument(ctx context.Context, tenantID string, documentNumber string) ([]*domain.Evaluation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := selectEvaluation + ` WHERE tenant_id = ? AND document_number = ? ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, documentNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []*domain.Evaluation
	for rows.Next() {
		eval, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, eval)
	}

	return evals, rows.Err()
}

// SavePolicyRule inserts or replaces a policy rule with tenant isolation.
func (r *SQLRepository) SavePolicyRule(ctx context.Context, tenantID string, rule *domain.PolicyRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rule.ID == "" || rule.Expression == "" {
		return fmt.Errorf("%w: rule id and expression are required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO policy_rules (
			id, tenant_id, name, description, version, expression,
			rejection_code, reason, priority, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			expression = excluded.expression,
			rejection_code = excluded.rejection_code,
			reason = excluded.reason,
			priority = excluded.priority,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description, rule.Version, rule.Expression,
		string(rule.RejectionCode), rule.Reason, rule.Priority, enabled,
		now, now,
	)
	return err
}

const selectPolicyRule = `
	SELECT id, tenant_id, name, description, version, expression,
		   rejection_code, reason, priority, enabled, created_at, updated_at
	FROM policy_rules
`

func scanPolicyRule(row rowScanner) (*domain.PolicyRule, error) {
	var rule domain.PolicyRule
	var description sql.NullString
	var code string
	var enabled int

	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &description, &rule.Version, &rule.Expression,
		&code, &rule.Reason, &rule.Priority, &enabled, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.RejectionCode = domain.RejectionCode(code)
	rule.Enabled = enabled == 1
	return &rule, nil
}

// GetPolicyRule retrieves an enabled policy rule with tenant isolation.
func (r *SQLRepository) GetPolicyRule(ctx context.Context, tenantID string, ruleID string) (*domain.PolicyRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := selectPolicyRule + ` WHERE tenant_id = ? AND id = ? AND enabled = 1`

	rule, err := scanPolicyRule(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListPolicyRules retrieves all enabled policy rules for a tenant in evaluation order.
func (r *SQLRepository) ListPolicyRules(ctx context.Context, tenantID string) ([]*domain.PolicyRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := selectPolicyRule + ` WHERE tenant_id = ? AND enabled = 1 ORDER BY priority, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.PolicyRule
	for rows.Next() {
		rule, err := scanPolicyRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// DeletePolicyRule soft-deletes a policy rule by setting enabled = 0.
func (r *SQLRepository) DeletePolicyRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE policy_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
