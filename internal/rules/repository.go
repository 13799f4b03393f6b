package rules

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository defines data access for tenant rule configuration.
type Repository interface {
	// ListForModel returns the application's rules that apply to the given
	// model type, in evaluation order. Disabled rules are included; the
	// evaluator skips them.
	ListForModel(ctx context.Context, applicationID, modelType string) ([]DataRule, error)
}

// repository implements Repository with MariaDB queries.
type repository struct {
	db *sql.DB
}

// NewRepository creates a new rules repository.
func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// ListForModel returns the rules scoped to a model type in evaluation order.
func (r *repository) ListForModel(ctx context.Context, applicationID, modelType string) ([]DataRule, error) {
	query := `SELECT id, application_id, name, expr, model_scope, enabled, sort_order, reason
	          FROM data_rules
	          WHERE application_id = ? AND (model_scope = ? OR model_scope = ?)
	          ORDER BY sort_order, id`

	rows, err := r.db.QueryContext(ctx, query, applicationID, ScopeAll, modelType)
	if err != nil {
		return nil, fmt.Errorf("querying data rules: %w", err)
	}
	defer rows.Close()

	var list []DataRule
	for rows.Next() {
		var rule DataRule
		var reason sql.NullString
		if err := rows.Scan(
			&rule.ID, &rule.ApplicationID, &rule.Name, &rule.Expr,
			&rule.ModelScope, &rule.Enabled, &rule.SortOrder, &reason,
		); err != nil {
			return nil, fmt.Errorf("scanning data rule: %w", err)
		}
		rule.Reason = reason.String
		list = append(list, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating data rules: %w", err)
	}
	return list, nil
}
