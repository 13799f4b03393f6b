// Package rules implements the data-rule engine: tenant-authored boolean
// expressions that every write must pass before anything is persisted.
// Expressions are CEL programs evaluated with the candidate document, the
// currently stored document (if any), and the authenticated member in scope.
package rules

// ScopeAll marks a rule that applies to every model type.
const ScopeAll = "ALL"

// DataRule is one tenant-configured validation rule.
type DataRule struct {
	ID            string
	ApplicationID string

	// Name identifies the rule in failure responses.
	Name string

	// Expr is the CEL expression. It must evaluate to a boolean; false
	// rejects the entity. The variables in scope are:
	//
	//	model    — the candidate document (map)
	//	existing — the stored document with the same id, or null
	//	member   — the authenticated member, or null
	Expr string

	// ModelScope limits the rule to one model type, or ScopeAll.
	ModelScope string

	// Enabled rules run; disabled rules are skipped entirely.
	Enabled bool

	// SortOrder fixes the evaluation order within an application.
	SortOrder int

	// Reason is an optional explanation surfaced to the caller when the
	// rule rejects an entity.
	Reason string
}

// AppliesTo reports whether the rule runs for the given model type.
func (r *DataRule) AppliesTo(modelType string) bool {
	return r.ModelScope == ScopeAll || r.ModelScope == modelType
}
