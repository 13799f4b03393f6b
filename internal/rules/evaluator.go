package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/hoistlabs/datagate/internal/apperror"
)

// Input carries the values bound into a rule expression for one entity.
type Input struct {
	// Model is the candidate document under evaluation.
	Model map[string]any

	// Existing is the stored document with the same id, or nil on create.
	Existing map[string]any

	// Member is the authenticated member attached to the session, or nil.
	Member map[string]any
}

// Evaluator runs data rules against candidate entities.
type Evaluator interface {
	// Evaluate runs the given rules in order against one entity and
	// returns the first failure, or nil when every enabled rule passes.
	Evaluate(rules []DataRule, in Input) *apperror.RuleFailure
}

// evaluator implements Evaluator on CEL. Compiled programs are cached per
// expression; rule sets are small and stable so the cache is unbounded.
type evaluator struct {
	env   *cel.Env
	cache sync.Map // expr string -> cel.Program
}

// NewEvaluator creates a CEL-backed rule evaluator.
func NewEvaluator() (Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("model", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("existing", cel.DynType),
		cel.Variable("member", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cel environment: %w", err)
	}
	return &evaluator{env: env}, nil
}

// Evaluate runs the rules in order and returns the first failure.
func (e *evaluator) Evaluate(rules []DataRule, in Input) *apperror.RuleFailure {
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}

		ok, err := e.run(rule.Expr, in)
		if err != nil {
			// A broken expression rejects the entity rather than failing
			// the whole request: rules are tenant-authored and the tenant
			// needs to see what went wrong.
			return &apperror.RuleFailure{Rule: rule.Name, Reason: err.Error()}
		}
		if !ok {
			return &apperror.RuleFailure{Rule: rule.Name, Reason: rule.Reason}
		}
	}
	return nil
}

// run compiles (or loads from cache) and evaluates one expression.
func (e *evaluator) run(expr string, in Input) (bool, error) {
	program, err := e.compile(expr)
	if err != nil {
		return false, err
	}

	vars := map[string]any{
		"model":    in.Model,
		"existing": anyOrNil(in.Existing),
		"member":   anyOrNil(in.Member),
	}

	out, _, err := program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluating rule: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule did not produce a boolean")
	}
	return result, nil
}

// compile returns the cached program for expr, compiling on first use.
func (e *evaluator) compile(expr string) (cel.Program, error) {
	if cached, ok := e.cache.Load(expr); ok {
		return cached.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compiling rule: %v", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building rule program: %v", err)
	}

	e.cache.Store(expr, program)
	return program, nil
}

// anyOrNil converts a possibly-nil map into a CEL-friendly value. A typed
// nil map would evaluate as an empty map, not null, which would break
// `existing == null` checks.
func anyOrNil(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}
