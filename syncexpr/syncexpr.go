// Package syncexpr provides a datastore.SyncExpression implementation backed
// by github.com/expr-lang/expr. Filters are compiled once at construction and
// evaluated against a record's field values.
package syncexpr

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/alvintu/swift-ui-aws-amplify/datastore"
)

// Expression is a compiled per-model filter predicate.
type Expression struct {
	model   string
	source  string
	program *exprvm.Program
}

var _ datastore.SyncExpression = (*Expression)(nil)

// New compiles filter for the given model. The filter evaluates against an
// environment holding the record's fields as top-level variables plus "id"
// and "model". Unknown variables evaluate as nil rather than failing
// compilation, since different records of a model may carry different fields.
func New(model, filter string) (*Expression, error) {
	if model == "" {
		return nil, fmt.Errorf("syncexpr: model name must not be empty")
	}
	if filter == "" {
		return nil, fmt.Errorf("syncexpr: filter must not be empty (use MatchAll for no filtering)")
	}

	program, err := exprlang.Compile(filter,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("syncexpr: failed to compile filter for model %s: %w", model, err)
	}

	return &Expression{model: model, source: filter, program: program}, nil
}

// MustNew is like New but panics on compile failure. Intended for static
// filters known at build time.
func MustNew(model, filter string) *Expression {
	e, err := New(model, filter)
	if err != nil {
		panic(err)
	}
	return e
}

// ModelName returns the model the expression applies to.
func (e *Expression) ModelName() string {
	return e.model
}

// Source returns the original filter text.
func (e *Expression) Source() string {
	return e.source
}

// Evaluate runs the compiled filter against the record's fields.
func (e *Expression) Evaluate(r datastore.Record) (bool, error) {
	env := r.Fields()
	env["id"] = r.ID()
	env["model"] = r.Model()

	result, err := exprlang.Run(e.program, env)
	if err != nil {
		return false, fmt.Errorf("syncexpr: filter %q failed on record %s: %w", e.source, r.ID(), err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("syncexpr: filter %q produced %T, want bool", e.source, result)
	}
	return matched, nil
}

// matchAll participates every record of one model in sync.
type matchAll struct {
	model string
}

func (m matchAll) ModelName() string { return m.model }

func (matchAll) Evaluate(datastore.Record) (bool, error) { return true, nil }

// MatchAll returns an expression that matches every record of the model.
func MatchAll(model string) datastore.SyncExpression {
	return matchAll{model: model}
}

// Compiler adapts New to the datastore.ExpressionCompiler signature used by
// the config file loader.
func Compiler(model, filter string) (datastore.SyncExpression, error) {
	return New(model, filter)
}
