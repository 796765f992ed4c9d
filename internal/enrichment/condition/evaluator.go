// Package condition evaluates the optional boolean expression that gates an
// enrichment request against its source document. When the expression
// evaluates false the pipeline skips the provider call and returns the
// source unchanged.
package condition

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	gocache "github.com/patrickmn/go-cache"

	"enrichment-service/internal/common/errors"
)

// Evaluator compiles and runs gate expressions. Compiled programs are cached
// so repeated batch items with the same condition compile once.
type Evaluator struct {
	programs *gocache.Cache
}

// NewEvaluator creates an evaluator with a compiled-program cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		programs: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Evaluate runs expression against the source document and returns its
// boolean result. The expression sees the document's fields as top-level
// variables plus the whole document as `source`.
func (e *Evaluator) Evaluate(expression string, source map[string]interface{}) (bool, error) {
	if expression == "" {
		return true, nil
	}

	env := buildEnv(source)

	program, err := e.compile(expression)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, errors.ValidationError(
			fmt.Sprintf("condition %q failed to evaluate: %v", expression, err))
	}

	ok, isBool := result.(bool)
	if !isBool {
		return false, errors.ValidationError(
			fmt.Sprintf("condition %q did not evaluate to a boolean", expression))
	}

	return ok, nil
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	if cached, found := e.programs.Get(expression); found {
		if program, ok := cached.(*vm.Program); ok {
			return program, nil
		}
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, errors.ValidationError(
			fmt.Sprintf("condition %q failed to compile: %v", expression, err))
	}

	e.programs.Set(expression, program, gocache.DefaultExpiration)
	return program, nil
}

// buildEnv exposes source fields as variables alongside the full document.
func buildEnv(source map[string]interface{}) map[string]interface{} {
	env := make(map[string]interface{}, len(source)+1)
	for k, v := range source {
		env[k] = v
	}
	env["source"] = source
	return env
}
