// Package validate runs conformance rule evaluators over domain datasets.
// Evaluator failures never propagate: they degrade to synthetic WARNING
// findings so one broken rule cannot mask the rest of a validation pass.
package validate

import (
	"context"

	"github.com/datawright/conform/internal/domain"
)

// DomainData pairs one domain's dataset with its mapping specification.
type DomainData struct {
	Dataset domain.Dataset
	Spec    domain.MappingSpec
}

// EvalInput carries everything a rule evaluator may inspect. Siblings holds
// a consistent snapshot of every domain (including the one under evaluation)
// so cross-domain rules never observe a partially-updated study.
type EvalInput struct {
	Domain   string
	Dataset  domain.Dataset
	Spec     domain.MappingSpec
	Siblings map[string]DomainData
}

// RuleEvaluator is the pluggable contract for one conformance rule.
// Evaluate returns zero or more findings; an error (or panic) is converted
// by the engine into a single synthetic WARNING finding naming the rule.
type RuleEvaluator interface {
	Rule() domain.Rule
	Evaluate(ctx context.Context, in EvalInput) ([]domain.Finding, error)
}

// EvaluatorFunc adapts a plain function into a RuleEvaluator.
type EvaluatorFunc struct {
	RuleInfo domain.Rule
	Fn       func(ctx context.Context, in EvalInput) ([]domain.Finding, error)
}

// Rule returns the rule metadata.
func (e EvaluatorFunc) Rule() domain.Rule { return e.RuleInfo }

// Evaluate invokes the wrapped function.
func (e EvaluatorFunc) Evaluate(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
	return e.Fn(ctx, in)
}
