package validate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/datawright/conform/internal/domain"
)

// Engine runs an ordered list of rule evaluators against domain datasets.
type Engine struct {
	evaluators []RuleEvaluator
}

// NewEngine constructs an engine over the supplied evaluator list.
// The list is copied; later mutation of the caller's slice has no effect.
func NewEngine(evaluators []RuleEvaluator) *Engine {
	return &Engine{evaluators: append([]RuleEvaluator(nil), evaluators...)}
}

// Rules returns the metadata of every registered evaluator, in order.
func (e *Engine) Rules() []domain.Rule {
	rules := make([]domain.Rule, len(e.evaluators))
	for i, ev := range e.evaluators {
		rules[i] = ev.Rule()
	}
	return rules
}

// ValidateDomain runs every registered evaluator against one domain.
// An evaluator error or panic is downgraded to a single synthetic WARNING
// finding naming the failing rule; evaluation of the remaining rules
// continues unaffected.
func (e *Engine) ValidateDomain(ctx context.Context, name string, data DomainData, siblings map[string]DomainData) []domain.Finding {
	in := EvalInput{
		Domain:   name,
		Dataset:  data.Dataset,
		Spec:     data.Spec,
		Siblings: siblings,
	}

	var findings []domain.Finding
	for _, ev := range e.evaluators {
		results, err := evaluateSafely(ctx, ev, in)
		if err != nil {
			findings = append(findings, syntheticFailureFinding(ev.Rule(), name, err))
			continue
		}
		for _, f := range results {
			findings = append(findings, tagFinding(f, ev.Rule(), name))
		}
	}
	return findings
}

// ValidateAll runs the full evaluator set over every domain. Domains are
// evaluated concurrently; none of their data is mutated during the pass, so
// no locking is needed. Output ordering is deterministic.
func (e *Engine) ValidateAll(ctx context.Context, domains map[string]DomainData) []domain.Finding {
	if len(domains) == 0 {
		return nil
	}

	type result struct {
		name     string
		findings []domain.Finding
	}

	var wg sync.WaitGroup
	results := make(chan result, len(domains))
	for name, data := range domains {
		wg.Add(1)
		go func(name string, data DomainData) {
			defer wg.Done()
			results <- result{name: name, findings: e.ValidateDomain(ctx, name, data, domains)}
		}(name, data)
	}
	wg.Wait()
	close(results)

	byDomain := make(map[string][]domain.Finding, len(domains))
	names := make([]string, 0, len(domains))
	for res := range results {
		byDomain[res.name] = res.findings
		names = append(names, res.name)
	}
	sort.Strings(names)

	var all []domain.Finding
	for _, name := range names {
		all = append(all, byDomain[name]...)
	}
	return all
}

// FilterOptions selects findings by category, severity and/or domain.
// Zero-valued fields match everything; set fields AND-combine.
type FilterOptions struct {
	Category domain.Category
	Severity domain.Severity
	Domain   string
}

// Filter returns the findings matching every supplied filter.
func Filter(findings []domain.Finding, opts FilterOptions) []domain.Finding {
	var out []domain.Finding
	for _, f := range findings {
		if opts.Category != "" && f.Category != opts.Category {
			continue
		}
		if opts.Severity != "" && f.Severity != opts.Severity {
			continue
		}
		if opts.Domain != "" && f.Domain != opts.Domain {
			continue
		}
		out = append(out, f)
	}
	return out
}

// evaluateSafely invokes an evaluator, converting panics into errors so a
// misbehaving rule can never abort a validation pass.
func evaluateSafely(ctx context.Context, ev RuleEvaluator, in EvalInput) (findings []domain.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("rule %s panicked: %v", ev.Rule().ID, r)
		}
	}()
	return ev.Evaluate(ctx, in)
}

// syntheticFailureFinding reports an evaluator failure as a WARNING so the
// failure surfaces in results instead of silently dropping the rule.
func syntheticFailureFinding(rule domain.Rule, domainName string, err error) domain.Finding {
	return domain.Finding{
		RuleID:      rule.ID,
		Description: rule.Description,
		Category:    rule.Category,
		Severity:    domain.SeverityWarning,
		Domain:      domainName,
		Message:     fmt.Sprintf("rule %s could not be evaluated: %v", rule.ID, err),
	}
}

// tagFinding fills rule metadata and domain on findings whose evaluator left
// them blank, so every finding carries exactly one (rule, category, severity).
func tagFinding(f domain.Finding, rule domain.Rule, domainName string) domain.Finding {
	if f.RuleID == "" {
		f.RuleID = rule.ID
	}
	if f.Description == "" {
		f.Description = rule.Description
	}
	if f.Category == "" {
		f.Category = rule.Category
	}
	if f.Severity == "" {
		f.Severity = rule.Severity
	}
	if f.Domain == "" {
		f.Domain = domainName
	}
	return f
}
