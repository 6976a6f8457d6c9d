// Package remediate applies deterministic fixes for auto-fixable findings.
// Fix functions are pure given (dataset, spec, finding): inputs are cloned up
// front and never mutated, and every applied fix emits audit actions.
package remediate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/datawright/conform/internal/domain"
	"github.com/datawright/conform/internal/usecase/classify"
)

// Config carries the deterministic inputs fixes may draw on. It is built
// once per run and shared read-only across concurrent domain work.
type Config struct {
	// StudyID fills a missing STUDYID column.
	StudyID string

	// Constants maps variable names to configured constant values used by
	// add_constant_column. StudyID is merged in automatically.
	Constants map[string]string

	// Substitutions is the character table fix_ascii applies. Nil selects
	// the default table.
	Substitutions map[rune]string
}

func (c Config) constantFor(variable string) (string, bool) {
	if variable == domain.StudyVariable && c.StudyID != "" {
		return c.StudyID, true
	}
	v, ok := c.Constants[variable]
	return v, ok
}

func (c Config) substitutions() map[rune]string {
	if c.Substitutions != nil {
		return c.Substitutions
	}
	return defaultSubstitutions
}

// FixInput is what a fix function receives: the current working copies plus
// the finding being remediated.
type FixInput struct {
	Domain  string
	Dataset domain.Dataset
	Spec    domain.MappingSpec
	Finding domain.Finding
	Config  Config
	Now     time.Time
}

// FixOutcome is the explicit result of one fix attempt. A skipped outcome
// means the fix's precondition was unmet; the finding persists for the next
// pass and no audit entry is written. Errors are reserved for genuinely
// unexpected failures.
type FixOutcome struct {
	Dataset    domain.Dataset
	Spec       domain.MappingSpec
	Actions    []domain.FixAction
	Skipped    bool
	SkipReason string
}

// applied builds a successful outcome.
func applied(ds domain.Dataset, spec domain.MappingSpec, actions ...domain.FixAction) FixOutcome {
	return FixOutcome{Dataset: ds, Spec: spec, Actions: actions}
}

// unchanged reports that the fix had nothing to do. Not a skip: re-running a
// fix against already-remediated data is a no-op, which is what makes
// remediation idempotent.
func unchanged(ds domain.Dataset, spec domain.MappingSpec) FixOutcome {
	return FixOutcome{Dataset: ds, Spec: spec}
}

// skipped reports an unmet precondition.
func skipped(ds domain.Dataset, spec domain.MappingSpec, reason string) FixOutcome {
	return FixOutcome{Dataset: ds, Spec: spec, Skipped: true, SkipReason: reason}
}

// FixFunc is one registered deterministic fix.
type FixFunc func(in FixInput) (FixOutcome, error)

// SkippedFix records a finding whose fix declined due to an unmet
// precondition, so the orchestrator can report it as remaining auto-fixable.
type SkippedFix struct {
	Finding domain.Finding `json:"finding"`
	Reason  string         `json:"reason"`
}

// Result is the outcome of remediating one domain.
type Result struct {
	Dataset domain.Dataset
	Spec    domain.MappingSpec
	Actions []domain.FixAction
	Skipped []SkippedFix
}

// Logger is the optional structured logging port.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// Remediator dispatches auto-fixable findings to their registered fixes.
type Remediator struct {
	classifier *classify.Classifier
	fixers     map[string]FixFunc
	cfg        Config
	logger     Logger
	now        func() time.Time
}

// Option customizes a Remediator.
type Option func(*Remediator)

// WithLogger attaches a structured logger.
func WithLogger(logger Logger) Option {
	return func(r *Remediator) { r.logger = logger }
}

// WithClock overrides the timestamp source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Remediator) { r.now = now }
}

// NewRemediator builds a remediator over the default fixer dispatch table and
// verifies it against the classifier: every rule id the classifier can mark
// AUTO_FIXABLE must have a fix registered. A mismatch is a configuration
// error and fails before any loop starts.
func NewRemediator(classifier *classify.Classifier, cfg Config, opts ...Option) (*Remediator, error) {
	r := &Remediator{
		classifier: classifier,
		fixers:     defaultFixers(),
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	var missing []string
	for _, id := range classifier.AutoEligibleRuleIDs() {
		if _, ok := r.fixers[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("auto-fixable rules without a registered fix: %v", missing)
	}
	return r, nil
}

// defaultFixers is the closed dispatch table from rule id to fix function.
func defaultFixers() map[string]FixFunc {
	return map[string]FixFunc{
		domain.RuleCTTerm:           fixCTCaseNormalize,
		domain.RuleDomainColumn:     fixSetDomainValue,
		domain.RuleRequiredVariable: fixMissingVariable,
		domain.RuleNameLength:       fixTruncateName,
		domain.RuleLabelLength:      fixTruncateLabel,
		domain.RuleASCII:            fixASCII,
		domain.RuleFileNaming:       fixFileNaming,
	}
}

// ApplyFixes classifies every finding and applies the registered fix for each
// auto-fixable one. The caller's dataset and spec are never mutated; fixes
// thread new copies through in finding order. An error from a fix function
// aborts this domain's remediation and is handled at the orchestrator
// boundary.
func (r *Remediator) ApplyFixes(ctx context.Context, domainName string, ds domain.Dataset, spec domain.MappingSpec, findings []domain.Finding) (Result, error) {
	result := Result{
		Dataset: ds.Clone(),
		Spec:    spec.Clone(),
	}

	for _, f := range findings {
		cls := r.classifier.Classify(f, result.Spec)
		if cls.Status != classify.StatusAutoFixable {
			continue
		}

		fixer, ok := r.fixers[f.RuleID]
		if !ok {
			// Unreachable when the startup consistency check passed; guard
			// anyway so an extended classifier cannot crash a run.
			result.Skipped = append(result.Skipped, SkippedFix{
				Finding: f,
				Reason:  fmt.Sprintf("no fix registered for rule %s", f.RuleID),
			})
			continue
		}

		outcome, err := fixer(FixInput{
			Domain:  domainName,
			Dataset: result.Dataset,
			Spec:    result.Spec,
			Finding: f,
			Config:  r.cfg,
			Now:     r.now(),
		})
		if err != nil {
			return Result{}, fmt.Errorf("fix for rule %s on %s: %w", f.RuleID, domainName, err)
		}

		if outcome.Skipped {
			result.Skipped = append(result.Skipped, SkippedFix{Finding: f, Reason: outcome.SkipReason})
			if r.logger != nil {
				r.logger.LogInfo(ctx, "fix skipped", map[string]interface{}{
					"rule":   f.RuleID,
					"domain": domainName,
					"reason": outcome.SkipReason,
				})
			}
			continue
		}

		result.Dataset = outcome.Dataset
		result.Spec = outcome.Spec
		result.Actions = append(result.Actions, outcome.Actions...)
	}

	return result, nil
}
