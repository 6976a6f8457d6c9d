// Package fixloop drives the validate, classify, remediate, revalidate cycle
// to a fixed point or a bounded iteration budget.
package fixloop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/datawright/conform/internal/domain"
	"github.com/datawright/conform/internal/usecase/classify"
	"github.com/datawright/conform/internal/usecase/remediate"
	"github.com/datawright/conform/internal/usecase/validate"
)

// Validator is the inbound port to the validation engine.
type Validator interface {
	ValidateAll(ctx context.Context, domains map[string]validate.DomainData) []domain.Finding
}

// Classifier decides machine-fixable vs human-required for one finding.
type Classifier interface {
	Classify(f domain.Finding, spec domain.MappingSpec) classify.Classification
}

// Remediator applies deterministic fixes for one domain.
type Remediator interface {
	ApplyFixes(ctx context.Context, domainName string, ds domain.Dataset, spec domain.MappingSpec, findings []domain.Finding) (remediate.Result, error)
}

// Logger is the optional structured logging port.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
}

// Store is the optional persistence port for run history. Failures are
// logged and never interrupt a run.
type Store interface {
	SaveRun(ctx context.Context, run StoreRun) error
	SaveIterations(ctx context.Context, runID string, iterations []domain.IterationRecord) error
	SaveFixActions(ctx context.Context, runID string, actions []domain.FixAction) error
	SaveFindings(ctx context.Context, runID string, findings []domain.Finding) error
	Close() error
}

// StoreRun is the run-level record handed to the persistence port.
type StoreRun struct {
	RunID         string
	StudyID       string
	Timestamp     time.Time
	MaxIterations int
	IterationsRun int
	Converged     bool
	TotalFixed    int
}

// Deps captures the orchestrator's collaborators.
type Deps struct {
	Validator  Validator
	Classifier Classifier
	Remediator Remediator
	Store      Store  // Optional: persistence for run history
	Logger     Logger // Optional: structured logging
	Clock      func() time.Time
}

// Request describes one fix-loop run.
type Request struct {
	StudyID       string
	Domains       map[string]validate.DomainData
	MaxIterations int
}

// Result captures the full outcome of a fix-loop run.
type Result struct {
	RunID            string                         `json:"run_id"`
	StudyID          string                         `json:"study_id"`
	IterationsRun    int                            `json:"iterations_run"`
	MaxIterations    int                            `json:"max_iterations"`
	Converged        bool                           `json:"converged"`
	TotalFixed       int                            `json:"total_fixed"`
	RemainingIssues  []domain.Finding               `json:"remaining_issues"`
	NeedsHumanIssues []domain.Finding               `json:"needs_human_issues"`
	AllFixActions    []domain.FixAction             `json:"all_fix_actions"`
	IterationDetails []domain.IterationRecord       `json:"iteration_details"`
	FinalReport      domain.ValidationReport        `json:"final_report"`
	FinalDomains     map[string]validate.DomainData `json:"-"`
}

// Orchestrator drives the fix loop.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator wires the orchestrator dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) validateDependencies() error {
	if o.deps.Validator == nil {
		return errors.New("validator is required")
	}
	if o.deps.Classifier == nil {
		return errors.New("classifier is required")
	}
	if o.deps.Remediator == nil {
		return errors.New("remediator is required")
	}
	// Store is optional
	// Logger is optional
	return nil
}

func validateRequest(req Request) error {
	if req.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", req.MaxIterations)
	}
	return nil
}

// Run executes the fix loop: validate, classify, remediate, revalidate, until
// an iteration applies zero fixes (converged) or the budget is exhausted.
// The caller's datasets and specs are never mutated.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if err := o.validateDependencies(); err != nil {
		return Result{}, err
	}
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}

	started := o.deps.Clock()
	runID := generateRunID(started, req.StudyID)

	// Working snapshot: the loop owns these copies outright.
	snapshot := cloneDomains(req.Domains)

	result := Result{
		RunID:         runID,
		StudyID:       req.StudyID,
		MaxIterations: req.MaxIterations,
	}

	for iteration := 1; iteration <= req.MaxIterations; iteration++ {
		result.IterationsRun = iteration

		findings := o.deps.Validator.ValidateAll(ctx, snapshot)

		record := domain.IterationRecord{
			Iteration:   iteration,
			IssuesFound: len(findings),
		}

		// Classify every finding against the snapshot's specs and group the
		// auto-fixable ones per domain.
		fixable := make(map[string][]domain.Finding)
		for _, f := range findings {
			cls := o.deps.Classifier.Classify(f, snapshot[f.Domain].Spec)
			if cls.Status == classify.StatusAutoFixable {
				fixable[f.Domain] = append(fixable[f.Domain], f)
			} else {
				record.NeedsHuman++
			}
		}

		// Remediate each affected domain concurrently. No domain's data is
		// mutated during this phase, so cross-domain reads stay consistent;
		// all staged replacements are applied together afterwards.
		staged := o.remediateDomains(ctx, snapshot, fixable)

		for _, name := range sortedKeys(staged) {
			res := staged[name]
			snapshot[name] = validate.DomainData{Dataset: res.Dataset, Spec: res.Spec}
			record.AutoFixed += len(res.Actions)
			record.RemainingAutoFixable += len(res.Skipped)
			record.FixActions = append(record.FixActions, res.Actions...)
			result.AllFixActions = append(result.AllFixActions, res.Actions...)
		}
		// A domain whose remediation failed outright staged nothing; its
		// classified auto-fixable findings are still unfixed and must show
		// up in the iteration record.
		for name, findings := range fixable {
			if _, ok := staged[name]; !ok {
				record.RemainingAutoFixable += len(findings)
			}
		}
		result.TotalFixed += record.AutoFixed
		result.IterationDetails = append(result.IterationDetails, record)

		if o.deps.Logger != nil {
			o.deps.Logger.LogInfo(ctx, "fix loop iteration complete", map[string]interface{}{
				"iteration":  iteration,
				"issues":     record.IssuesFound,
				"autoFixed":  record.AutoFixed,
				"skipped":    record.RemainingAutoFixable,
				"needsHuman": record.NeedsHuman,
			})
		}

		// Convergence: the first iteration that applies zero fixes. Covers
		// both "nothing wrong" and "only human issues remain".
		if record.AutoFixed == 0 {
			result.Converged = true
			break
		}
	}

	o.finalize(ctx, req, &result, snapshot)
	o.persist(ctx, started, &result)
	return result, nil
}

// remediateDomains runs the remediator for every domain with at least one
// auto-fixable finding, in parallel, and returns the staged replacements.
// A remediator error or panic for one domain means zero fixes for that
// domain this iteration; the run continues.
func (o *Orchestrator) remediateDomains(ctx context.Context, snapshot map[string]validate.DomainData, fixable map[string][]domain.Finding) map[string]remediate.Result {
	type outcome struct {
		name string
		res  remediate.Result
		err  error
	}

	var wg sync.WaitGroup
	results := make(chan outcome, len(fixable))
	for name, findings := range fixable {
		wg.Add(1)
		go func(name string, findings []domain.Finding) {
			defer func() {
				if r := recover(); r != nil {
					results <- outcome{name: name, err: fmt.Errorf("remediation panicked: %v", r)}
				}
				wg.Done()
			}()
			data := snapshot[name]
			res, err := o.deps.Remediator.ApplyFixes(ctx, name, data.Dataset, data.Spec, findings)
			results <- outcome{name: name, res: res, err: err}
		}(name, findings)
	}
	wg.Wait()
	close(results)

	staged := make(map[string]remediate.Result, len(fixable))
	for out := range results {
		if out.err != nil {
			if o.deps.Logger != nil {
				o.deps.Logger.LogWarning(ctx, "remediation failed, zero fixes for domain this iteration", map[string]interface{}{
					"domain": out.name,
					"error":  out.err.Error(),
				})
			}
			continue
		}
		staged[out.name] = out.res
	}
	return staged
}

// finalize runs one last validation pass over the terminal snapshot to
// populate remaining issues and the report.
func (o *Orchestrator) finalize(ctx context.Context, req Request, result *Result, snapshot map[string]validate.DomainData) {
	final := o.deps.Validator.ValidateAll(ctx, snapshot)
	result.RemainingIssues = final
	for _, f := range final {
		cls := o.deps.Classifier.Classify(f, snapshot[f.Domain].Spec)
		if cls.Status == classify.StatusNeedsHuman {
			result.NeedsHumanIssues = append(result.NeedsHumanIssues, f)
		}
	}

	result.FinalDomains = snapshot
	result.FinalReport = domain.NewValidationReport(req.StudyID, final, sortedKeys(snapshot), o.deps.Clock())
}

// persist writes the run to the store, best effort.
func (o *Orchestrator) persist(ctx context.Context, started time.Time, result *Result) {
	if o.deps.Store == nil {
		return
	}

	run := StoreRun{
		RunID:         result.RunID,
		StudyID:       result.StudyID,
		Timestamp:     started,
		MaxIterations: result.MaxIterations,
		IterationsRun: result.IterationsRun,
		Converged:     result.Converged,
		TotalFixed:    result.TotalFixed,
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"run", func() error { return o.deps.Store.SaveRun(ctx, run) }},
		{"iterations", func() error { return o.deps.Store.SaveIterations(ctx, result.RunID, result.IterationDetails) }},
		{"fix actions", func() error { return o.deps.Store.SaveFixActions(ctx, result.RunID, result.AllFixActions) }},
		{"findings", func() error { return o.deps.Store.SaveFindings(ctx, result.RunID, result.RemainingIssues) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			if o.deps.Logger != nil {
				o.deps.Logger.LogWarning(ctx, "failed to persist "+step.name, map[string]interface{}{
					"runID": result.RunID,
					"error": err.Error(),
				})
			}
		}
	}
}

func cloneDomains(domains map[string]validate.DomainData) map[string]validate.DomainData {
	out := make(map[string]validate.DomainData, len(domains))
	for name, data := range domains {
		out[name] = validate.DomainData{
			Dataset: data.Dataset.Clone(),
			Spec:    data.Spec.Clone(),
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
