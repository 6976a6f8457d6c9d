package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawright/conform/internal/adapter/tabular"
	"github.com/datawright/conform/internal/domain"
	"github.com/datawright/conform/internal/usecase/fixloop"
	"github.com/datawright/conform/internal/usecase/validate"
)

type fakeRunner struct {
	req    fixloop.Request
	result fixloop.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, req fixloop.Request) (fixloop.Result, error) {
	f.req = req
	return f.result, f.err
}

type fakeResultWriter struct{}

func (fakeResultWriter) WriteResult(dir string, result fixloop.Result) (string, error) {
	return dir + "/result-" + result.StudyID + ".json", nil
}

func (fakeResultWriter) WriteAudit(dir string, result fixloop.Result) (string, error) {
	return dir + "/audit-" + result.StudyID + ".json", nil
}

type fakeSummary struct{}

func (fakeSummary) Render(w io.Writer, result fixloop.Result) error {
	_, err := io.WriteString(w, "summary for "+result.StudyID+"\n")
	return err
}

func (fakeSummary) WriteFile(dir string, result fixloop.Result) (string, error) {
	return dir + "/summary-" + result.StudyID + ".txt", nil
}

func readyResult(studyID string) fixloop.Result {
	return fixloop.Result{
		RunID:       "run-1",
		StudyID:     studyID,
		Converged:   true,
		FinalReport: domain.NewValidationReport(studyID, nil, nil, time.Now()),
	}
}

func testDeps(runner Runner) Dependencies {
	return Dependencies{
		Runner: runner,
		LoadStudy: func(path string) (tabular.Study, error) {
			return tabular.Study{
				ID:      "FILE-STUDY",
				Domains: map[string]validate.DomainData{"DM": {}},
			}, nil
		},
		Evaluators:    validate.DefaultEvaluators(),
		Results:       fakeResultWriter{},
		Summary:       fakeSummary{},
		IsTerminal:    func() bool { return true },
		OutputDir:     "out",
		MaxIterations: 5,
		Version:       "v1.2.3",
	}
}

func execute(t *testing.T, deps Dependencies, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	deps.Out = &buf
	root, err := NewRootCommand(deps)
	require.NoError(t, err)
	root.SetArgs(args)
	execErr := root.ExecuteContext(context.Background())
	return buf.String(), execErr
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, testDeps(&fakeRunner{}), "--version")

	assert.ErrorIs(t, err, ErrVersionRequested)
	assert.Contains(t, out, "v1.2.3")
}

func TestRunCommand(t *testing.T) {
	runner := &fakeRunner{result: readyResult("FILE-STUDY")}

	out, err := execute(t, testDeps(runner), "run", "--study", "study.yaml")

	require.NoError(t, err)
	assert.Equal(t, "FILE-STUDY", runner.req.StudyID, "study id defaults to the loaded study")
	assert.Equal(t, 5, runner.req.MaxIterations, "budget defaults from configuration")
	assert.Contains(t, out, "summary for FILE-STUDY")
	assert.Contains(t, out, "result-FILE-STUDY.json")
	assert.Contains(t, out, "audit-FILE-STUDY.json")
	assert.Contains(t, out, "summary-FILE-STUDY.txt")
}

func TestRunCommandPipedOutputIsJSON(t *testing.T) {
	runner := &fakeRunner{result: readyResult("FILE-STUDY")}
	deps := testDeps(runner)
	deps.IsTerminal = func() bool { return false }

	out, err := execute(t, deps, "run", "--study", "study.yaml")

	require.NoError(t, err)
	assert.NotContains(t, out, "summary for", "the decorated rendering is terminal-only")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, true, decoded["converged"])
}

func TestRunCommandOverrides(t *testing.T) {
	runner := &fakeRunner{result: readyResult("OVERRIDE")}

	_, err := execute(t, testDeps(runner),
		"run", "--study", "study.yaml", "--study-id", "OVERRIDE", "--max-iterations", "2")

	require.NoError(t, err)
	assert.Equal(t, "OVERRIDE", runner.req.StudyID)
	assert.Equal(t, 2, runner.req.MaxIterations)
}

func TestRunCommandFailsWhenNotSubmissionReady(t *testing.T) {
	findings := []domain.Finding{{RuleID: "SD0006", Severity: domain.SeverityError, Domain: "AE"}}
	runner := &fakeRunner{result: fixloop.Result{
		StudyID:     "FILE-STUDY",
		FinalReport: domain.NewValidationReport("FILE-STUDY", findings, []string{"AE"}, time.Now()),
	}}

	_, err := execute(t, testDeps(runner), "run", "--study", "study.yaml")

	assert.ErrorContains(t, err, "not submission ready")
}

func TestRunCommandRequiresStudyFlag(t *testing.T) {
	_, err := execute(t, testDeps(&fakeRunner{}), "run")
	assert.Error(t, err)
}

func TestRulesCommand(t *testing.T) {
	out, err := execute(t, testDeps(&fakeRunner{}), "rules")

	require.NoError(t, err)
	for _, id := range []string{"SD0001", "SD0008", "CT0001", "XD0001", "BR0001"} {
		assert.Contains(t, out, id)
	}
}

func TestNewRootCommandValidatesDependencies(t *testing.T) {
	_, err := NewRootCommand(Dependencies{})
	assert.ErrorContains(t, err, "runner is required")
}
