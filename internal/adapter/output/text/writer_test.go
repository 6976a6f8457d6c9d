package text

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawright/conform/internal/domain"
	"github.com/datawright/conform/internal/usecase/fixloop"
)

func sampleResult() fixloop.Result {
	findings := []domain.Finding{
		{RuleID: "SD0006", Severity: domain.SeverityError, Category: domain.CategoryFormat, Domain: "AE", Variable: "AESTDTC", Message: "1 value(s) in AESTDTC are not ISO 8601: '03/15/2024'"},
	}
	return fixloop.Result{
		RunID:            "run-20260828T120000Z-abc123",
		StudyID:          "STUDY1",
		IterationsRun:    2,
		MaxIterations:    5,
		Converged:        true,
		TotalFixed:       3,
		NeedsHumanIssues: findings,
		IterationDetails: []domain.IterationRecord{
			{Iteration: 1, IssuesFound: 4, AutoFixed: 3, NeedsHuman: 1},
			{Iteration: 2, IssuesFound: 1, NeedsHuman: 1},
		},
		FinalReport: domain.NewValidationReport("STUDY1", findings, []string{"AE", "DM"}, time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)),
	}
}

func TestRender(t *testing.T) {
	var b strings.Builder

	require.NoError(t, NewWriter().Render(&b, sampleResult()))
	out := b.String()

	assert.Contains(t, out, "Conformance Summary: STUDY1")
	assert.Contains(t, out, "Iterations: 2 of 5")
	assert.Contains(t, out, "Converged:  yes")
	assert.Contains(t, out, "Fixed:      3 issue(s)")
	assert.Contains(t, out, "NOT READY")
	assert.Contains(t, out, "Format", "category names render title-cased")
	assert.Contains(t, out, "[SD0006] AE/AESTDTC")
	assert.Contains(t, out, "#1: found 4, fixed 3, skipped 0, needs human 1")
}

func TestRenderSubmissionReady(t *testing.T) {
	result := sampleResult()
	result.NeedsHumanIssues = nil
	result.FinalReport = domain.NewValidationReport("STUDY1", nil, []string{"AE", "DM"}, time.Now())

	var b strings.Builder
	require.NoError(t, NewWriter().Render(&b, result))

	assert.Contains(t, b.String(), "READY (no effective errors)")
	assert.NotContains(t, b.String(), "Needs human review")
}

func TestIsTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "not-a-tty")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f.Fd()), "a regular file is never a terminal")
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path, err := NewWriter().WriteFile(dir, sampleResult())
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Conformance Summary: STUDY1")
}
