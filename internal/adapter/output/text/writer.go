// Package text renders a human-readable conformance summary.
package text

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/datawright/conform/internal/domain"
	"github.com/datawright/conform/internal/usecase/fixloop"
)

// Writer renders fix-loop results as plain text.
type Writer struct {
	titler cases.Caser
}

// NewWriter creates a text renderer.
func NewWriter() *Writer {
	return &Writer{titler: cases.Title(language.English)}
}

// Render writes the summary of a run to w.
func (t *Writer) Render(w io.Writer, result fixloop.Result) error {
	var b strings.Builder

	report := result.FinalReport

	b.WriteString(fmt.Sprintf("Conformance Summary: %s\n", report.StudyID))
	b.WriteString(strings.Repeat("=", len("Conformance Summary: ")+len(report.StudyID)) + "\n\n")

	b.WriteString(fmt.Sprintf("Run:        %s\n", result.RunID))
	b.WriteString(fmt.Sprintf("Iterations: %d of %d\n", result.IterationsRun, result.MaxIterations))
	b.WriteString(fmt.Sprintf("Converged:  %s\n", yesNo(result.Converged)))
	b.WriteString(fmt.Sprintf("Fixed:      %d issue(s)\n\n", result.TotalFixed))

	b.WriteString(fmt.Sprintf("Findings:        %d\n", report.TotalFindings))
	b.WriteString(fmt.Sprintf("Remaining:       %d error(s), %d warning(s), %d notice(s)\n",
		report.Effective.Errors, report.Effective.Warnings, report.Effective.Notices))
	if report.FalsePositives > 0 {
		b.WriteString(fmt.Sprintf("False positives: %d (excluded from totals)\n", report.FalsePositives))
	}
	b.WriteString(fmt.Sprintf("Pass rate:       %.0f%% of domains clean\n", report.PassRate*100))
	b.WriteString(fmt.Sprintf("Submission:      %s\n", readiness(report.SubmissionReady)))

	if len(report.PerCategory) > 0 {
		b.WriteString("\nBy category:\n")
		for _, category := range sortedCategoryKeys(report.PerCategory) {
			counts := report.PerCategory[category]
			b.WriteString(fmt.Sprintf("  %-14s %d error(s), %d warning(s)\n",
				t.titler.String(string(category)), counts.Errors, counts.Warnings))
		}
	}

	if len(result.NeedsHumanIssues) > 0 {
		b.WriteString("\nNeeds human review:\n")
		for _, f := range result.NeedsHumanIssues {
			b.WriteString(fmt.Sprintf("  [%s] %s/%s: %s\n", f.RuleID, f.Domain, orDash(f.Variable), f.Message))
		}
	}

	b.WriteString("\nPer iteration:\n")
	for _, it := range result.IterationDetails {
		b.WriteString(fmt.Sprintf("  #%d: found %d, fixed %d, skipped %d, needs human %d\n",
			it.Iteration, it.IssuesFound, it.AutoFixed, it.RemainingAutoFixable, it.NeedsHuman))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFile renders the summary to summary-<study>.txt in dir and returns
// the path.
func (t *Writer) WriteFile(dir string, result fixloop.Result) (string, error) {
	path := fmt.Sprintf("%s/summary-%s.txt", dir, result.StudyID)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer f.Close()

	if err := t.Render(f, result); err != nil {
		return "", fmt.Errorf("failed to render summary: %w", err)
	}
	return path, nil
}

// IsTerminal reports whether fd is attached to a terminal, letting callers
// choose between the summary rendering and raw JSON on pipes.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

func sortedCategoryKeys(m map[domain.Category]domain.SeverityBreakdown) []domain.Category {
	keys := make([]domain.Category, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func readiness(ready bool) string {
	if ready {
		return "READY (no effective errors)"
	}
	return "NOT READY (effective errors remain)"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
