// Package json writes machine-readable run artifacts.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/datawright/conform/internal/domain"
	"github.com/datawright/conform/internal/usecase/fixloop"
)

// Writer emits the run result and audit trail as JSON files.
type Writer struct {
	now func() time.Time
}

// NewWriter creates a JSON artifact writer.
func NewWriter() *Writer {
	return &Writer{now: time.Now}
}

// auditTrail is the standalone audit artifact: every fix applied across the
// run, in application order, plus the per-iteration accounting.
type auditTrail struct {
	RunID      string                   `json:"run_id"`
	StudyID    string                   `json:"study_id"`
	Generated  string                   `json:"generated"`
	TotalFixed int                      `json:"total_fixed"`
	Iterations []domain.IterationRecord `json:"iterations"`
	FixActions []domain.FixAction       `json:"fix_actions"`
}

// WriteResult writes the full run result to result-<study>.json in dir and
// returns the path.
func (w *Writer) WriteResult(dir string, result fixloop.Result) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("result-%s.json", sanitize(result.StudyID)))
	if err := writeJSON(path, result); err != nil {
		return "", err
	}
	return path, nil
}

// WriteAudit writes the audit trail to audit-<study>.json in dir and returns
// the path.
func (w *Writer) WriteAudit(dir string, result fixloop.Result) (string, error) {
	trail := auditTrail{
		RunID:      result.RunID,
		StudyID:    result.StudyID,
		Generated:  w.now().UTC().Format(time.RFC3339),
		TotalFixed: result.TotalFixed,
		Iterations: result.IterationDetails,
		FixActions: result.AllFixActions,
	}
	path := filepath.Join(dir, fmt.Sprintf("audit-%s.json", sanitize(result.StudyID)))
	if err := writeJSON(path, trail); err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// sanitize keeps study IDs path-safe.
func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "study"
	}
	return string(out)
}
