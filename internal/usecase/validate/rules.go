package validate

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/datawright/conform/internal/domain"
)

// DefaultEvaluators returns the built-in conformance rule set, in evaluation
// order. Callers may append their own evaluators before building an engine.
func DefaultEvaluators() []RuleEvaluator {
	return []RuleEvaluator{
		domainColumnRule(),
		requiredVariableRule(),
		nameLengthRule(),
		labelLengthRule(),
		valueLengthRule(),
		dateFormatRule(),
		asciiRule(),
		fileNamingRule(),
		controlledTermRule(),
		subjectInDemoRule(),
		intervalOrderRule(),
	}
}

// isoDatePattern accepts ISO 8601 dates and datetimes at any of the
// precisions submission data uses: YYYY, YYYY-MM, YYYY-MM-DD, and
// YYYY-MM-DDThh:mm[:ss].
var isoDatePattern = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2}(T\d{2}:\d{2}(:\d{2})?)?)?)?$`)

func domainColumnRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleDomainColumn,
			Description: "Domain-identifier column present and equal to the domain code",
			Category:    domain.CategoryStructure,
			Severity:    domain.SeverityError,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			values := in.Dataset.ColumnValues(domain.DomainVariable)
			if values == nil {
				return []domain.Finding{{
					Variable:      domain.DomainVariable,
					Message:       fmt.Sprintf("dataset is missing the %s identifier column", domain.DomainVariable),
					AffectedCount: in.Dataset.RowCount(),
					FixSuggestion: fmt.Sprintf("add %s filled with '%s'", domain.DomainVariable, in.Domain),
				}}, nil
			}

			var wrong []string
			count := 0
			for _, v := range values {
				if v != in.Domain {
					count++
					wrong = appendDistinct(wrong, v)
				}
			}
			if count == 0 {
				return nil, nil
			}
			return []domain.Finding{{
				Variable:      domain.DomainVariable,
				Message:       fmt.Sprintf("%d row(s) carry a %s value other than '%s': %s", count, domain.DomainVariable, in.Domain, quoteList(wrong)),
				Values:        wrong,
				AffectedCount: count,
				FixSuggestion: fmt.Sprintf("overwrite %s with '%s'", domain.DomainVariable, in.Domain),
			}}, nil
		},
	}
}

func requiredVariableRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleRequiredVariable,
			Description: "Required variables present in the dataset",
			Category:    domain.CategoryStructure,
			Severity:    domain.SeverityError,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			var findings []domain.Finding
			for _, name := range in.Spec.RequiredVariables() {
				// SD0001 owns the domain-identifier column.
				if name == domain.DomainVariable {
					continue
				}
				if in.Dataset.HasColumn(name) {
					continue
				}
				findings = append(findings, domain.Finding{
					Variable:      name,
					Message:       fmt.Sprintf("required variable %s is missing from the dataset", name),
					AffectedCount: in.Dataset.RowCount(),
				})
			}
			return findings, nil
		},
	}
}

func nameLengthRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleNameLength,
			Description: fmt.Sprintf("Variable names no longer than %d characters", domain.MaxNameLength),
			Category:    domain.CategoryStructure,
			Severity:    domain.SeverityError,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			var findings []domain.Finding
			for _, name := range in.Dataset.ColumnNames() {
				if len(name) <= domain.MaxNameLength {
					continue
				}
				findings = append(findings, domain.Finding{
					Variable:      name,
					Message:       fmt.Sprintf("variable name %s is %d characters, limit is %d", name, len(name), domain.MaxNameLength),
					FixSuggestion: fmt.Sprintf("truncate to %d characters", domain.MaxNameLength),
				})
			}
			return findings, nil
		},
	}
}

func labelLengthRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleLabelLength,
			Description: fmt.Sprintf("Variable labels no longer than %d characters", domain.MaxLabelLength),
			Category:    domain.CategoryStructure,
			Severity:    domain.SeverityWarning,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			var findings []domain.Finding
			for _, v := range in.Spec.Variables {
				if len(v.Label) <= domain.MaxLabelLength {
					continue
				}
				findings = append(findings, domain.Finding{
					Variable:      v.Name,
					Message:       fmt.Sprintf("label for %s is %d characters, limit is %d", v.Name, len(v.Label), domain.MaxLabelLength),
					FixSuggestion: fmt.Sprintf("truncate label to %d characters", domain.MaxLabelLength),
				})
			}
			return findings, nil
		},
	}
}

func valueLengthRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleValueLength,
			Description: fmt.Sprintf("Character values no longer than %d characters", domain.MaxValueLength),
			Category:    domain.CategoryFormat,
			Severity:    domain.SeverityWarning,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			var findings []domain.Finding
			for _, col := range in.Dataset.Columns {
				count := 0
				for _, v := range col.Values {
					if len(v) > domain.MaxValueLength {
						count++
					}
				}
				if count == 0 {
					continue
				}
				findings = append(findings, domain.Finding{
					Variable:      col.Name,
					Message:       fmt.Sprintf("%d value(s) in %s exceed %d characters", count, col.Name, domain.MaxValueLength),
					AffectedCount: count,
				})
			}
			return findings, nil
		},
	}
}

func dateFormatRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleDateFormat,
			Description: "Date and datetime values in ISO 8601 format",
			Category:    domain.CategoryFormat,
			Severity:    domain.SeverityError,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			var findings []domain.Finding
			for _, col := range in.Dataset.Columns {
				if !strings.HasSuffix(col.Name, "DTC") {
					continue
				}
				var bad []string
				count := 0
				for _, v := range col.Values {
					if v == "" || isoDatePattern.MatchString(v) {
						continue
					}
					count++
					bad = appendDistinct(bad, v)
				}
				if count == 0 {
					continue
				}
				findings = append(findings, domain.Finding{
					Variable:      col.Name,
					Message:       fmt.Sprintf("%d value(s) in %s are not ISO 8601: %s", count, col.Name, quoteList(bad)),
					Values:        bad,
					AffectedCount: count,
				})
			}
			return findings, nil
		},
	}
}

func asciiRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleASCII,
			Description: "Text values restricted to printable ASCII",
			Category:    domain.CategoryFormat,
			Severity:    domain.SeverityWarning,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			var findings []domain.Finding
			for _, col := range in.Dataset.Columns {
				var bad []string
				count := 0
				for _, v := range col.Values {
					if isPrintableASCII(v) {
						continue
					}
					count++
					bad = appendDistinct(bad, v)
				}
				if count == 0 {
					continue
				}
				findings = append(findings, domain.Finding{
					Variable:      col.Name,
					Message:       fmt.Sprintf("%d value(s) in %s contain non-ASCII characters", count, col.Name),
					Values:        bad,
					AffectedCount: count,
					FixSuggestion: "apply the transcoding substitution table",
				})
			}
			return findings, nil
		},
	}
}

func fileNamingRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleFileNaming,
			Description: "Dataset file named after its lowercased domain code",
			Category:    domain.CategoryFormat,
			Severity:    domain.SeverityNotice,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			// Nothing to check for purely in-memory datasets, and nothing left
			// to report once the canonical name has been recorded.
			if in.Dataset.Source == "" || in.Dataset.CanonicalFile != "" {
				return nil, nil
			}
			canonical := domain.CanonicalFileName(in.Domain)
			base := filepath.Base(in.Dataset.Source)
			stem := strings.TrimSuffix(base, filepath.Ext(base))
			if stem == strings.ToLower(in.Domain) {
				return nil, nil
			}
			return []domain.Finding{{
				Message:       fmt.Sprintf("dataset file '%s' should be named '%s'", base, canonical),
				Values:        []string{base},
				FixSuggestion: fmt.Sprintf("record canonical output name %s", canonical),
			}}, nil
		},
	}
}

func controlledTermRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleCTTerm,
			Description: "Codelist-bound values are valid submission terms",
			Category:    domain.CategoryTerminology,
			Severity:    domain.SeverityError,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			var findings []domain.Finding
			for _, v := range in.Spec.Variables {
				if v.Codelist == nil {
					continue
				}
				values := in.Dataset.ColumnValues(v.Name)
				if values == nil {
					continue
				}
				var bad []string
				count := 0
				for _, value := range values {
					if value == "" {
						continue
					}
					if _, exact, _ := v.Codelist.MatchTerm(value); exact {
						continue
					}
					count++
					bad = appendDistinct(bad, value)
				}
				if count == 0 {
					continue
				}
				findings = append(findings, domain.Finding{
					Variable:       v.Name,
					Message:        fmt.Sprintf("%d value(s) in %s are not valid %s terms: %s", count, v.Name, v.Codelist.ID, quoteList(bad)),
					Values:         bad,
					AffectedCount:  count,
					CrossReference: v.Codelist.ID,
				})
			}
			return findings, nil
		},
	}
}

func subjectInDemoRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleSubjectInDemo,
			Description: "Every subject appears in the demographics domain",
			Category:    domain.CategoryConsistency,
			Severity:    domain.SeverityError,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			if in.Domain == "DM" {
				return nil, nil
			}
			dm, ok := in.Siblings["DM"]
			if !ok {
				return nil, nil
			}
			subjects := in.Dataset.ColumnValues(domain.SubjectVariable)
			known := dm.Dataset.ColumnValues(domain.SubjectVariable)
			if subjects == nil || known == nil {
				return nil, nil
			}

			knownSet := make(map[string]struct{}, len(known))
			for _, s := range known {
				knownSet[s] = struct{}{}
			}

			var missing []string
			count := 0
			for _, s := range subjects {
				if s == "" {
					continue
				}
				if _, ok := knownSet[s]; !ok {
					count++
					missing = appendDistinct(missing, s)
				}
			}
			if count == 0 {
				return nil, nil
			}
			return []domain.Finding{{
				Variable:      domain.SubjectVariable,
				Message:       fmt.Sprintf("%d row(s) reference subjects absent from DM: %s", count, quoteList(missing)),
				Values:        missing,
				AffectedCount: count,
			}}, nil
		},
	}
}

func intervalOrderRule() RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{
			ID:          domain.RuleIntervalOrder,
			Description: "Interval start dates not after end dates",
			Category:    domain.CategoryBusiness,
			Severity:    domain.SeverityError,
		},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			var findings []domain.Finding
			for _, col := range in.Dataset.Columns {
				if !strings.HasSuffix(col.Name, "STDTC") {
					continue
				}
				endName := strings.TrimSuffix(col.Name, "STDTC") + "ENDTC"
				ends := in.Dataset.ColumnValues(endName)
				if ends == nil {
					continue
				}
				count := 0
				for i, start := range col.Values {
					if i >= len(ends) {
						break
					}
					if start == "" || ends[i] == "" {
						continue
					}
					// ISO 8601 dates order lexicographically.
					if start > ends[i] {
						count++
					}
				}
				if count == 0 {
					continue
				}
				findings = append(findings, domain.Finding{
					Variable:      col.Name,
					Message:       fmt.Sprintf("%d record(s) have %s after %s", count, col.Name, endName),
					AffectedCount: count,
				})
			}
			return findings, nil
		},
	}
}

func isPrintableASCII(s string) bool {
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}

// appendDistinct keeps a bounded, sorted-insertion-free sample of distinct
// values for messages. Capped so a pathological column cannot bloat findings.
func appendDistinct(values []string, v string) []string {
	const sampleCap = 10
	if len(values) >= sampleCap {
		return values
	}
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	sort.Strings(quoted)
	return strings.Join(quoted, ", ")
}
