package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawright/conform/internal/domain"
)

func stubEvaluator(id string, findings []domain.Finding, err error) RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{ID: id, Description: "stub " + id, Category: domain.CategoryStructure, Severity: domain.SeverityError},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			return findings, err
		},
	}
}

func panickingEvaluator(id string) RuleEvaluator {
	return EvaluatorFunc{
		RuleInfo: domain.Rule{ID: id, Category: domain.CategoryBusiness, Severity: domain.SeverityError},
		Fn: func(ctx context.Context, in EvalInput) ([]domain.Finding, error) {
			panic("boom")
		},
	}
}

func TestValidateDomainIsolatesFailingRules(t *testing.T) {
	engine := NewEngine([]RuleEvaluator{
		stubEvaluator("R1", []domain.Finding{{Message: "first"}}, nil),
		stubEvaluator("R2", nil, errors.New("cannot read")),
		panickingEvaluator("R3"),
		stubEvaluator("R4", []domain.Finding{{Message: "last"}}, nil),
	})

	findings := engine.ValidateDomain(context.Background(), "DM", DomainData{}, nil)

	require.Len(t, findings, 4, "one finding per healthy rule plus one synthetic per failure")

	assert.Equal(t, "R1", findings[0].RuleID)
	assert.Equal(t, "first", findings[0].Message)

	assert.Equal(t, "R2", findings[1].RuleID)
	assert.Equal(t, domain.SeverityWarning, findings[1].Severity)
	assert.Contains(t, findings[1].Message, "could not be evaluated")

	assert.Equal(t, "R3", findings[2].RuleID)
	assert.Equal(t, domain.SeverityWarning, findings[2].Severity)
	assert.Contains(t, findings[2].Message, "panicked")

	assert.Equal(t, "R4", findings[3].RuleID, "rules after a failure still run")
}

func TestValidateDomainTagsFindings(t *testing.T) {
	engine := NewEngine([]RuleEvaluator{
		stubEvaluator("R1", []domain.Finding{{Message: "untagged"}}, nil),
	})

	findings := engine.ValidateDomain(context.Background(), "AE", DomainData{}, nil)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, "R1", f.RuleID)
	assert.Equal(t, "AE", f.Domain)
	assert.Equal(t, domain.CategoryStructure, f.Category)
	assert.Equal(t, domain.SeverityError, f.Severity)
}

func TestValidateAllDeterministicOrdering(t *testing.T) {
	engine := NewEngine([]RuleEvaluator{
		stubEvaluator("R1", []domain.Finding{{Message: "hit"}}, nil),
	})
	domains := map[string]DomainData{
		"VS": {}, "AE": {}, "DM": {}, "LB": {},
	}

	first := engine.ValidateAll(context.Background(), domains)
	require.Len(t, first, 4)
	assert.Equal(t, []string{"AE", "DM", "LB", "VS"}, findingDomains(first))

	for i := 0; i < 5; i++ {
		again := engine.ValidateAll(context.Background(), domains)
		assert.Equal(t, first, again, "repeated passes must produce identical output")
	}
}

func TestValidateAllEmpty(t *testing.T) {
	engine := NewEngine(DefaultEvaluators())
	assert.Nil(t, engine.ValidateAll(context.Background(), nil))
}

func TestFilter(t *testing.T) {
	findings := []domain.Finding{
		{RuleID: "A", Category: domain.CategoryStructure, Severity: domain.SeverityError, Domain: "DM"},
		{RuleID: "B", Category: domain.CategoryFormat, Severity: domain.SeverityWarning, Domain: "DM"},
		{RuleID: "C", Category: domain.CategoryFormat, Severity: domain.SeverityError, Domain: "AE"},
	}

	tests := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"no filters match all", FilterOptions{}, []string{"A", "B", "C"}},
		{"by category", FilterOptions{Category: domain.CategoryFormat}, []string{"B", "C"}},
		{"by severity", FilterOptions{Severity: domain.SeverityError}, []string{"A", "C"}},
		{"by domain", FilterOptions{Domain: "DM"}, []string{"A", "B"}},
		{"combined", FilterOptions{Category: domain.CategoryFormat, Severity: domain.SeverityError}, []string{"C"}},
		{"no match", FilterOptions{Domain: "LB"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			for _, f := range Filter(findings, tc.opts) {
				got = append(got, f.RuleID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func findingDomains(findings []domain.Finding) []string {
	var out []string
	for _, f := range findings {
		out = append(out, f.Domain)
	}
	return out
}
