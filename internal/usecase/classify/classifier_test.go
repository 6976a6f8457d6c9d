package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawright/conform/internal/domain"
)

func sexSpec() domain.MappingSpec {
	return domain.MappingSpec{
		Domain: "DM",
		Variables: []domain.VariableSpec{
			{Name: "SEX", Codelist: &domain.Codelist{ID: "CL.SEX", Terms: []string{"M", "F", "U"}}},
		},
	}
}

func TestClassifyPolicyTable(t *testing.T) {
	c := NewClassifier()
	spec := sexSpec()

	tests := []struct {
		ruleID string
		status Status
		fix    domain.FixType
	}{
		{domain.RuleDomainColumn, StatusAutoFixable, domain.FixSetDomainValue},
		{domain.RuleNameLength, StatusAutoFixable, domain.FixTruncateName},
		{domain.RuleLabelLength, StatusAutoFixable, domain.FixTruncateLabel},
		{domain.RuleASCII, StatusAutoFixable, domain.FixASCII},
		{domain.RuleFileNaming, StatusAutoFixable, domain.FixFileNaming},
		{domain.RuleValueLength, StatusNeedsHuman, ""},
		{domain.RuleDateFormat, StatusNeedsHuman, ""},
		{domain.RuleSubjectInDemo, StatusNeedsHuman, ""},
		{domain.RuleIntervalOrder, StatusNeedsHuman, ""},
	}
	for _, tc := range tests {
		t.Run(tc.ruleID, func(t *testing.T) {
			cls := c.Classify(domain.Finding{RuleID: tc.ruleID}, spec)
			assert.Equal(t, tc.status, cls.Status)
			assert.Equal(t, tc.fix, cls.SuggestedFix)
			assert.NotEmpty(t, cls.Reason, "every classification must carry a reason")
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	c := NewClassifier()
	f := domain.Finding{RuleID: domain.RuleCTTerm, Variable: "SEX", Values: []string{"f"}}
	spec := sexSpec()

	first := c.Classify(f, spec)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Classify(f, spec))
	}
}

func TestClassifyUnknownRuleFailsClosed(t *testing.T) {
	c := NewClassifier()

	cls := c.Classify(domain.Finding{RuleID: "ZZ9999"}, domain.MappingSpec{})

	assert.Equal(t, StatusNeedsHuman, cls.Status)
	assert.Contains(t, cls.Reason, "no classification policy")
}

func TestClassifyControlledTerm(t *testing.T) {
	c := NewClassifier()
	spec := sexSpec()

	tests := []struct {
		name   string
		values []string
		status Status
	}{
		{"pure case mismatches", []string{"f", "m"}, StatusAutoFixable},
		{"unknown term present", []string{"f", "OTHER"}, StatusNeedsHuman},
		{"exact term flagged", []string{"F"}, StatusNeedsHuman},
		{"no values", nil, StatusNeedsHuman},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := domain.Finding{RuleID: domain.RuleCTTerm, Variable: "SEX", Values: tc.values}
			cls := c.Classify(f, spec)
			assert.Equal(t, tc.status, cls.Status)
			if tc.status == StatusAutoFixable {
				assert.Equal(t, domain.FixCTCaseNormalize, cls.SuggestedFix)
			}
		})
	}

	t.Run("no codelist bound", func(t *testing.T) {
		f := domain.Finding{RuleID: domain.RuleCTTerm, Variable: "RACE", Values: []string{"white"}}
		cls := c.Classify(f, spec)
		assert.Equal(t, StatusNeedsHuman, cls.Status)
	})
}

func TestClassifyRequiredVariable(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		variable string
		status   Status
		fix      domain.FixType
	}{
		{"STUDYID", StatusAutoFixable, domain.FixAddConstant},
		{"DOMAIN", StatusAutoFixable, domain.FixSetDomainValue},
		{"USUBJID", StatusNeedsHuman, ""},
		{"AETERM", StatusNeedsHuman, ""},
	}
	for _, tc := range tests {
		t.Run(tc.variable, func(t *testing.T) {
			f := domain.Finding{RuleID: domain.RuleRequiredVariable, Variable: tc.variable}
			cls := c.Classify(f, domain.MappingSpec{})
			assert.Equal(t, tc.status, cls.Status)
			assert.Equal(t, tc.fix, cls.SuggestedFix)
		})
	}
}

func TestAutoEligibleRuleIDs(t *testing.T) {
	ids := NewClassifier().AutoEligibleRuleIDs()

	assert.Equal(t, []string{
		domain.RuleCTTerm,
		domain.RuleDomainColumn,
		domain.RuleRequiredVariable,
		domain.RuleNameLength,
		domain.RuleLabelLength,
		domain.RuleASCII,
		domain.RuleFileNaming,
	}, ids)
}

func TestOffendingValues(t *testing.T) {
	t.Run("structured values win", func(t *testing.T) {
		f := domain.Finding{Values: []string{"a", "b"}, Message: "ignored: 'c'"}
		assert.Equal(t, []string{"a", "b"}, OffendingValues(f))
	})

	t.Run("falls back to quoted message substrings", func(t *testing.T) {
		f := domain.Finding{Message: "2 value(s) in SEX are not valid CL.SEX terms: 'f', 'm'"}
		assert.Equal(t, []string{"f", "m"}, OffendingValues(f))
	})

	t.Run("nothing extractable", func(t *testing.T) {
		assert.Empty(t, OffendingValues(domain.Finding{Message: "no quotes here"}))
	})
}

func TestControlledTermViaMessageFallback(t *testing.T) {
	c := NewClassifier()
	f := domain.Finding{
		RuleID:   domain.RuleCTTerm,
		Variable: "SEX",
		Message:  "1 value(s) in SEX are not valid CL.SEX terms: 'f'",
	}

	cls := c.Classify(f, sexSpec())

	require.Equal(t, StatusAutoFixable, cls.Status)
	assert.Equal(t, domain.FixCTCaseNormalize, cls.SuggestedFix)
}
