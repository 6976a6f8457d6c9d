package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindingFingerprintDeterministic(t *testing.T) {
	f := Finding{
		RuleID:        "CT0001",
		Domain:        "DM",
		Variable:      "SEX",
		Message:       "1 value(s) in SEX are not valid CL.SEX terms: 'm'",
		Values:        []string{"m"},
		AffectedCount: 1,
	}

	assert.Equal(t, f.Fingerprint(), f.Fingerprint())
	assert.Len(t, f.Fingerprint(), 64)
}

func TestFindingFingerprintDiscriminates(t *testing.T) {
	base := Finding{RuleID: "SD0002", Domain: "DM", Variable: "USUBJID"}

	other := base
	other.Variable = "STUDYID"
	assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())

	other = base
	other.Domain = "AE"
	assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())

	other = base
	other.Values = []string{"x"}
	assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
}

func TestMappingSpecCloneIndependence(t *testing.T) {
	spec := MappingSpec{
		Domain: "DM",
		Variables: []VariableSpec{
			{Name: "SEX", Label: "Sex", Type: TypeChar, Required: true},
		},
	}

	clone := spec.Clone()
	clone.Variables[0].Label = "Changed"

	assert.Equal(t, "Sex", spec.Variables[0].Label)
}

func TestCodelistMatchTerm(t *testing.T) {
	cl := &Codelist{ID: "CL.SEX", Terms: []string{"M", "F", "U"}}

	canonical, exact, ok := cl.MatchTerm("M")
	assert.True(t, ok)
	assert.True(t, exact)
	assert.Equal(t, "M", canonical)

	canonical, exact, ok = cl.MatchTerm("f")
	assert.True(t, ok)
	assert.False(t, exact)
	assert.Equal(t, "F", canonical)

	_, _, ok = cl.MatchTerm("UNKNOWN")
	assert.False(t, ok)
}
