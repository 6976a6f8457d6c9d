package remediate

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/datawright/conform/internal/domain"
)

// defaultSubstitutions is the fixed transcoding table fix_ascii applies.
// Characters outside the table are left in place; the finding then persists
// and surfaces for human review instead of being silently dropped.
var defaultSubstitutions = map[rune]string{
	'‘':      "'",   // left single quote
	'’':      "'",   // right single quote
	'“':      `"`,   // left double quote
	'”':      `"`,   // right double quote
	'–':      "-",   // en dash
	'—':      "-",   // em dash
	'−':      "-",   // minus sign
	'\u00a0': " ",   // non-breaking space
	'…':      "...", // ellipsis
	'µ':      "u",   // micro sign
	'μ':      "u",   // greek mu
	'×':      "x",   // multiplication sign
	'°':      "deg", // degree sign
	'±':      "+/-", // plus-minus
	'≤':      "<=",  // less-than-or-equal
	'≥':      ">=",  // greater-than-or-equal
}

const valueSampleLimit = 5

// fixCTCaseNormalize replaces every value that matches a codelist term
// case-insensitively (but not exactly) with the term's canonical form.
func fixCTCaseNormalize(in FixInput) (FixOutcome, error) {
	v := in.Spec.Variable(in.Finding.Variable)
	if v == nil || v.Codelist == nil {
		return skipped(in.Dataset, in.Spec, fmt.Sprintf("no codelist bound to %s", in.Finding.Variable)), nil
	}
	idx := in.Dataset.ColumnIndex(in.Finding.Variable)
	if idx < 0 {
		return skipped(in.Dataset, in.Spec, fmt.Sprintf("column %s not present in dataset", in.Finding.Variable)), nil
	}

	column := in.Dataset.Columns[idx]
	var before, after []string
	changed := 0
	for i, value := range column.Values {
		if value == "" {
			continue
		}
		canonical, exact, ok := v.Codelist.MatchTerm(value)
		if !ok || exact {
			continue
		}
		column.Values[i] = canonical
		changed++
		before = sampleDistinct(before, value)
		after = sampleDistinct(after, canonical)
	}
	if changed == 0 {
		return unchanged(in.Dataset, in.Spec), nil
	}

	return applied(in.Dataset, in.Spec, domain.FixAction{
		RuleID:        in.Finding.RuleID,
		Domain:        in.Domain,
		Variable:      in.Finding.Variable,
		FixType:       domain.FixCTCaseNormalize,
		BeforeValue:   strings.Join(before, ", "),
		AfterValue:    strings.Join(after, ", "),
		AffectedCount: changed,
		Timestamp:     in.Now,
	}), nil
}

// fixSetDomainValue creates the domain-identifier column filled with the
// domain code, or overwrites every row that disagrees with it.
func fixSetDomainValue(in FixInput) (FixOutcome, error) {
	return setDomainColumn(in)
}

func setDomainColumn(in FixInput) (FixOutcome, error) {
	ds := in.Dataset
	idx := ds.ColumnIndex(domain.DomainVariable)
	if idx < 0 {
		rows := ds.RowCount()
		values := make([]string, rows)
		for i := range values {
			values[i] = in.Domain
		}
		ds.SetColumn(domain.DomainVariable, values)
		return applied(ds, in.Spec, domain.FixAction{
			RuleID:        in.Finding.RuleID,
			Domain:        in.Domain,
			Variable:      domain.DomainVariable,
			FixType:       domain.FixSetDomainValue,
			BeforeValue:   "",
			AfterValue:    in.Domain,
			AffectedCount: rows,
			Timestamp:     in.Now,
		}), nil
	}

	column := ds.Columns[idx]
	var wrong []string
	changed := 0
	for i, v := range column.Values {
		if v == in.Domain {
			continue
		}
		wrong = sampleDistinct(wrong, v)
		column.Values[i] = in.Domain
		changed++
	}
	if changed == 0 {
		return unchanged(ds, in.Spec), nil
	}
	return applied(ds, in.Spec, domain.FixAction{
		RuleID:        in.Finding.RuleID,
		Domain:        in.Domain,
		Variable:      domain.DomainVariable,
		FixType:       domain.FixSetDomainValue,
		BeforeValue:   strings.Join(wrong, ", "),
		AfterValue:    in.Domain,
		AffectedCount: changed,
		Timestamp:     in.Now,
	}), nil
}

// fixMissingVariable adds a missing derivable column: the domain code for
// DOMAIN, or a configured constant for anything else. Missing constants are
// a precondition failure, not an error.
func fixMissingVariable(in FixInput) (FixOutcome, error) {
	name := in.Finding.Variable
	if in.Dataset.HasColumn(name) {
		return unchanged(in.Dataset, in.Spec), nil
	}
	if name == domain.DomainVariable {
		return setDomainColumn(in)
	}

	constant, ok := in.Config.constantFor(name)
	if !ok {
		return skipped(in.Dataset, in.Spec, fmt.Sprintf("no configured constant for %s", name)), nil
	}

	ds := in.Dataset
	rows := ds.RowCount()
	values := make([]string, rows)
	for i := range values {
		values[i] = constant
	}
	ds.SetColumn(name, values)
	return applied(ds, in.Spec, domain.FixAction{
		RuleID:        in.Finding.RuleID,
		Domain:        in.Domain,
		Variable:      name,
		FixType:       domain.FixAddConstant,
		BeforeValue:   "",
		AfterValue:    constant,
		AffectedCount: rows,
		Timestamp:     in.Now,
	}), nil
}

// fixTruncateName renames an over-long column to its length-limited prefix,
// deterministically appending a digit on collision. Running out of digits is
// a precondition failure.
func fixTruncateName(in FixInput) (FixOutcome, error) {
	name := in.Finding.Variable
	if len(name) <= domain.MaxNameLength || !in.Dataset.HasColumn(name) {
		return unchanged(in.Dataset, in.Spec), nil
	}

	candidate := truncateBytes(name, domain.MaxNameLength)
	if in.Dataset.HasColumn(candidate) {
		found := false
		for digit := '1'; digit <= '9'; digit++ {
			alt := truncateBytes(name, domain.MaxNameLength-1) + string(digit)
			if !in.Dataset.HasColumn(alt) {
				candidate = alt
				found = true
				break
			}
		}
		if !found {
			return skipped(in.Dataset, in.Spec, fmt.Sprintf("no collision-free truncation for %s", name)), nil
		}
	}

	ds := in.Dataset
	spec := in.Spec
	ds.RenameColumn(name, candidate)
	if v := spec.Variable(name); v != nil {
		v.Name = candidate
	}
	return applied(ds, spec, domain.FixAction{
		RuleID:      in.Finding.RuleID,
		Domain:      in.Domain,
		Variable:    name,
		FixType:     domain.FixTruncateName,
		BeforeValue: name,
		AfterValue:  candidate,
		Timestamp:   in.Now,
	}), nil
}

// fixTruncateLabel truncates an over-long label in the spec only; dataset
// rows are never touched.
func fixTruncateLabel(in FixInput) (FixOutcome, error) {
	spec := in.Spec
	v := spec.Variable(in.Finding.Variable)
	if v == nil || len(v.Label) <= domain.MaxLabelLength {
		return unchanged(in.Dataset, spec), nil
	}

	before := v.Label
	v.Label = truncateBytes(v.Label, domain.MaxLabelLength)
	return applied(in.Dataset, spec, domain.FixAction{
		RuleID:      in.Finding.RuleID,
		Domain:      in.Domain,
		Variable:    in.Finding.Variable,
		FixType:     domain.FixTruncateLabel,
		BeforeValue: before,
		AfterValue:  v.Label,
		Timestamp:   in.Now,
	}), nil
}

// fixASCII applies the substitution table to the flagged column. Values
// containing only unmapped characters are left alone and keep surfacing.
func fixASCII(in FixInput) (FixOutcome, error) {
	idx := in.Dataset.ColumnIndex(in.Finding.Variable)
	if idx < 0 {
		return skipped(in.Dataset, in.Spec, fmt.Sprintf("column %s not present in dataset", in.Finding.Variable)), nil
	}

	table := in.Config.substitutions()
	column := in.Dataset.Columns[idx]
	var before, after []string
	changed := 0
	for i, value := range column.Values {
		transcoded := transcode(value, table)
		if transcoded == value {
			continue
		}
		before = sampleDistinct(before, value)
		after = sampleDistinct(after, transcoded)
		column.Values[i] = transcoded
		changed++
	}
	if changed == 0 {
		return unchanged(in.Dataset, in.Spec), nil
	}

	return applied(in.Dataset, in.Spec, domain.FixAction{
		RuleID:        in.Finding.RuleID,
		Domain:        in.Domain,
		Variable:      in.Finding.Variable,
		FixType:       domain.FixASCII,
		BeforeValue:   strings.Join(before, ", "),
		AfterValue:    strings.Join(after, ", "),
		AffectedCount: changed,
		Timestamp:     in.Now,
	}), nil
}

// fixFileNaming records the canonical output file name. Metadata only: no
// dataset rows change.
func fixFileNaming(in FixInput) (FixOutcome, error) {
	ds := in.Dataset
	canonical := domain.CanonicalFileName(in.Domain)
	if ds.CanonicalFile == canonical {
		return unchanged(ds, in.Spec), nil
	}

	before := ""
	if ds.Source != "" {
		before = filepath.Base(ds.Source)
	}
	ds.CanonicalFile = canonical
	return applied(ds, in.Spec, domain.FixAction{
		RuleID:      in.Finding.RuleID,
		Domain:      in.Domain,
		FixType:     domain.FixFileNaming,
		BeforeValue: before,
		AfterValue:  canonical,
		Timestamp:   in.Now,
	}), nil
}

// truncateBytes cuts s to at most max bytes without splitting a UTF-8 rune.
// The byte limit is the transport contract; backing off to a rune boundary
// only ever shortens the result.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func transcode(s string, table map[rune]string) string {
	var b strings.Builder
	for _, r := range s {
		if sub, ok := table[r]; ok {
			b.WriteString(sub)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sampleDistinct(values []string, v string) []string {
	if len(values) >= valueSampleLimit {
		return values
	}
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
