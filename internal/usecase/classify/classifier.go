// Package classify decides whether a finding can be remediated by machine or
// needs human judgment. Classification is a pure function of the finding and
// the mapping spec: the same inputs always produce the same result, and the
// result is never persisted as independent state.
package classify

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/datawright/conform/internal/domain"
)

// Status is the two-valued outcome of classification.
type Status string

const (
	StatusAutoFixable Status = "AUTO_FIXABLE"
	StatusNeedsHuman  Status = "NEEDS_HUMAN"
)

// Classification explains whether and how a finding can be fixed.
type Classification struct {
	Status       Status         `json:"status"`
	Reason       string         `json:"reason"`
	SuggestedFix domain.FixType `json:"suggested_fix,omitempty"`
}

// PolicyFunc decides the classification of one finding against the spec.
type PolicyFunc func(f domain.Finding, spec domain.MappingSpec) Classification

// policy pairs the decision function with whether it can ever return
// AUTO_FIXABLE; the remediator's startup consistency check uses the flag.
type policy struct {
	classify     PolicyFunc
	autoEligible bool
}

// Classifier maps findings to classifications via an explicit per-rule
// policy table. Unknown rule ids fail closed to NEEDS_HUMAN.
type Classifier struct {
	policies map[string]policy
}

// derivableVariables is the fixed allow-list of missing required variables
// whose values can be derived deterministically from run configuration.
var derivableVariables = map[string]domain.FixType{
	domain.StudyVariable:  domain.FixAddConstant,
	domain.DomainVariable: domain.FixSetDomainValue,
}

// NewClassifier builds a classifier with the default policy table.
func NewClassifier() *Classifier {
	c := &Classifier{policies: make(map[string]policy)}

	c.register(domain.RuleCTTerm, true, classifyControlledTerm)
	c.register(domain.RuleDomainColumn, true, always(domain.FixSetDomainValue, "domain-identifier column is derivable from the domain code"))
	c.register(domain.RuleRequiredVariable, true, classifyRequiredVariable)
	c.register(domain.RuleNameLength, true, always(domain.FixTruncateName, "variable names truncate deterministically"))
	c.register(domain.RuleLabelLength, true, always(domain.FixTruncateLabel, "labels truncate deterministically in the spec"))
	c.register(domain.RuleValueLength, false, never("truncating data values loses information"))
	c.register(domain.RuleDateFormat, false, never("date reformatting cannot be derived without raw source context"))
	c.register(domain.RuleASCII, true, always(domain.FixASCII, "fixed substitution table covers non-portable characters"))
	c.register(domain.RuleFileNaming, true, always(domain.FixFileNaming, "canonical file name is derivable from the domain code"))
	c.register(domain.RuleSubjectInDemo, false, never("cross-domain consistency needs human review"))
	c.register(domain.RuleIntervalOrder, false, never("business-rule violations need human review"))

	return c
}

func (c *Classifier) register(ruleID string, autoEligible bool, fn PolicyFunc) {
	c.policies[ruleID] = policy{classify: fn, autoEligible: autoEligible}
}

// Classify returns the classification for one finding. Findings produced by
// rules outside the policy table are NEEDS_HUMAN: when the engine does not
// understand an issue, it must not try to fix it.
func (c *Classifier) Classify(f domain.Finding, spec domain.MappingSpec) Classification {
	p, ok := c.policies[f.RuleID]
	if !ok {
		return Classification{
			Status: StatusNeedsHuman,
			Reason: fmt.Sprintf("no classification policy for rule %s", f.RuleID),
		}
	}
	return p.classify(f, spec)
}

// AutoEligibleRuleIDs returns every rule id whose policy can return
// AUTO_FIXABLE, sorted. The remediator checks this list against its fixer
// dispatch table before any loop starts.
func (c *Classifier) AutoEligibleRuleIDs() []string {
	var ids []string
	for id, p := range c.policies {
		if p.autoEligible {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func always(fix domain.FixType, reason string) PolicyFunc {
	return func(domain.Finding, domain.MappingSpec) Classification {
		return Classification{Status: StatusAutoFixable, Reason: reason, SuggestedFix: fix}
	}
}

func never(reason string) PolicyFunc {
	return func(domain.Finding, domain.MappingSpec) Classification {
		return Classification{Status: StatusNeedsHuman, Reason: reason}
	}
}

// classifyControlledTerm is auto-fixable only when every offending value
// matches a valid term case-insensitively but not exactly. Anything the
// codelist cannot account for needs a human.
func classifyControlledTerm(f domain.Finding, spec domain.MappingSpec) Classification {
	values := OffendingValues(f)
	if len(values) == 0 {
		return Classification{
			Status: StatusNeedsHuman,
			Reason: "offending values could not be determined from the finding",
		}
	}

	v := spec.Variable(f.Variable)
	if v == nil || v.Codelist == nil {
		return Classification{
			Status: StatusNeedsHuman,
			Reason: fmt.Sprintf("no codelist bound to variable %s in the spec", f.Variable),
		}
	}

	for _, value := range values {
		canonical, exact, ok := v.Codelist.MatchTerm(value)
		if !ok {
			return Classification{
				Status: StatusNeedsHuman,
				Reason: fmt.Sprintf("value '%s' has no case-insensitive match in codelist %s", value, v.Codelist.ID),
			}
		}
		if exact || canonical == value {
			// An exact term reported as offending means the finding and the
			// codelist disagree; do not touch the data.
			return Classification{
				Status: StatusNeedsHuman,
				Reason: fmt.Sprintf("value '%s' already matches codelist %s exactly", value, v.Codelist.ID),
			}
		}
	}

	return Classification{
		Status:       StatusAutoFixable,
		Reason:       fmt.Sprintf("all offending values case-match terms in codelist %s", v.Codelist.ID),
		SuggestedFix: domain.FixCTCaseNormalize,
	}
}

// classifyRequiredVariable allows automation only for identifiers on the
// fixed derivable allow-list.
func classifyRequiredVariable(f domain.Finding, _ domain.MappingSpec) Classification {
	fix, ok := derivableVariables[f.Variable]
	if !ok {
		return Classification{
			Status: StatusNeedsHuman,
			Reason: fmt.Sprintf("variable %s cannot be derived deterministically", f.Variable),
		}
	}
	return Classification{
		Status:       StatusAutoFixable,
		Reason:       fmt.Sprintf("variable %s is derivable from run configuration", f.Variable),
		SuggestedFix: fix,
	}
}

// quotedValuePattern extracts single-quoted substrings from rendered
// messages. Fallback only: evaluators in this module populate
// Finding.Values directly.
var quotedValuePattern = regexp.MustCompile(`'([^']*)'`)

// OffendingValues returns the structured offending values of a finding,
// falling back to quoted substrings of the message for findings produced by
// evaluators that predate the structured field.
func OffendingValues(f domain.Finding) []string {
	if len(f.Values) > 0 {
		return f.Values
	}
	matches := quotedValuePattern.FindAllStringSubmatch(f.Message, -1)
	var values []string
	for _, m := range matches {
		if m[1] != "" {
			values = append(values, m[1])
		}
	}
	return values
}
