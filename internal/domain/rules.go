package domain

import "strings"

// Rule identifiers for the default conformance rule set. The classifier
// policy table and the remediation dispatch table are both keyed by these.
const (
	RuleDomainColumn     = "SD0001" // domain-identifier column present and correct
	RuleRequiredVariable = "SD0002" // required variable present in dataset
	RuleNameLength       = "SD0003" // variable name within length limit
	RuleLabelLength      = "SD0004" // variable label within length limit
	RuleValueLength      = "SD0005" // data value within length limit
	RuleDateFormat       = "SD0006" // date values in ISO 8601
	RuleASCII            = "SD0007" // text restricted to printable ASCII
	RuleFileNaming       = "SD0008" // dataset file named after its domain
	RuleCTTerm           = "CT0001" // codelist-bound values are valid terms
	RuleSubjectInDemo    = "XD0001" // subjects exist in the demographics domain
	RuleIntervalOrder    = "BR0001" // interval start date not after end date
)

// Transport-format limits for submission datasets.
const (
	MaxNameLength  = 8
	MaxLabelLength = 40
	MaxValueLength = 200
)

// CanonicalFileName returns the canonical transport file name for a domain.
func CanonicalFileName(domainCode string) string {
	return strings.ToLower(domainCode) + ".xpt"
}

// DomainVariable is the domain-identifier column every dataset must carry.
const DomainVariable = "DOMAIN"

// StudyVariable is the study-identifier column, derivable from configuration.
const StudyVariable = "STUDYID"

// SubjectVariable is the unique subject identifier used by cross-domain rules.
const SubjectVariable = "USUBJID"
