package domain

import "time"

// FixType names one deterministic remediation. The set is closed: the
// remediator refuses to start when a classifier can mark a rule auto-fixable
// without a registered fix of one of these types.
type FixType string

const (
	FixCTCaseNormalize FixType = "ct_case_normalize"
	FixSetDomainValue  FixType = "set_domain_value"
	FixAddConstant     FixType = "add_constant_column"
	FixTruncateName    FixType = "truncate_name"
	FixTruncateLabel   FixType = "truncate_label"
	FixASCII           FixType = "fix_ascii"
	FixFileNaming      FixType = "fix_file_naming"
)

// FixAction is one append-only audit record of a deterministic remediation.
// The audit trail must never lose information: every applied fix emits
// exactly the actions describing what changed.
type FixAction struct {
	RuleID        string    `json:"rule_id"`
	Domain        string    `json:"domain"`
	Variable      string    `json:"variable,omitempty"`
	FixType       FixType   `json:"fix_type"`
	BeforeValue   string    `json:"before_value"`
	AfterValue    string    `json:"after_value"`
	AffectedCount int       `json:"affected_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// IterationRecord summarizes one pass of the fix loop.
type IterationRecord struct {
	Iteration            int         `json:"iteration"`
	IssuesFound          int         `json:"issues_found"`
	AutoFixed            int         `json:"auto_fixed"`
	RemainingAutoFixable int         `json:"remaining_auto_fixable"`
	NeedsHuman           int         `json:"needs_human"`
	FixActions           []FixAction `json:"fix_actions"`
}
