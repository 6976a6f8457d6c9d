package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Severity grades how serious a finding is for submission readiness.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityNotice  Severity = "NOTICE"
)

// IsValid returns true if the severity is a recognized value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityNotice:
		return true
	default:
		return false
	}
}

// Category groups rules by the kind of conformance they check.
type Category string

const (
	CategoryStructure   Category = "structure"
	CategoryTerminology Category = "terminology"
	CategoryFormat      Category = "format"
	CategoryConsistency Category = "consistency"
	CategoryBusiness    Category = "business"
)

// Rule identifies one conformance rule: the static metadata an evaluator
// reports about itself.
type Rule struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
}

// Finding is one reported deviation of a dataset from a conformance rule.
// Findings are immutable once produced.
type Finding struct {
	RuleID      string   `json:"rule_id"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Domain      string   `json:"domain"`
	Variable    string   `json:"variable,omitempty"`
	Message     string   `json:"message"`

	// Values lists the offending values the rule flagged, so downstream
	// classification never has to re-parse the rendered message.
	Values []string `json:"values,omitempty"`

	AffectedCount      int    `json:"affected_count"`
	FixSuggestion      string `json:"fix_suggestion,omitempty"`
	KnownFalsePositive bool   `json:"known_false_positive"`
	CrossReference     string `json:"external_cross_reference,omitempty"`
}

// Fingerprint returns a deterministic identifier for the finding, stable
// across runs for the same rule, location and message.
func (f Finding) Fingerprint() string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		f.RuleID,
		f.Domain,
		f.Variable,
		f.Message,
		strings.Join(f.Values, ","),
		f.AffectedCount,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
