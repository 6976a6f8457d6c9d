package domain

import "time"

// SeverityBreakdown counts findings per severity for one slice of a report.
type SeverityBreakdown struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Notices  int `json:"notices"`
}

func (b *SeverityBreakdown) add(sev Severity) {
	switch sev {
	case SeverityError:
		b.Errors++
	case SeverityWarning:
		b.Warnings++
	case SeverityNotice:
		b.Notices++
	}
}

// ValidationReport is a read-only statistical projection of a finding set.
// "Effective" counts exclude findings flagged as known false positives;
// those findings still appear in the totals and are reported separately.
type ValidationReport struct {
	StudyID     string    `json:"study_id"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalFindings int `json:"total_findings"`

	Totals    SeverityBreakdown `json:"totals"`
	Effective SeverityBreakdown `json:"effective"`

	FalsePositives int `json:"false_positives"`

	Domains     []string                       `json:"domains"`
	PerDomain   map[string]SeverityBreakdown   `json:"per_domain"`
	PerCategory map[Category]SeverityBreakdown `json:"per_category"`

	// PassRate is the fraction of validated domains with zero effective
	// ERROR findings. 1.0 when no domains were validated.
	PassRate float64 `json:"pass_rate"`

	// SubmissionReady is true when the effective error count is zero.
	SubmissionReady bool `json:"submission_ready"`
}

// NewValidationReport computes the statistical projection of a finding set
// over the given validated domains.
func NewValidationReport(studyID string, findings []Finding, domains []string, generatedAt time.Time) ValidationReport {
	report := ValidationReport{
		StudyID:       studyID,
		GeneratedAt:   generatedAt,
		TotalFindings: len(findings),
		Domains:       append([]string(nil), domains...),
		PerDomain:     make(map[string]SeverityBreakdown),
		PerCategory:   make(map[Category]SeverityBreakdown),
	}

	domainErrors := make(map[string]int)
	for _, f := range findings {
		report.Totals.add(f.Severity)

		perDomain := report.PerDomain[f.Domain]
		perDomain.add(f.Severity)
		report.PerDomain[f.Domain] = perDomain

		perCategory := report.PerCategory[f.Category]
		perCategory.add(f.Severity)
		report.PerCategory[f.Category] = perCategory

		if f.KnownFalsePositive {
			report.FalsePositives++
			continue
		}
		report.Effective.add(f.Severity)
		if f.Severity == SeverityError {
			domainErrors[f.Domain]++
		}
	}

	if len(domains) == 0 {
		report.PassRate = 1.0
	} else {
		passing := 0
		for _, d := range domains {
			if domainErrors[d] == 0 {
				passing++
			}
		}
		report.PassRate = float64(passing) / float64(len(domains))
	}

	report.SubmissionReady = report.Effective.Errors == 0
	return report
}
