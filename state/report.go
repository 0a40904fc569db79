package state

import "time"

// ChecklistStatus is the verdict of one checklist item.
type ChecklistStatus string

// Checklist item statuses.
const (
	StatusPass    ChecklistStatus = "PASS"
	StatusFail    ChecklistStatus = "FAIL"
	StatusNA      ChecklistStatus = "NA"
	StatusUnknown ChecklistStatus = "UNKNOWN"
)

// ChecklistSeverity ranks how much an item matters to the overall outcome.
type ChecklistSeverity string

// Severities, ordered BLOCKER > WARN > INFO.
const (
	SeverityBlocker ChecklistSeverity = "BLOCKER"
	SeverityWarn    ChecklistSeverity = "WARN"
	SeverityInfo    ChecklistSeverity = "INFO"
)

// SeverityRank returns a sortable rank, lower is more severe.
func SeverityRank(s ChecklistSeverity) int {
	switch s {
	case SeverityBlocker:
		return 0
	case SeverityWarn:
		return 1
	default:
		return 2
	}
}

// Evidence is one excerpt supporting a checklist verdict.
type Evidence struct {
	DocID   string `json:"doc_id,omitempty"`
	Source  string `json:"source,omitempty"`
	Page    int    `json:"page,omitempty"`
	Excerpt string `json:"excerpt"`
}

// ChecklistItem is one rule verdict inside a report.
type ChecklistItem struct {
	RuleID      string            `json:"rule_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      ChecklistStatus   `json:"status"`
	Severity    ChecklistSeverity `json:"severity"`
	Confidence  float64           `json:"confidence"`
	Evidence    []Evidence        `json:"evidence,omitempty"`
	Missing     []string          `json:"missing,omitempty"`
	Rationale   string            `json:"rationale,omitempty"`
}

// ChecklistReport is the structured verdict produced by the language-model
// service and normalized by the engine. Regenerated (overwritten, not merged)
// on each checklist pass. FollowupQuestions is order-significant; it drives
// the follow-up node's question index.
type ChecklistReport struct {
	SchemaVersion         string          `json:"schema_version"`
	CaseID                string          `json:"case_id"`
	ApplicationType       string          `json:"application_type,omitempty"`
	OverallRecommendation Decision        `json:"overall_recommendation"`
	Summary               string          `json:"summary,omitempty"`
	Checklist             []ChecklistItem `json:"checklist"`
	BlockingIssues        []string        `json:"blocking_issues,omitempty"`
	FollowupQuestions     []string        `json:"followup_questions,omitempty"`
	GeneratedAt           time.Time       `json:"generated_at"`
}

// ReportSchemaVersion is stamped on reports generated by this build.
const ReportSchemaVersion = "1.0"

// Clone returns a deep copy of the report.
func (r *ChecklistReport) Clone() *ChecklistReport {
	out := *r
	out.Checklist = make([]ChecklistItem, len(r.Checklist))
	for i, item := range r.Checklist {
		item.Evidence = append([]Evidence(nil), item.Evidence...)
		item.Missing = append([]string(nil), item.Missing...)
		out.Checklist[i] = item
	}
	out.BlockingIssues = append([]string(nil), r.BlockingIssues...)
	out.FollowupQuestions = append([]string(nil), r.FollowupQuestions...)
	return &out
}

// CountByStatus tallies checklist items by status.
func (r *ChecklistReport) CountByStatus() map[ChecklistStatus]int {
	counts := make(map[ChecklistStatus]int, 4)
	for _, item := range r.Checklist {
		counts[item.Status]++
	}
	return counts
}
