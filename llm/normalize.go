package llm

import (
	"strings"
	"time"

	"github.com/matrixor/tsg-officer/state"
)

// normalizeReport repairs a model-produced checklist report in place so the
// engine never sees out-of-range confidences, unknown enum values, or a
// missing case stamp. Rule severity from the rule library wins over whatever
// the model emitted.
func normalizeReport(report *state.ChecklistReport, req EvaluateRequest) {
	if report.SchemaVersion == "" {
		report.SchemaVersion = state.ReportSchemaVersion
	}
	report.CaseID = req.CaseID
	if report.ApplicationType == "" {
		report.ApplicationType = req.ApplicationType
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	if _, ok := state.NormalizeDecision(string(report.OverallRecommendation)); !ok {
		report.OverallRecommendation = state.DecisionNeedInfo
	} else {
		normalized, _ := state.NormalizeDecision(string(report.OverallRecommendation))
		report.OverallRecommendation = normalized
	}

	severityByRule := make(map[string]state.ChecklistSeverity, len(req.Rules))
	for _, r := range req.Rules {
		severityByRule[r.RuleID] = r.Severity
	}

	for i := range report.Checklist {
		item := &report.Checklist[i]
		item.Confidence = clamp01(item.Confidence)
		item.Status = normalizeStatus(item.Status)
		if sev, ok := severityByRule[item.RuleID]; ok && sev != "" {
			item.Severity = sev
		} else {
			item.Severity = normalizeSeverity(item.Severity)
		}
	}
}

// normalizeStatus maps loose status text onto the closed status enum,
// defaulting to UNKNOWN.
func normalizeStatus(s state.ChecklistStatus) state.ChecklistStatus {
	switch state.ChecklistStatus(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case state.StatusPass:
		return state.StatusPass
	case state.StatusFail:
		return state.StatusFail
	case state.StatusNA:
		return state.StatusNA
	default:
		return state.StatusUnknown
	}
}

// normalizeSeverity maps loose severity text onto the closed severity enum,
// defaulting to INFO.
func normalizeSeverity(s state.ChecklistSeverity) state.ChecklistSeverity {
	switch state.ChecklistSeverity(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case state.SeverityBlocker:
		return state.SeverityBlocker
	case state.SeverityWarn:
		return state.SeverityWarn
	default:
		return state.SeverityInfo
	}
}
