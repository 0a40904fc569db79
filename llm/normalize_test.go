package llm

import (
	"testing"

	"github.com/matrixor/tsg-officer/rules"
	"github.com/matrixor/tsg-officer/state"
)

func TestNormalizeReport(t *testing.T) {
	report := &state.ChecklistReport{
		OverallRecommendation: "approved",
		Checklist: []state.ChecklistItem{
			{RuleID: "r1", Status: "pass", Severity: "warn", Confidence: 1.7},
			{RuleID: "r2", Status: "maybe", Severity: "critical", Confidence: -0.2},
			{RuleID: "r3", Status: "FAIL", Severity: "", Confidence: 0.5},
		},
	}
	req := EvaluateRequest{
		CaseID:          "case-9",
		ApplicationType: "internal_ai_builder",
		Rules: []rules.Rule{
			{RuleID: "r1", Severity: state.SeverityBlocker},
		},
	}

	normalizeReport(report, req)

	if report.CaseID != "case-9" {
		t.Errorf("CaseID = %q", report.CaseID)
	}
	if report.ApplicationType != "internal_ai_builder" {
		t.Errorf("ApplicationType = %q", report.ApplicationType)
	}
	if report.SchemaVersion != state.ReportSchemaVersion {
		t.Errorf("SchemaVersion = %q", report.SchemaVersion)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not stamped")
	}
	if report.OverallRecommendation != state.DecisionApprove {
		t.Errorf("overall = %v, want APPROVE", report.OverallRecommendation)
	}

	// Confidence clamped to [0,1].
	if report.Checklist[0].Confidence != 1 || report.Checklist[1].Confidence != 0 {
		t.Errorf("confidences = %f, %f", report.Checklist[0].Confidence, report.Checklist[1].Confidence)
	}

	// Rule library severity wins over model output.
	if report.Checklist[0].Severity != state.SeverityBlocker {
		t.Errorf("r1 severity = %v, want BLOCKER from rule library", report.Checklist[0].Severity)
	}

	// Loose status and severity text get normalized with safe defaults.
	if report.Checklist[0].Status != state.StatusPass {
		t.Errorf("r1 status = %v, want PASS", report.Checklist[0].Status)
	}
	if report.Checklist[1].Status != state.StatusUnknown {
		t.Errorf("r2 status = %v, want UNKNOWN default", report.Checklist[1].Status)
	}
	if report.Checklist[1].Severity != state.SeverityInfo {
		t.Errorf("r2 severity = %v, want INFO default", report.Checklist[1].Severity)
	}
	if report.Checklist[2].Status != state.StatusFail {
		t.Errorf("r3 status = %v, want FAIL", report.Checklist[2].Status)
	}

	// Garbage overall recommendation defaults to NEED_INFO.
	report2 := &state.ChecklistReport{OverallRecommendation: "ship it"}
	normalizeReport(report2, req)
	if report2.OverallRecommendation != state.DecisionNeedInfo {
		t.Errorf("overall = %v, want NEED_INFO default", report2.OverallRecommendation)
	}
}
