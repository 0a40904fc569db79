package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/matrixor/tsg-officer/rules"
	"github.com/matrixor/tsg-officer/state"
)

func TestMockClassify(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantLabel string
		wantType  string
	}{
		{
			name:      "internal builder",
			text:      "We use an internal LLM for code review.",
			wantLabel: "Internal AI Builder",
			wantType:  "internal_ai_builder",
		},
		{
			name:      "external consumer",
			text:      "We call the OpenAI API to summarize tickets.",
			wantLabel: "Consumer of External AI",
			wantType:  "external_ai_consumer",
		},
		{
			name:      "internal consumer",
			text:      "Our team uses the company chatbot for HR questions.",
			wantLabel: "Consumer of Internal AI",
			wantType:  "internal_ai_consumer",
		},
		{
			name:      "building permit",
			text:      "Requesting a building permit for APN 123-456.",
			wantLabel: "building_permit",
			wantType:  "building_permit",
		},
		{
			name:      "general fallback",
			text:      "We want to digitize our paper archive.",
			wantLabel: "tsg_general",
			wantType:  "tsg_general",
		},
	}

	m := NewMock()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got.ApplicationType != tt.wantType {
				t.Errorf("ApplicationType = %q, want %q", got.ApplicationType, tt.wantType)
			}
			if len(got.Labels) != 1 || got.Labels[0] != tt.wantLabel {
				t.Errorf("Labels = %v, want [%s]", got.Labels, tt.wantLabel)
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Errorf("Confidence = %f out of range", got.Confidence)
			}
		})
	}
}

func TestMockEvaluateChecklist(t *testing.T) {
	ruleSet := []rules.Rule{
		{RuleID: "r-pass", Title: "Owner identified", Severity: state.SeverityBlocker, Keywords: []string{"owner"}},
		{RuleID: "r-unknown", Title: "Inventory registered", Severity: state.SeverityBlocker, Keywords: []string{"inventory"}, Question: "Is the model registered?"},
		{RuleID: "r-warn", Title: "Retention documented", Severity: state.SeverityWarn, Keywords: []string{"retention"}},
		{RuleID: "r-info", Title: "Nice to have", Severity: state.SeverityInfo, Keywords: []string{"bonus"}},
	}

	m := NewMock()
	report, err := m.EvaluateChecklist(context.Background(), EvaluateRequest{
		CaseID:       "case-1",
		Categories:   []string{"Internal AI Builder"},
		Rules:        ruleSet,
		EvidenceText: "The accountable owner is Alex.",
	})
	if err != nil {
		t.Fatalf("EvaluateChecklist: %v", err)
	}

	if len(report.Checklist) != 4 {
		t.Fatalf("checklist size = %d, want 4", len(report.Checklist))
	}

	byID := make(map[string]state.ChecklistItem)
	for _, item := range report.Checklist {
		byID[item.RuleID] = item
	}

	if byID["r-pass"].Status != state.StatusPass {
		t.Errorf("r-pass status = %v, want PASS", byID["r-pass"].Status)
	}
	if byID["r-unknown"].Status != state.StatusUnknown {
		t.Errorf("r-unknown status = %v, want UNKNOWN", byID["r-unknown"].Status)
	}
	if byID["r-info"].Status != state.StatusNA {
		t.Errorf("r-info status = %v, want NA", byID["r-info"].Status)
	}

	if report.OverallRecommendation != state.DecisionNeedInfo {
		t.Errorf("overall = %v, want NEED_INFO", report.OverallRecommendation)
	}

	// Unresolved rules ask their configured question, or a generated one.
	if len(report.FollowupQuestions) != 2 {
		t.Fatalf("followups = %v, want 2", report.FollowupQuestions)
	}
	if report.FollowupQuestions[0] != "Is the model registered?" {
		t.Errorf("followup[0] = %q", report.FollowupQuestions[0])
	}
	if !strings.Contains(report.FollowupQuestions[1], "Retention documented") {
		t.Errorf("followup[1] = %q", report.FollowupQuestions[1])
	}

	// Unknown blockers become blocking issues.
	if len(report.BlockingIssues) != 1 || report.BlockingIssues[0] != "Inventory registered" {
		t.Errorf("blocking issues = %v", report.BlockingIssues)
	}
}

func TestMockEvaluateChecklistAllPass(t *testing.T) {
	m := NewMock()
	report, err := m.EvaluateChecklist(context.Background(), EvaluateRequest{
		CaseID:       "case-2",
		Rules:        []rules.Rule{{RuleID: "r1", Title: "Owner", Severity: state.SeverityBlocker, Keywords: []string{"owner"}}},
		EvidenceText: "The owner is Sam.",
	})
	if err != nil {
		t.Fatalf("EvaluateChecklist: %v", err)
	}
	if report.OverallRecommendation != state.DecisionApprove {
		t.Errorf("overall = %v, want APPROVE", report.OverallRecommendation)
	}
	if len(report.FollowupQuestions) != 0 {
		t.Errorf("followups = %v, want none", report.FollowupQuestions)
	}
}

func TestMockSynthesizeFlowchart(t *testing.T) {
	m := NewMock()
	fc, err := m.SynthesizeFlowchart(context.Background(), "1. Receive request\n2. Check data\n3. Approve")
	if err != nil {
		t.Fatalf("SynthesizeFlowchart: %v", err)
	}
	if !strings.HasPrefix(fc.DiagramSource, "flowchart TD") {
		t.Errorf("diagram does not start with flowchart TD:\n%s", fc.DiagramSource)
	}
	if !strings.Contains(fc.DiagramSource, "A --> B") || !strings.Contains(fc.DiagramSource, "B --> C") {
		t.Errorf("diagram missing sequential edges:\n%s", fc.DiagramSource)
	}
	if !strings.Contains(fc.DiagramSource, "Receive request") {
		t.Errorf("diagram missing step text:\n%s", fc.DiagramSource)
	}
}

func TestMockExplainMentionsQuestion(t *testing.T) {
	m := NewMock()
	got, err := m.Explain(context.Background(), "What is your data classification?", "")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if !strings.Contains(got, "What is your data classification?") {
		t.Errorf("explanation does not restate the question: %q", got)
	}
}

func TestNodeID(t *testing.T) {
	tests := []struct {
		i    int
		want string
	}{
		{0, "A"}, {1, "B"}, {25, "Z"}, {26, "AA"}, {27, "AB"},
	}
	for _, tt := range tests {
		if got := nodeID(tt.i); got != tt.want {
			t.Errorf("nodeID(%d) = %q, want %q", tt.i, got, tt.want)
		}
	}
}
