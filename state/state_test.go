package state

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNormalizeDecision(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Decision
		ok    bool
	}{
		{"exact enum", "APPROVE", DecisionApprove, true},
		{"lowercase", "approve", DecisionApprove, true},
		{"past tense", "Approved", DecisionApprove, true},
		{"hyphenated conditional", "conditional-approve", DecisionConditionalApprove, true},
		{"short conditional", "cond", DecisionConditionalApprove, true},
		{"reject", "rejected", DecisionReject, true},
		{"need more info phrase", "need more info", DecisionNeedInfo, true},
		{"whitespace", "  REJECT  ", DecisionReject, true},
		{"unrecognized defaults to need info", "maybe later", DecisionNeedInfo, false},
		{"empty defaults to need info", "", DecisionNeedInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeDecision(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("NormalizeDecision(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRecomputeMissingFields(t *testing.T) {
	s := NewCaseState("case-1")
	s.RequiredFields = []string{"submission_text", "applicant_name", "apn"}
	s.IntakeFields["applicant_name"] = "Dana"
	s.RecomputeMissingFields()

	want := []string{"submission_text", "apn"}
	if !reflect.DeepEqual(s.MissingFields, want) {
		t.Errorf("MissingFields = %v, want %v", s.MissingFields, want)
	}

	// Whitespace-only values count as missing.
	s.IntakeFields["apn"] = "   "
	s.RecomputeMissingFields()
	if !reflect.DeepEqual(s.MissingFields, want) {
		t.Errorf("MissingFields = %v, want %v", s.MissingFields, want)
	}
}

func TestLastUserText(t *testing.T) {
	s := NewCaseState("case-1")
	if got := s.LastUserText(); got != "" {
		t.Errorf("LastUserText on empty transcript = %q, want empty", got)
	}
	s.AppendMessage(RoleAssistant, "welcome")
	s.AppendMessage(RoleUser, "first")
	s.AppendMessage(RoleAssistant, "next question")
	s.AppendMessage(RoleReviewer, "approve")
	if got := s.LastUserText(); got != "approve" {
		t.Errorf("LastUserText = %q, want %q", got, "approve")
	}
}

func TestHasDiagramEvidence(t *testing.T) {
	s := NewCaseState("case-1")
	if s.HasDiagramEvidence() {
		t.Error("fresh case should have no diagram evidence")
	}
	s.FlowchartConfirmed = true
	if s.HasDiagramEvidence() {
		t.Error("confirmation without source should not count")
	}
	s.FlowchartSource = "flowchart TD\n  A --> B"
	if !s.HasDiagramEvidence() {
		t.Error("confirmed flowchart should count")
	}

	s2 := NewCaseState("case-2")
	s2.DiagramUpload = &DiagramFile{Name: "process.png", SizeBytes: 1024}
	if !s2.HasDiagramEvidence() {
		t.Error("uploaded file reference should count")
	}
}

func TestConcatDocumentsJoinsSubmissionAndDocuments(t *testing.T) {
	s := NewCaseState("case-1")
	if got := s.ConcatDocuments(); got != "" {
		t.Errorf("ConcatDocuments on empty case = %q, want empty", got)
	}

	s.IntakeFields["submission_text"] = "We deploy an internal model."
	id := s.AttachDocument("policy.md", "/tmp/policy.md", "Access is restricted to staff.")
	s.AttachDocument("blank.md", "", "   ")

	if id == "" || s.Documents[0].DocID != id {
		t.Errorf("AttachDocument id = %q, documents = %+v", id, s.Documents)
	}

	got := s.ConcatDocuments()
	if !strings.Contains(got, "We deploy an internal model.") {
		t.Errorf("evidence missing submission text: %q", got)
	}
	if !strings.Contains(got, "[policy.md]\nAccess is restricted to staff.") {
		t.Errorf("evidence missing document block: %q", got)
	}
	if strings.Contains(got, "blank.md") {
		t.Errorf("blank document should be skipped: %q", got)
	}
}

func TestConcatDocumentsCapped(t *testing.T) {
	s := NewCaseState("case-1")
	s.AttachDocument("big.md", "", strings.Repeat("x", maxEvidenceChars+500))
	if got := len(s.ConcatDocuments()); got > maxEvidenceChars {
		t.Errorf("evidence length = %d, want <= %d", got, maxEvidenceChars)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := fullyPopulatedState()
	c := s.Clone()

	if !reflect.DeepEqual(s, c) {
		t.Fatal("clone differs from source")
	}

	c.IntakeFields["submission_text"] = "changed"
	c.FollowupAnswers["q1"] = "changed"
	c.ClarificationCounts["followup::q1"] = 99
	c.Transcript[0].Content = "changed"
	c.ChecklistReport.Checklist[0].Status = StatusFail
	c.ChecklistReport.FollowupQuestions[0] = "changed"
	c.DiagramUpload.Name = "changed"
	c.PendingDiagramFollowup.Index = 42
	c.AuditLog[0].Event = "changed"

	if s.IntakeFields["submission_text"] == "changed" ||
		s.FollowupAnswers["q1"] == "changed" ||
		s.ClarificationCounts["followup::q1"] == 99 ||
		s.Transcript[0].Content == "changed" ||
		s.ChecklistReport.Checklist[0].Status == StatusFail ||
		s.ChecklistReport.FollowupQuestions[0] == "changed" ||
		s.DiagramUpload.Name == "changed" ||
		s.PendingDiagramFollowup.Index == 42 ||
		s.AuditLog[0].Event == "changed" {
		t.Error("mutating the clone leaked into the source")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	s := fullyPopulatedState()

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back CaseState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(s, &back) {
		t.Error("round trip changed the case state")
	}
}

// fullyPopulatedState builds a state with every optional field set.
func fullyPopulatedState() *CaseState {
	s := NewCaseState("case-full")
	s.Phase = PhaseReview
	s.AppendMessage(RoleUser, "hello")
	s.AppendMessage(RoleAssistant, "hi")
	s.ApplicationType = "internal_ai_builder"
	s.CategoryLabels = []string{"Internal AI Builder", "Consumer of External AI"}
	s.IntakeFields["submission_text"] = "We build an internal LLM."
	s.RequiredFields = []string{"submission_text"}
	s.Documents = []Document{{DocID: "d1", Name: "arch.md", Text: "design doc"}}
	s.ChecklistReport = &ChecklistReport{
		SchemaVersion:         ReportSchemaVersion,
		CaseID:                s.CaseID,
		ApplicationType:       s.ApplicationType,
		OverallRecommendation: DecisionNeedInfo,
		Summary:               "one unknown",
		Checklist: []ChecklistItem{{
			RuleID:     "r1",
			Title:      "Model inventory",
			Status:     StatusUnknown,
			Severity:   SeverityBlocker,
			Confidence: 0.3,
			Evidence:   []Evidence{{Excerpt: "mentions LLM"}},
			Missing:    []string{"inventory link"},
			Rationale:  "no inventory found",
		}},
		BlockingIssues:    []string{"Model inventory"},
		FollowupQuestions: []string{"q1"},
		GeneratedAt:       time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	s.FollowupIndex = 1
	s.FollowupAnswers["q1"] = "answered"
	s.ClarificationCounts["followup::q1"] = 2
	s.ProcessDescription = "step one\nstep two"
	s.FlowchartSource = "flowchart TD\n  A --> B"
	s.FlowchartConfirmed = true
	s.DiagramInputMode = DiagramModeGenerate
	s.DiagramUpload = &DiagramFile{Name: "flow.png", MimeType: "image/png", SizeBytes: 2048, SHA256: "abc"}
	s.PendingDiagramFollowup = &PendingDiagramFollowup{Index: 0, Question: "q1"}
	s.ReviewerDecision = DecisionApprove
	s.Finalized = true
	s.ClassificationReasoning = "keywords matched"
	s.ChecklistReasoning = "evaluated 1 rule"
	s.FlowchartReasoning = "two steps detected"
	s.AppendAudit("case_started", nil)
	s.AppendAudit("finalized", map[string]string{"reviewer_decision": "APPROVE"})
	return s
}
