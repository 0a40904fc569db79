// Package state defines the case record threaded through every workflow node,
// along with the checklist report and audit types that persist with it.
package state

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Phase identifies the macro-step a case is currently in.
type Phase string

// Workflow phases. A case always starts in PhaseStart and ends in PhaseDone.
const (
	PhaseStart     Phase = "START"
	PhaseIntake    Phase = "INTAKE"
	PhaseChecklist Phase = "CHECKLIST"
	PhaseNeedInfo  Phase = "NEED_INFO"
	PhaseDiagram   Phase = "DIAGRAM"
	PhaseReview    Phase = "REVIEW"
	PhaseDone      Phase = "DONE"
)

// Decision is a reviewer decision or an overall checklist recommendation.
type Decision string

// Valid decisions.
const (
	DecisionApprove            Decision = "APPROVE"
	DecisionConditionalApprove Decision = "CONDITIONAL_APPROVE"
	DecisionReject             Decision = "REJECT"
	DecisionNeedInfo           Decision = "NEED_INFO"
)

// decisionAliases maps lowercased free-text reviewer input to a decision.
var decisionAliases = map[string]Decision{
	"approve":             DecisionApprove,
	"approved":            DecisionApprove,
	"conditional_approve": DecisionConditionalApprove,
	"conditional-approve": DecisionConditionalApprove,
	"conditional approve": DecisionConditionalApprove,
	"conditional":         DecisionConditionalApprove,
	"cond":                DecisionConditionalApprove,
	"reject":              DecisionReject,
	"rejected":            DecisionReject,
	"need_info":           DecisionNeedInfo,
	"need info":           DecisionNeedInfo,
	"need more info":      DecisionNeedInfo,
	"info":                DecisionNeedInfo,
}

// NormalizeDecision maps varied reviewer input to the closed decision enum.
// Unrecognized input returns DecisionNeedInfo and ok=false so callers can
// distinguish a default from an explicit choice.
func NormalizeDecision(raw string) (Decision, bool) {
	trimmed := strings.TrimSpace(raw)
	switch Decision(strings.ToUpper(trimmed)) {
	case DecisionApprove, DecisionConditionalApprove, DecisionReject, DecisionNeedInfo:
		return Decision(strings.ToUpper(trimmed)), true
	}
	if d, ok := decisionAliases[strings.ToLower(trimmed)]; ok {
		return d, true
	}
	return DecisionNeedInfo, false
}

// Message roles in the case transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleReviewer  = "reviewer"
)

// ChatMessage is one transcript entry. The transcript is append-only.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AuditEvent is one append-only audit trail entry.
type AuditEvent struct {
	Timestamp time.Time         `json:"ts"`
	Event     string            `json:"event"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewAuditEvent stamps an event with the current UTC time.
func NewAuditEvent(event string, details map[string]string) AuditEvent {
	return AuditEvent{Timestamp: time.Now().UTC(), Event: event, Details: details}
}

// Document is an uploaded evidence document. Only extracted text and metadata
// are stored; raw bytes stay outside the case record.
type Document struct {
	DocID  string `json:"doc_id"`
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
	Text   string `json:"text"`
}

// DiagramFile is metadata about an uploaded diagram. The engine never stores
// file contents, only a reference sufficient for audit.
type DiagramFile struct {
	Name      string `json:"name"`
	MimeType  string `json:"mime_type,omitempty"`
	Path      string `json:"path,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
}

// PendingDiagramFollowup records the follow-up question that forced a detour
// into the diagram phase, so control can return to the same index afterwards.
type PendingDiagramFollowup struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
}

// DiagramInputMode values.
const (
	DiagramModeUpload   = "upload"
	DiagramModeGenerate = "generate"
)

// CaseState is the single unit of persistence for one workflow instance.
// It is read-modify-written exactly once per engine invocation; concurrent
// invocations against the same case are serialized by the engine.
type CaseState struct {
	CaseID string `json:"case_id"`
	Phase  Phase  `json:"phase"`

	Transcript []ChatMessage `json:"transcript"`

	// Intake.
	ApplicationType string            `json:"application_type,omitempty"`
	CategoryLabels  []string          `json:"category_labels,omitempty"`
	IntakeFields    map[string]string `json:"intake_fields"`
	RequiredFields  []string          `json:"required_fields,omitempty"`
	MissingFields   []string          `json:"missing_fields,omitempty"`
	Documents       []Document        `json:"documents,omitempty"`

	// Checklist and follow-ups.
	ChecklistReport     *ChecklistReport  `json:"checklist_report,omitempty"`
	FollowupIndex       int               `json:"followup_index"`
	FollowupAnswers     map[string]string `json:"followup_answers"`
	ClarificationCounts map[string]int    `json:"clarification_counts"`

	// Diagram capture.
	ProcessDescription     string                  `json:"process_description,omitempty"`
	FlowchartSource        string                  `json:"flowchart_source,omitempty"`
	FlowchartConfirmed     bool                    `json:"flowchart_confirmed"`
	DiagramInputMode       string                  `json:"diagram_input_mode,omitempty"`
	DiagramUpload          *DiagramFile            `json:"diagram_upload,omitempty"`
	PendingDiagramFollowup *PendingDiagramFollowup `json:"pending_diagram_followup,omitempty"`

	// Review and terminal.
	ReviewerDecision Decision `json:"reviewer_decision,omitempty"`
	Finalized        bool     `json:"finalized"`

	// Reasoning summaries surfaced to the transcript UI.
	ClassificationReasoning string `json:"classification_reasoning,omitempty"`
	ChecklistReasoning      string `json:"checklist_reasoning,omitempty"`
	FlowchartReasoning      string `json:"flowchart_reasoning,omitempty"`

	AuditLog []AuditEvent `json:"audit_log"`
}

// NewCaseState creates a fresh case in the START phase. An empty caseID gets
// a generated identifier.
func NewCaseState(caseID string) *CaseState {
	if caseID == "" {
		caseID = "case-" + uuid.New().String()[:8]
	}
	return &CaseState{
		CaseID:              caseID,
		Phase:               PhaseStart,
		IntakeFields:        make(map[string]string),
		FollowupAnswers:     make(map[string]string),
		ClarificationCounts: make(map[string]int),
	}
}

// AppendMessage adds a transcript entry.
func (s *CaseState) AppendMessage(role, content string) {
	s.Transcript = append(s.Transcript, ChatMessage{Role: role, Content: content})
}

// AppendAudit adds an audit event stamped with the current time.
func (s *CaseState) AppendAudit(event string, details map[string]string) {
	s.AuditLog = append(s.AuditLog, NewAuditEvent(event, details))
}

// LastUserText returns the content of the most recent user or reviewer
// message, or "" if none exists.
func (s *CaseState) LastUserText() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleUser || s.Transcript[i].Role == RoleReviewer {
			return s.Transcript[i].Content
		}
	}
	return ""
}

// RecomputeMissingFields rebuilds MissingFields as the ordered subsequence of
// RequiredFields absent from IntakeFields.
func (s *CaseState) RecomputeMissingFields() {
	missing := make([]string, 0, len(s.RequiredFields))
	for _, f := range s.RequiredFields {
		if strings.TrimSpace(s.IntakeFields[f]) == "" {
			missing = append(missing, f)
		}
	}
	s.MissingFields = missing
}

// HasDiagramEvidence reports whether the diagram requirement is satisfied by
// either a confirmed generated flowchart or an uploaded file reference.
func (s *CaseState) HasDiagramEvidence() bool {
	return (s.FlowchartConfirmed && s.FlowchartSource != "") || s.DiagramUpload != nil
}

// Clone returns a deep copy. The engine clones before mutating so a failed
// checkpoint write never leaves a half-applied in-memory record.
func (s *CaseState) Clone() *CaseState {
	out := *s
	out.Transcript = append([]ChatMessage(nil), s.Transcript...)
	out.CategoryLabels = append([]string(nil), s.CategoryLabels...)
	out.RequiredFields = append([]string(nil), s.RequiredFields...)
	out.MissingFields = append([]string(nil), s.MissingFields...)
	out.Documents = append([]Document(nil), s.Documents...)
	out.AuditLog = append([]AuditEvent(nil), s.AuditLog...)
	out.IntakeFields = copyMap(s.IntakeFields)
	out.FollowupAnswers = copyMap(s.FollowupAnswers)
	out.ClarificationCounts = copyMap(s.ClarificationCounts)
	if s.ChecklistReport != nil {
		r := s.ChecklistReport.Clone()
		out.ChecklistReport = r
	}
	if s.DiagramUpload != nil {
		d := *s.DiagramUpload
		out.DiagramUpload = &d
	}
	if s.PendingDiagramFollowup != nil {
		p := *s.PendingDiagramFollowup
		out.PendingDiagramFollowup = &p
	}
	return &out
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// maxEvidenceChars caps the concatenated evidence block so a pile of
// attachments cannot blow up the prompt.
const maxEvidenceChars = 40000

// AttachDocument records an evidence document and returns its id. Only
// extracted text is stored, never raw bytes.
func (s *CaseState) AttachDocument(name, source, text string) string {
	id := "doc-" + uuid.New().String()[:8]
	s.Documents = append(s.Documents, Document{DocID: id, Name: name, Source: source, Text: text})
	return id
}

// ConcatDocuments joins the submission text and extracted document text
// into one evidence block, capped at maxEvidenceChars.
func (s *CaseState) ConcatDocuments() string {
	parts := make([]string, 0, len(s.Documents)+1)
	if txt := strings.TrimSpace(s.IntakeFields["submission_text"]); txt != "" {
		parts = append(parts, txt)
	}
	for _, d := range s.Documents {
		if strings.TrimSpace(d.Text) != "" {
			parts = append(parts, "["+d.Name+"]\n"+d.Text)
		}
	}
	joined := strings.Join(parts, "\n\n")
	if len(joined) > maxEvidenceChars {
		joined = joined[:maxEvidenceChars]
	}
	return joined
}
