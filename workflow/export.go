package workflow

import (
	"context"
	"time"

	"github.com/matrixor/tsg-officer/state"
)

// AuditExport is the consolidated record handed to compliance: case
// metadata, collected evidence, the checklist report, and the ordered
// audit trail.
type AuditExport struct {
	CaseID           string                 `json:"case_id"`
	ExportedAt       time.Time              `json:"exported_at"`
	Phase            state.Phase            `json:"phase"`
	ApplicationType  string                 `json:"application_type,omitempty"`
	CategoryLabels   []string               `json:"category_labels,omitempty"`
	IntakeFields     map[string]string      `json:"intake_fields"`
	FollowupAnswers  map[string]string      `json:"followup_answers"`
	FlowchartSource  string                 `json:"flowchart_source,omitempty"`
	DiagramUpload    *state.DiagramFile     `json:"diagram_upload,omitempty"`
	ChecklistReport  *state.ChecklistReport `json:"checklist_report,omitempty"`
	ReviewerDecision state.Decision         `json:"reviewer_decision,omitempty"`
	Finalized        bool                   `json:"finalized"`
	AuditLog         []state.AuditEvent     `json:"audit_log"`
}

// Export builds the audit export for a case. Works at any phase; an
// incomplete case exports whatever exists so far.
func (e *Engine) Export(ctx context.Context, caseID string) (*AuditExport, error) {
	cs, err := e.load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	cs = cs.Clone()

	return &AuditExport{
		CaseID:           cs.CaseID,
		ExportedAt:       time.Now().UTC(),
		Phase:            cs.Phase,
		ApplicationType:  cs.ApplicationType,
		CategoryLabels:   cs.CategoryLabels,
		IntakeFields:     cs.IntakeFields,
		FollowupAnswers:  cs.FollowupAnswers,
		FlowchartSource:  cs.FlowchartSource,
		DiagramUpload:    cs.DiagramUpload,
		ChecklistReport:  cs.ChecklistReport,
		ReviewerDecision: cs.ReviewerDecision,
		Finalized:        cs.Finalized,
		AuditLog:         cs.AuditLog,
	}, nil
}
