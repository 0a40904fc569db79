package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/matrixor/tsg-officer/llm"
	"github.com/matrixor/tsg-officer/state"
)

var confirmWords = map[string]bool{
	"yes": true, "y": true, "correct": true, "confirmed": true, "ok": true,
	"looks good": true, "lgtm": true, "approve": true,
}

// DiagramNode puts a process diagram on record, either as uploaded
// file metadata or as a generated flowchart the submitter confirms.
// Raw file bytes never enter the case state.
type DiagramNode struct {
	svc      llm.Service
	fallback *llm.Mock
	logger   *slog.Logger
}

func (*DiagramNode) Name() NodeName { return NodeDiagram }

func (n *DiagramNode) Run(ctx context.Context, cs *state.CaseState, ans *Answer) (Outcome, error) {
	if cs.HasDiagramEvidence() {
		return n.complete(cs), nil
	}

	if ans == nil {
		return SuspendWith(modeQuestion()), nil
	}

	// An upload settles the requirement at any step.
	if ans.Upload != nil {
		cs.DiagramInputMode = state.DiagramModeUpload
		cs.DiagramUpload = ans.Upload
		cs.AppendAudit("diagram_uploaded", map[string]string{
			"name": ans.Upload.Name, "sha256": ans.Upload.SHA256,
		})
		return n.complete(cs), nil
	}

	reply := strings.TrimSpace(ans.Value)

	switch {
	case cs.DiagramInputMode == "":
		return n.chooseMode(ctx, cs, reply), nil

	case cs.DiagramInputMode == state.DiagramModeUpload:
		if reply == "" {
			return SuspendWith(uploadQuestion()), nil
		}
		// A text reply in upload mode is a file reference the
		// submitter cannot attach directly.
		cs.DiagramUpload = &state.DiagramFile{Name: reply}
		cs.AppendAudit("diagram_uploaded", map[string]string{"name": reply, "source": "reference"})
		return n.complete(cs), nil

	case cs.ProcessDescription == "":
		if reply == "" {
			return SuspendWith(descriptionQuestion()), nil
		}
		cs.ProcessDescription = reply
		cs.AppendAudit("process_description_collected", map[string]string{"description": preview(reply)})
		n.generate(ctx, cs, "flowchart_generated")
		return SuspendWith(confirmQuestion()), nil

	default:
		// Confirmation step: yes confirms, anything else is treated
		// as corrections and triggers a regeneration.
		if confirmWords[strings.ToLower(reply)] {
			cs.FlowchartConfirmed = true
			cs.AppendAudit("flowchart_confirmed", nil)
			return n.complete(cs), nil
		}
		cs.ProcessDescription = cs.ProcessDescription + "\n\nCorrections:\n" + reply
		n.generate(ctx, cs, "flowchart_regenerated")
		return SuspendWith(confirmQuestion()), nil
	}
}

func (n *DiagramNode) chooseMode(ctx context.Context, cs *state.CaseState, reply string) Outcome {
	lower := strings.ToLower(reply)
	switch {
	case strings.Contains(lower, "upload"):
		cs.DiagramInputMode = state.DiagramModeUpload
		cs.AppendAudit("diagram_mode_selected", map[string]string{"mode": state.DiagramModeUpload})
		return SuspendWith(uploadQuestion())
	case strings.Contains(lower, "generate") || strings.Contains(lower, "describe"):
		cs.DiagramInputMode = state.DiagramModeGenerate
		cs.AppendAudit("diagram_mode_selected", map[string]string{"mode": state.DiagramModeGenerate})
		return SuspendWith(descriptionQuestion())
	default:
		// Any other substantive reply is taken as the description
		// itself, generate mode implied.
		if reply == "" || IsClarificationRequest(reply) {
			return SuspendWith(modeQuestion())
		}
		cs.DiagramInputMode = state.DiagramModeGenerate
		cs.ProcessDescription = reply
		cs.AppendAudit("diagram_mode_selected", map[string]string{"mode": state.DiagramModeGenerate, "source": "implied"})
		cs.AppendAudit("process_description_collected", map[string]string{"description": preview(reply)})
		n.generate(ctx, cs, "flowchart_generated")
		return SuspendWith(confirmQuestion())
	}
}

// generate synthesizes the flowchart from the current description,
// degrading to the deterministic mock when the service call fails.
func (n *DiagramNode) generate(ctx context.Context, cs *state.CaseState, event string) {
	fc, err := n.svc.SynthesizeFlowchart(ctx, cs.ProcessDescription)
	if err != nil {
		n.logger.Warn("flowchart synthesis failed, using deterministic fallback",
			"case_id", cs.CaseID, "error", err)
		fc, _ = n.fallback.SynthesizeFlowchart(ctx, cs.ProcessDescription)
	}
	cs.FlowchartSource = fc.DiagramSource
	cs.FlowchartConfirmed = false
	cs.FlowchartReasoning = strings.Join(fc.Assumptions, "; ")
	cs.AppendMessage(state.RoleAssistant, "Here is the process flowchart I derived:\n\n"+fc.DiagramSource)
	cs.AppendAudit(event, map[string]string{"title": fc.Title})
}

// complete routes control back to the follow-up question that forced
// the detour, or on to review.
func (n *DiagramNode) complete(cs *state.CaseState) Outcome {
	cs.AppendAudit("diagram_complete", nil)
	if p := cs.PendingDiagramFollowup; p != nil {
		cs.FollowupAnswers[p.Question] = diagramEvidenceRef(cs)
		cs.AppendAudit("followup_answer_collected", map[string]string{
			"question": preview(p.Question), "answer": "diagram on record",
		})
		cs.PendingDiagramFollowup = nil
		cs.Phase = state.PhaseNeedInfo
		return AdvanceTo(NodeFollowup)
	}
	cs.Phase = state.PhaseReview
	return AdvanceTo(NodeReview)
}

func modeQuestion() *PendingQuestion {
	return &PendingQuestion{
		Type:         QuestionDiagramMode,
		QuestionText: "This case needs a process diagram on record. Would you like to upload an existing diagram, or should I generate one from your description?",
		Hint:         "Reply 'upload' or 'generate'.",
	}
}

func uploadQuestion() *PendingQuestion {
	return &PendingQuestion{
		Type:         QuestionDiagramMode,
		QuestionText: "Please attach the diagram file, or reply with its name or location.",
		Hint:         "Only file metadata is stored with the case.",
	}
}

func descriptionQuestion() *PendingQuestion {
	return &PendingQuestion{
		Type:         QuestionDiagramDescription,
		QuestionText: "Describe the process step by step, one step per line.",
		Hint:         "Start from the trigger and end with the outcome.",
	}
}

func confirmQuestion() *PendingQuestion {
	return &PendingQuestion{
		Type:         QuestionDiagramConfirm,
		QuestionText: "Does this flowchart look right? Reply 'yes' to confirm, or describe what to change.",
	}
}
