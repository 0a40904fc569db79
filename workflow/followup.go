package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/matrixor/tsg-officer/llm"
	"github.com/matrixor/tsg-officer/state"
)

// diagramVocabulary marks follow-up questions that are really asking
// for a process diagram, which the submitter cannot answer in text.
var diagramVocabulary = []string{"diagram", "flowchart", "flow chart", "process flow"}

// FollowupNode walks the report's follow-up questions one at a time.
// It runs the bounded clarification protocol, skips questions that
// already have answers, and detours to the diagram node when a
// question requires a diagram the case does not yet have.
type FollowupNode struct {
	svc      llm.Service
	fallback *llm.Mock
	clar     *clarifier
	logger   *slog.Logger
}

func (*FollowupNode) Name() NodeName { return NodeFollowup }

func (n *FollowupNode) Run(ctx context.Context, cs *state.CaseState, ans *Answer) (Outcome, error) {
	report := cs.ChecklistReport
	if report == nil {
		// Resumed into NEED_INFO without a report. Re-evaluate.
		cs.Phase = state.PhaseChecklist
		return AdvanceTo(NodeChecklist), nil
	}
	qs := report.FollowupQuestions

	if ans != nil && cs.FollowupIndex < len(qs) {
		if out, suspended := n.handleAnswer(ctx, cs, qs[cs.FollowupIndex], ans.Value); suspended {
			return out, nil
		}
	}

	for cs.FollowupIndex < len(qs) {
		q := qs[cs.FollowupIndex]

		// Idempotent resume: already-answered questions are skipped so
		// a replayed turn cannot ask twice or double-advance.
		if _, done := cs.FollowupAnswers[q]; done {
			cs.FollowupIndex++
			continue
		}

		if isDiagramQuestion(q) {
			if cs.HasDiagramEvidence() {
				cs.FollowupAnswers[q] = diagramEvidenceRef(cs)
				cs.AppendAudit("followup_answer_collected", map[string]string{
					"question": preview(q), "answer": "diagram on record",
				})
				cs.FollowupIndex++
				continue
			}
			cs.PendingDiagramFollowup = &state.PendingDiagramFollowup{
				Index:    cs.FollowupIndex,
				Question: q,
			}
			cs.Phase = state.PhaseDiagram
			cs.AppendAudit("followup_diagram_detour", map[string]string{"question": preview(q)})
			return AdvanceTo(NodeDiagram), nil
		}

		return SuspendWith(&PendingQuestion{
			Type:         QuestionFollowup,
			QuestionText: q,
			Hint:         "Answer in 1-3 sentences. Reply N/A if it does not apply.",
			Index:        cs.FollowupIndex,
		}), nil
	}

	// Every question answered or bypassed. Re-run the checklist with
	// the enriched evidence.
	cs.Phase = state.PhaseChecklist
	cs.AppendAudit("followups_complete", map[string]string{
		"answered": itoa(len(cs.FollowupAnswers)),
	})
	return AdvanceTo(NodeChecklist), nil
}

// handleAnswer processes the reply to the current question. The second
// return is true when the node must suspend again with the same
// question.
func (n *FollowupNode) handleAnswer(ctx context.Context, cs *state.CaseState, q, reply string) (Outcome, bool) {
	key := QuestionKey("followup", q)

	// Once the clarification bound is spent, the next reply settles
	// the question no matter what it says.
	if n.clar.exhausted(cs, key) {
		cs.ClarificationCounts[key]++
		if strings.TrimSpace(reply) == "" || IsClarificationRequest(reply) {
			cs.FollowupAnswers[q] = BypassedAnswer
			cs.AppendAudit("followup_bypassed", map[string]string{
				"question": preview(q), "attempts": itoa(cs.ClarificationCounts[key]),
			})
		} else {
			cs.FollowupAnswers[q] = reply
			cs.AppendAudit("followup_answer_collected", map[string]string{
				"question": preview(q), "answer": preview(reply),
			})
			n.narrate(ctx, cs, q, reply)
		}
		cs.FollowupIndex++
		return Outcome{}, false
	}

	if strings.TrimSpace(reply) == "" {
		return SuspendWith(&PendingQuestion{
			Type:         QuestionFollowup,
			QuestionText: q,
			Hint:         "An empty reply cannot be recorded. Reply N/A if it does not apply.",
			Index:        cs.FollowupIndex,
		}), true
	}

	if IsClarificationRequest(reply) {
		n.clar.bump(cs, key)
		n.clar.explain(ctx, cs, q, "Follow-up question for a compliance checklist.")
		return SuspendWith(&PendingQuestion{
			Type:         QuestionFollowup,
			QuestionText: q,
			Hint:         "Answer in 1-3 sentences. Reply N/A if it does not apply.",
			Index:        cs.FollowupIndex,
		}), true
	}

	cs.FollowupAnswers[q] = reply
	cs.AppendAudit("followup_answer_collected", map[string]string{
		"question": preview(q), "answer": preview(reply),
	})
	n.narrate(ctx, cs, q, reply)
	cs.FollowupIndex++
	return Outcome{}, false
}

// narrate appends a short reader-facing note on how the answer will be
// used. Narration is cosmetic, so failures degrade to the deterministic
// template instead of surfacing.
func (n *FollowupNode) narrate(ctx context.Context, cs *state.CaseState, q, reply string) {
	req := llm.SummarizeRequest{
		StepName: "followup",
		Question: q,
		Answer:   reply,
		Context:  "Clarification for a checklist item previously marked UNKNOWN.",
	}
	text, err := n.svc.SummarizeStep(ctx, req)
	if err != nil {
		n.logger.Warn("step narration failed, using deterministic fallback",
			"case_id", cs.CaseID, "error", err)
		text, _ = n.fallback.SummarizeStep(ctx, req)
	}
	if text != "" {
		cs.AppendMessage(state.RoleAssistant, text)
	}
}

func isDiagramQuestion(q string) bool {
	lower := strings.ToLower(q)
	for _, term := range diagramVocabulary {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// diagramEvidenceRef is the answer recorded for a diagram question
// once the case holds diagram evidence.
func diagramEvidenceRef(cs *state.CaseState) string {
	if cs.DiagramUpload != nil {
		return "Uploaded diagram: " + cs.DiagramUpload.Name
	}
	return "Confirmed generated process flowchart on record."
}
