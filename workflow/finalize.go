package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matrixor/tsg-officer/state"
)

// FinalizeNode closes the case. It is idempotent: re-entering a
// finalized case repeats the terminal notice without new audit events
// or state changes.
type FinalizeNode struct {
	logger *slog.Logger
}

func (*FinalizeNode) Name() NodeName { return NodeFinalize }

func (n *FinalizeNode) Run(_ context.Context, cs *state.CaseState, _ *Answer) (Outcome, error) {
	cs.Phase = state.PhaseDone

	if cs.Finalized {
		cs.AppendMessage(state.RoleAssistant,
			fmt.Sprintf("Case %s is already closed with decision %s.", cs.CaseID, cs.ReviewerDecision))
		return Stop(), nil
	}

	summary := fmt.Sprintf("Case %s is closed. Reviewer decision: %s.", cs.CaseID, cs.ReviewerDecision)
	if cs.ChecklistReport != nil {
		summary += fmt.Sprintf(" Checklist recommendation was %s. %s",
			cs.ChecklistReport.OverallRecommendation, cs.ChecklistReport.Summary)
	}
	cs.AppendMessage(state.RoleAssistant, summary)

	cs.Finalized = true
	details := map[string]string{"reviewer_decision": string(cs.ReviewerDecision)}
	if cs.ChecklistReport != nil {
		details["checklist_recommendation"] = string(cs.ChecklistReport.OverallRecommendation)
	}
	cs.AppendAudit("finalized", details)
	n.logger.Info("case finalized", "case_id", cs.CaseID, "decision", cs.ReviewerDecision)

	return Stop(), nil
}
