package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/matrixor/tsg-officer/state"
)

// reviewEscapeValues let the reviewer send the case back for better
// evidence instead of recording a decision.
var reviewEscapeValues = map[string]bool{
	"update answers": true,
	"update":         true,
}

const reviewPromptText = "Please record a decision: APPROVE, CONDITIONAL_APPROVE, REJECT, or NEED_INFO. " +
	"Reply 'update answers' to collect better evidence first."

// ReviewNode presents the checklist recommendation and records the
// human reviewer's decision. The decision always comes from a person;
// the model only recommends.
type ReviewNode struct {
	logger *slog.Logger
}

func (*ReviewNode) Name() NodeName { return NodeReview }

func (n *ReviewNode) Run(_ context.Context, cs *state.CaseState, ans *Answer) (Outcome, error) {
	if cs.ReviewerDecision != "" {
		cs.Phase = state.PhaseDone
		return AdvanceTo(NodeFinalize), nil
	}

	if ans == nil {
		cs.AppendMessage(state.RoleAssistant, recommendationBlock(cs))
		return SuspendWith(reviewQuestion()), nil
	}

	reply := strings.TrimSpace(ans.Value)
	if reply == "" {
		return SuspendWith(reviewQuestion()), nil
	}

	if reviewEscapeValues[strings.ToLower(reply)] {
		return n.updateAnswers(cs), nil
	}

	decision, recognized := state.NormalizeDecision(reply)
	if !recognized {
		n.logger.Info("unrecognized reviewer input, defaulting decision",
			"case_id", cs.CaseID, "input", preview(reply))
	}
	cs.ReviewerDecision = decision
	cs.AppendAudit("reviewer_decision", map[string]string{
		"decision": string(decision), "raw": preview(reply),
	})
	cs.Phase = state.PhaseDone
	return AdvanceTo(NodeFinalize), nil
}

// updateAnswers re-opens the follow-up loop against the unresolved
// items of the current report. Prior answers are cleared so the loop
// guard in the checklist node lets the questions run again.
func (n *ReviewNode) updateAnswers(cs *state.CaseState) Outcome {
	if cs.ChecklistReport != nil {
		qs := synthesizeFollowups(cs.ChecklistReport, DefaultMaxSynthesizedFollowups)
		if len(qs) == 0 {
			qs = cs.ChecklistReport.FollowupQuestions
		}
		cs.ChecklistReport.FollowupQuestions = qs
	}
	cs.FollowupAnswers = make(map[string]string)
	cs.FollowupIndex = 0
	cs.Phase = state.PhaseNeedInfo
	cs.AppendAudit("review_update_requested", nil)
	return AdvanceTo(NodeFollowup)
}

// recommendationBlock renders the report for the reviewer: overall
// recommendation, blocking issues, and the worst unresolved items.
func recommendationBlock(cs *state.CaseState) string {
	report := cs.ChecklistReport
	if report == nil {
		return "No checklist report is available for this case.\n\n" + reviewPromptText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Checklist recommendation: %s\n%s\n", report.OverallRecommendation, report.Summary)

	if len(report.BlockingIssues) > 0 {
		b.WriteString("\nBlocking issues:\n")
		for _, issue := range report.BlockingIssues {
			b.WriteString("- " + issue + "\n")
		}
	}

	var open []state.ChecklistItem
	for _, item := range report.Checklist {
		if item.Status == state.StatusFail || item.Status == state.StatusUnknown {
			open = append(open, item)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return state.SeverityRank(open[i].Severity) < state.SeverityRank(open[j].Severity)
	})
	if len(open) > 3 {
		open = open[:3]
	}
	if len(open) > 0 {
		b.WriteString("\nTop unresolved items:\n")
		for _, item := range open {
			fmt.Fprintf(&b, "- [%s/%s] %s", item.Severity, item.Status, item.Title)
			if item.Rationale != "" {
				b.WriteString(": " + item.Rationale)
			}
			if len(item.Evidence) > 0 && item.Evidence[0].Excerpt != "" {
				b.WriteString(" (" + preview(item.Evidence[0].Excerpt) + ")")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n" + reviewPromptText)
	return b.String()
}

func reviewQuestion() *PendingQuestion {
	return &PendingQuestion{
		Type:         QuestionReviewDecision,
		QuestionText: reviewPromptText,
		Hint:         "Unrecognized input is recorded as NEED_INFO.",
	}
}
