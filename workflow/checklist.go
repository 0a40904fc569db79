package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/matrixor/tsg-officer/llm"
	"github.com/matrixor/tsg-officer/rules"
	"github.com/matrixor/tsg-officer/state"
)

// DefaultMaxSynthesizedFollowups caps how many follow-up questions get
// synthesized from unresolved checklist items.
const DefaultMaxSynthesizedFollowups = 8

// ChecklistNode evaluates the evidence against the applicable rule
// union and routes to follow-ups, diagram capture, or review.
type ChecklistNode struct {
	svc          llm.Service
	fallback     *llm.Mock
	repo         rules.Repository
	maxFollowups int
	// diagramCategories name the category labels whose cases must put
	// a process diagram on record even when intake did not ask for one.
	diagramCategories map[string]bool
	logger            *slog.Logger
}

func (*ChecklistNode) Name() NodeName { return NodeChecklist }

func (n *ChecklistNode) Run(ctx context.Context, cs *state.CaseState, _ *Answer) (Outcome, error) {
	categories := cs.CategoryLabels
	if len(categories) == 0 {
		if cs.ApplicationType != "" {
			categories = []string{cs.ApplicationType}
		} else {
			categories = []string{"tsg_general"}
		}
	}

	ruleSet, err := rules.Union(n.repo, categories)
	if err != nil {
		// A broken rule library is a deployment problem, not something
		// the submitter can answer around. Fail the invocation.
		return Outcome{}, fmt.Errorf("load rules for %v: %w", categories, err)
	}

	req := llm.EvaluateRequest{
		CaseID:          cs.CaseID,
		ApplicationType: cs.ApplicationType,
		Categories:      categories,
		Rules:           ruleSet,
		EvidenceText:    buildEvidence(cs),
	}

	report, err := n.svc.EvaluateChecklist(ctx, req)
	if err != nil {
		n.logger.Warn("checklist evaluation failed, using deterministic fallback",
			"case_id", cs.CaseID, "error", err)
		report, _ = n.fallback.EvaluateChecklist(ctx, req)
	}

	if len(report.FollowupQuestions) == 0 {
		report.FollowupQuestions = synthesizeFollowups(report, n.maxFollowups)
	} else if len(report.FollowupQuestions) > n.maxFollowups {
		report.FollowupQuestions = report.FollowupQuestions[:n.maxFollowups]
	}

	cs.ChecklistReport = report
	cs.ChecklistReasoning = report.Summary
	cs.AppendMessage(state.RoleAssistant, checklistSummary(report))
	cs.AppendAudit("checklist_generated", map[string]string{
		"rules":          itoa(len(report.Checklist)),
		"followups":      itoa(len(report.FollowupQuestions)),
		"recommendation": string(report.OverallRecommendation),
	})

	// Follow-ups run once per reset; a case that already collected
	// answers falls through so the workflow cannot loop forever.
	switch {
	case len(report.FollowupQuestions) > 0 && len(cs.FollowupAnswers) == 0:
		cs.FollowupIndex = 0
		cs.Phase = state.PhaseNeedInfo
		return AdvanceTo(NodeFollowup), nil
	case n.diagramRequired(cs) && !cs.HasDiagramEvidence():
		cs.Phase = state.PhaseDiagram
		return AdvanceTo(NodeDiagram), nil
	default:
		cs.Phase = state.PhaseReview
		return AdvanceTo(NodeReview), nil
	}
}

func (n *ChecklistNode) diagramRequired(cs *state.CaseState) bool {
	if v := strings.ToLower(strings.TrimSpace(cs.IntakeFields["needs_flowchart"])); v == "yes" || v == "y" || v == "true" {
		return true
	}
	for _, label := range cs.CategoryLabels {
		if n.diagramCategories[label] {
			return true
		}
	}
	return false
}

// buildEvidence assembles the text the checklist is judged against:
// the submission (or extracted documents) plus any follow-up answers
// collected so far.
func buildEvidence(cs *state.CaseState) string {
	var b strings.Builder
	b.WriteString(cs.ConcatDocuments())

	if len(cs.FollowupAnswers) > 0 {
		qs := make([]string, 0, len(cs.FollowupAnswers))
		for q := range cs.FollowupAnswers {
			qs = append(qs, q)
		}
		sort.Strings(qs)
		b.WriteString("\n\nFollow-up answers:")
		for _, q := range qs {
			if a := cs.FollowupAnswers[q]; a != BypassedAnswer {
				b.WriteString("\n- Q: " + q + "\n  A: " + a)
			}
		}
	}
	if cs.ProcessDescription != "" {
		b.WriteString("\n\nProcess description:\n" + cs.ProcessDescription)
	}
	return b.String()
}

// synthesizeFollowups derives questions from unresolved BLOCKER and
// WARN items, most severe first, capped at max.
func synthesizeFollowups(report *state.ChecklistReport, max int) []string {
	var open []state.ChecklistItem
	for _, item := range report.Checklist {
		if item.Status != state.StatusUnknown {
			continue
		}
		if item.Severity == state.SeverityBlocker || item.Severity == state.SeverityWarn {
			open = append(open, item)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return state.SeverityRank(open[i].Severity) < state.SeverityRank(open[j].Severity)
	})

	var qs []string
	for _, item := range open {
		if len(qs) >= max {
			break
		}
		q := "Please provide information or evidence for: " + item.Title
		if len(item.Missing) > 0 {
			q += " (" + strings.Join(item.Missing, "; ") + ")"
		}
		qs = append(qs, q)
	}
	return qs
}

func checklistSummary(report *state.ChecklistReport) string {
	counts := report.CountByStatus()
	msg := fmt.Sprintf("Checklist evaluated: %d PASS, %d FAIL, %d UNKNOWN, %d N/A. Recommendation: %s.",
		counts[state.StatusPass], counts[state.StatusFail],
		counts[state.StatusUnknown], counts[state.StatusNA],
		report.OverallRecommendation)
	if len(report.BlockingIssues) > 0 {
		msg += " Blocking issues: " + strings.Join(report.BlockingIssues, "; ") + "."
	}
	return msg
}
