package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matrixor/tsg-officer/state"
)

// Mock is a deterministic Service implementation driven entirely by keyword
// matching. It is the default provider so the workflow runs end-to-end with
// no external API, and it doubles as the fallback path when a remote call
// fails.
type Mock struct{}

// NewMock creates the deterministic mock service.
func NewMock() *Mock {
	return &Mock{}
}

// aiTerms mark a submission as AI-related.
var aiTerms = []string{"llm", "language model", "machine learning", "genai", "gpt", "openai", "chatbot", "copilot", " ai ", " ai.", " ai,", "an ai"}

// externalTerms mark AI usage as external/vendor-provided.
var externalTerms = []string{"openai", "vendor", "third-party", "third party", "saas", "external"}

// builderTerms mark the submitter as building or training models.
var builderTerms = []string{"build", "built", "train", "fine-tune", "finetune", "develop", "internal llm", "internal model", "our model"}

// Classify implements Service with fixed keyword rules.
func (m *Mock) Classify(_ context.Context, text string) (*Classification, error) {
	lower := " " + strings.ToLower(text) + " "

	if containsAny(lower, []string{"building", "permit", "apn", "bsn", "parcel"}) {
		return &Classification{
			ApplicationType: "building_permit",
			Labels:          []string{"building_permit"},
			Confidence:      0.6,
			Rationale:       "matched building permit keywords",
		}, nil
	}

	if containsAny(lower, aiTerms) {
		switch {
		case containsAny(lower, builderTerms):
			return &Classification{
				ApplicationType: "internal_ai_builder",
				Labels:          []string{"Internal AI Builder"},
				Confidence:      0.6,
				Rationale:       "AI terms together with build/train language",
			}, nil
		case containsAny(lower, externalTerms):
			return &Classification{
				ApplicationType: "external_ai_consumer",
				Labels:          []string{"Consumer of External AI"},
				Confidence:      0.6,
				Rationale:       "AI terms together with vendor/external language",
			}, nil
		default:
			return &Classification{
				ApplicationType: "internal_ai_consumer",
				Labels:          []string{"Consumer of Internal AI"},
				Confidence:      0.55,
				Rationale:       "AI terms without build or vendor language",
			}, nil
		}
	}

	return &Classification{
		ApplicationType: "tsg_general",
		Labels:          []string{"tsg_general"},
		Confidence:      0.55,
		Rationale:       "no category keywords matched",
	}, nil
}

// EvaluateChecklist implements Service: a rule passes when any of its
// keywords appears in the evidence, otherwise BLOCKER/WARN rules come back
// UNKNOWN with a follow-up question and INFO rules come back NA.
func (m *Mock) EvaluateChecklist(_ context.Context, req EvaluateRequest) (*state.ChecklistReport, error) {
	lowerEvidence := strings.ToLower(req.EvidenceText)

	report := &state.ChecklistReport{
		SchemaVersion:   state.ReportSchemaVersion,
		CaseID:          req.CaseID,
		ApplicationType: req.ApplicationType,
		GeneratedAt:     time.Now().UTC(),
	}

	failedBlocker := false
	anyUnknown := false

	for _, rule := range req.Rules {
		var hits []string
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lowerEvidence, strings.ToLower(kw)) {
				hits = append(hits, kw)
			}
		}

		item := state.ChecklistItem{
			RuleID:      rule.RuleID,
			Title:       rule.Title,
			Description: rule.Description,
			Severity:    rule.Severity,
		}

		switch {
		case len(hits) > 0:
			item.Status = state.StatusPass
			item.Confidence = 0.7
			item.Evidence = []state.Evidence{{Excerpt: "Found keyword(s): " + strings.Join(hits, ", ")}}
			item.Rationale = "evidence mentions rule keywords"

		case rule.Severity == state.SeverityBlocker || rule.Severity == state.SeverityWarn:
			item.Status = state.StatusUnknown
			item.Confidence = 0.3
			item.Missing = []string{missingHint(rule.Title)}
			item.Rationale = "no matching evidence found"
			anyUnknown = true
			if rule.Severity == state.SeverityBlocker {
				report.BlockingIssues = append(report.BlockingIssues, rule.Title)
			}
			q := rule.Question
			if q == "" {
				q = "Please provide information or evidence for: " + rule.Title
			}
			report.FollowupQuestions = append(report.FollowupQuestions, q)

		default:
			item.Status = state.StatusNA
			item.Confidence = 0.8
			item.Rationale = "informational rule with no matching evidence"
		}

		report.Checklist = append(report.Checklist, item)
	}

	switch {
	case failedBlocker:
		report.OverallRecommendation = state.DecisionReject
	case anyUnknown:
		report.OverallRecommendation = state.DecisionNeedInfo
	default:
		report.OverallRecommendation = state.DecisionApprove
	}

	counts := report.CountByStatus()
	report.Summary = fmt.Sprintf("%d rules evaluated: %d PASS, %d FAIL, %d UNKNOWN, %d NA.",
		len(report.Checklist), counts[state.StatusPass], counts[state.StatusFail],
		counts[state.StatusUnknown], counts[state.StatusNA])

	return report, nil
}

// SynthesizeFlowchart implements Service: each non-empty line of the
// description becomes one node in a linear flowchart.
func (m *Mock) SynthesizeFlowchart(_ context.Context, description string) (*Flowchart, error) {
	var steps []string
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line != "" {
			steps = append(steps, line)
		}
	}
	if len(steps) == 0 {
		steps = []string{"Process"}
	}

	var b strings.Builder
	b.WriteString("flowchart TD\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "  %s[%q]\n", nodeID(i), step)
	}
	for i := 0; i+1 < len(steps); i++ {
		fmt.Fprintf(&b, "  %s --> %s\n", nodeID(i), nodeID(i+1))
	}

	return &Flowchart{
		DiagramSource: b.String(),
		Title:         "Process flow",
	}, nil
}

// Explain implements Service with a fixed rewrite template.
func (m *Mock) Explain(_ context.Context, question, _ string) (string, error) {
	return "Put differently: " + question +
		" A short factual answer of 1-3 sentences is enough; reply N/A if it does not apply.", nil
}

// SummarizeStep implements Service with a fixed narration template.
func (m *Mock) SummarizeStep(_ context.Context, req SummarizeRequest) (string, error) {
	if req.Answer == "" {
		return fmt.Sprintf("%s: asked %q", req.StepName, req.Question), nil
	}
	return fmt.Sprintf("%s: recorded answer for %q", req.StepName, req.Question), nil
}

// --- Helper functions ---

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// missingHint phrases the missing-evidence hint for a rule title.
func missingHint(title string) string {
	return "Evidence for: " + title
}

// nodeID returns spreadsheet-style node identifiers A, B, ..., Z, AA, AB...
func nodeID(i int) string {
	id := ""
	for {
		id = string(rune('A'+i%26)) + id
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	return id
}
