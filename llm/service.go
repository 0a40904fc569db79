package llm

import (
	"context"

	"github.com/matrixor/tsg-officer/rules"
	"github.com/matrixor/tsg-officer/state"
)

// Classification is the result of categorizing a submission.
type Classification struct {
	ApplicationType string   `json:"application_type"`
	Labels          []string `json:"labels"`
	Confidence      float64  `json:"confidence"`
	Rationale       string   `json:"rationale,omitempty"`
}

// Flowchart is a synthesized process diagram.
type Flowchart struct {
	DiagramSource string   `json:"diagram_source"`
	Title         string   `json:"title,omitempty"`
	Assumptions   []string `json:"assumptions,omitempty"`
	OpenQuestions []string `json:"open_questions,omitempty"`
}

// EvaluateRequest carries everything a checklist evaluation needs.
type EvaluateRequest struct {
	CaseID          string
	ApplicationType string
	Categories      []string
	Rules           []rules.Rule
	EvidenceText    string
}

// SummarizeRequest asks for a one-sentence audit narration of a step.
type SummarizeRequest struct {
	StepName string
	Question string
	Answer   string
	Context  string
}

// Service is the language-model surface the workflow depends on. All
// implementations must be safe for concurrent use.
type Service interface {
	// Classify assigns an application type and category labels to a
	// free-text submission.
	Classify(ctx context.Context, text string) (*Classification, error)

	// EvaluateChecklist judges the evidence against a rule set and
	// returns a structured report.
	EvaluateChecklist(ctx context.Context, req EvaluateRequest) (*state.ChecklistReport, error)

	// SynthesizeFlowchart turns a process description into diagram
	// source.
	SynthesizeFlowchart(ctx context.Context, description string) (*Flowchart, error)

	// Explain rewrites a question the submitter did not understand.
	Explain(ctx context.Context, question, contextText string) (string, error)

	// SummarizeStep narrates a workflow step for the audit trail.
	SummarizeStep(ctx context.Context, req SummarizeRequest) (string, error)
}

var (
	_ Service = (*Client)(nil)
	_ Service = (*Mock)(nil)
)
