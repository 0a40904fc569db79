// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/matrixor/tsg-officer/llm"
	"github.com/matrixor/tsg-officer/state"
)

// ScriptedService is a thread-safe llm.Service double for engine tests.
// Configured fields script the corresponding method; any unscripted method
// falls through to the deterministic llm.Mock, so most tests only script
// what they assert on.
//
// Usage:
//
//	svc := &testutil.ScriptedService{
//	    Reports: []*state.ChecklistReport{reportWithFollowups},
//	}
type ScriptedService struct {
	mu       sync.Mutex
	fallback llm.Mock

	// Classification scripts Classify; ClassifyErr takes precedence.
	Classification *llm.Classification
	ClassifyErr    error

	// Reports are returned by EvaluateChecklist in sequence; the last one
	// repeats once the script is exhausted. EvaluateErr takes precedence.
	Reports     []*state.ChecklistReport
	EvaluateErr error
	reportIndex int

	// Flowchart scripts SynthesizeFlowchart; FlowchartErr takes precedence.
	Flowchart    *llm.Flowchart
	FlowchartErr error

	// Explanation scripts Explain; ExplainErr takes precedence.
	Explanation string
	ExplainErr  error

	// Summary scripts SummarizeStep.
	Summary string

	// Call counters and captured arguments for assertions.
	ClassifyCalls       int
	EvaluateCalls       int
	FlowchartCalls      int
	ExplainCalls        int
	SummarizeCalls      int
	LastClassified      string
	LastEvaluateRequest llm.EvaluateRequest
	LastExplained       string
}

// Classify implements llm.Service.
func (s *ScriptedService) Classify(ctx context.Context, text string) (*llm.Classification, error) {
	s.mu.Lock()
	s.ClassifyCalls++
	s.LastClassified = text
	s.mu.Unlock()

	if s.ClassifyErr != nil {
		return nil, s.ClassifyErr
	}
	if s.Classification != nil {
		return s.Classification, nil
	}
	return s.fallback.Classify(ctx, text)
}

// EvaluateChecklist implements llm.Service.
func (s *ScriptedService) EvaluateChecklist(ctx context.Context, req llm.EvaluateRequest) (*state.ChecklistReport, error) {
	s.mu.Lock()
	s.EvaluateCalls++
	s.LastEvaluateRequest = req
	idx := s.reportIndex
	if s.reportIndex < len(s.Reports)-1 {
		s.reportIndex++
	}
	s.mu.Unlock()

	if s.EvaluateErr != nil {
		return nil, s.EvaluateErr
	}
	if len(s.Reports) > 0 {
		// Clone so node mutations never leak back into the script.
		r := s.Reports[idx].Clone()
		r.CaseID = req.CaseID
		return r, nil
	}
	return s.fallback.EvaluateChecklist(ctx, req)
}

// SynthesizeFlowchart implements llm.Service.
func (s *ScriptedService) SynthesizeFlowchart(ctx context.Context, description string) (*llm.Flowchart, error) {
	s.mu.Lock()
	s.FlowchartCalls++
	s.mu.Unlock()

	if s.FlowchartErr != nil {
		return nil, s.FlowchartErr
	}
	if s.Flowchart != nil {
		return s.Flowchart, nil
	}
	return s.fallback.SynthesizeFlowchart(ctx, description)
}

// Explain implements llm.Service.
func (s *ScriptedService) Explain(ctx context.Context, question, contextText string) (string, error) {
	s.mu.Lock()
	s.ExplainCalls++
	s.LastExplained = question
	s.mu.Unlock()

	if s.ExplainErr != nil {
		return "", s.ExplainErr
	}
	if s.Explanation != "" {
		return s.Explanation, nil
	}
	return s.fallback.Explain(ctx, question, contextText)
}

// SummarizeStep implements llm.Service.
func (s *ScriptedService) SummarizeStep(ctx context.Context, req llm.SummarizeRequest) (string, error) {
	s.mu.Lock()
	s.SummarizeCalls++
	s.mu.Unlock()

	if s.Summary != "" {
		return s.Summary, nil
	}
	return s.fallback.SummarizeStep(ctx, req)
}

// Reset clears call counters and the report script position.
func (s *ScriptedService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClassifyCalls = 0
	s.EvaluateCalls = 0
	s.FlowchartCalls = 0
	s.ExplainCalls = 0
	s.SummarizeCalls = 0
	s.reportIndex = 0
}
